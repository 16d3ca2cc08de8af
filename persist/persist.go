// Package persist implements TerrabaseDB's snapshot file: a length-prefixed
// record stream that captures the keyspace's entire contents and restores
// it at startup.
package persist

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/terrabasedb/tdb/keyspace"
)

// magic identifies a TDB snapshot file; version allows the record format to
// change without silently misreading an older file.
var magic = [4]byte{'T', 'D', 'B', 0}

const version = byte(1)

// CorruptSnapshot indicates the snapshot file exists but could not be
// parsed: bad magic, an unsupported version, or a truncated trailing
// record. Startup treats this as fatal rather than silently discarding
// whatever partial data is present.
type CorruptSnapshot struct {
	Reason string
}

func (e *CorruptSnapshot) Error() string {
	return fmt.Sprintf("persist: corrupt snapshot: %s", e.Reason)
}

// Restore loads path into ks, which must be empty. A missing file is not an
// error: the keyspace simply starts empty. A file that exists but fails to
// parse returns a *CorruptSnapshot.
func Restore(path string, ks *keyspace.Keyspace) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)

	var hdr [5]byte
	n, err := io.ReadFull(r, hdr[:])
	if errors.Is(err, io.EOF) && n == 0 {
		// Empty file: an empty, valid snapshot.
		return nil
	}
	if err != nil {
		return &CorruptSnapshot{Reason: "truncated header: " + err.Error()}
	}
	if hdr[0] != magic[0] || hdr[1] != magic[1] || hdr[2] != magic[2] || hdr[3] != magic[3] {
		return &CorruptSnapshot{Reason: "bad magic"}
	}
	if hdr[4] != version {
		return &CorruptSnapshot{Reason: fmt.Sprintf("unsupported version %d", hdr[4])}
	}

	var pairs []keyspace.Pair
	for {
		p, err := readRecord(r)
		// Only a bare io.EOF (no bytes of a new record) ends the stream; a
		// wrapped EOF from a later field means the record is truncated.
		if err == io.EOF {
			break
		}
		if err != nil {
			return &CorruptSnapshot{Reason: err.Error()}
		}
		pairs = append(pairs, p)
	}

	return ks.LoadAll(pairs)
}

func readRecord(r *bufio.Reader) (keyspace.Pair, error) {
	var keyLen uint64
	if err := binary.Read(r, binary.LittleEndian, &keyLen); err != nil {
		// EOF here, at a record boundary, is the normal end of the stream.
		return keyspace.Pair{}, err
	}
	key := make([]byte, keyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return keyspace.Pair{}, fmt.Errorf("truncated key: %w", err)
	}

	var valLen uint64
	if err := binary.Read(r, binary.LittleEndian, &valLen); err != nil {
		return keyspace.Pair{}, fmt.Errorf("truncated value length: %w", err)
	}
	value := make([]byte, valLen)
	if _, err := io.ReadFull(r, value); err != nil {
		return keyspace.Pair{}, fmt.Errorf("truncated value: %w", err)
	}

	return keyspace.Pair{Key: key, Value: value}, nil
}

// Snapshot serializes ks's entire contents, under the point-in-time view
// keyspace.Each provides, to path via a sibling temp file plus an atomic
// rename: a crash mid-write leaves the previous snapshot at path intact.
func Snapshot(path string, ks *keyspace.Keyspace) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		tmp.Close()
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	w := bufio.NewWriter(tmp)
	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	if err := w.WriteByte(version); err != nil {
		return err
	}

	var writeErr error
	ks.Each(func(key string, value []byte) {
		if writeErr != nil {
			return
		}
		writeErr = writeRecord(w, key, value)
	})
	if writeErr != nil {
		return writeErr
	}

	if err := w.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}
	committed = true
	return nil
}

func writeRecord(w *bufio.Writer, key string, value []byte) error {
	var lenBuf [8]byte

	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(key)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := w.WriteString(key); err != nil {
		return err
	}

	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(value)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := w.Write(value); err != nil {
		return err
	}
	return nil
}
