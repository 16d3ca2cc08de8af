package persist

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrabasedb/tdb/keyspace"
)

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tdb.snapshot")

	ks := keyspace.New(4)
	require.NoError(t, ks.Set("a", []byte("1")))
	require.NoError(t, ks.Set("b", []byte("2")))
	require.NoError(t, ks.Set("empty", []byte("")))

	require.NoError(t, Snapshot(path, ks))

	restored := keyspace.New(4)
	require.NoError(t, Restore(path, restored))

	want := map[string][]byte{}
	ks.Each(func(k string, v []byte) { want[k] = append([]byte(nil), v...) })

	got := map[string][]byte{}
	restored.Each(func(k string, v []byte) { got[k] = append([]byte(nil), v...) })

	assert.Equal(t, want, got)
}

func TestRestoreMissingFileLeavesKeyspaceEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "does-not-exist.snapshot")

	ks := keyspace.New(4)
	require.NoError(t, Restore(path, ks))
	assert.Equal(t, 0, ks.Len())
}

func TestRestoreEmptyFileLeavesKeyspaceEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.snapshot")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	ks := keyspace.New(4)
	require.NoError(t, Restore(path, ks))
	assert.Equal(t, 0, ks.Len())
}

func TestRestoreRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.snapshot")
	require.NoError(t, os.WriteFile(path, []byte("NOPE!"), 0o600))

	ks := keyspace.New(4)
	err := Restore(path, ks)
	var cerr *CorruptSnapshot
	require.ErrorAs(t, err, &cerr)
}

func TestRestoreRejectsTruncatedRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "truncated.snapshot")

	ks := keyspace.New(4)
	require.NoError(t, ks.Set("foo", []byte("bar")))
	require.NoError(t, Snapshot(path, ks))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-2], 0o600))

	broken := keyspace.New(4)
	err = Restore(path, broken)
	var cerr *CorruptSnapshot
	require.ErrorAs(t, err, &cerr)
}

func TestSnapshotWriteIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tdb.snapshot")

	ks := keyspace.New(4)
	require.NoError(t, ks.Set("a", []byte("1")))
	require.NoError(t, Snapshot(path, ks))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp file should survive a successful snapshot")
	assert.Equal(t, "tdb.snapshot", entries[0].Name())
}

func TestSchedulerPeriodicSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tdb.snapshot")
	ks := keyspace.New(4)
	require.NoError(t, ks.Set("a", []byte("1")))

	sched := NewScheduler(path, ks, 10*time.Millisecond)
	go sched.Run()
	defer sched.Stop()

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, time.Second, 5*time.Millisecond)
}

func TestSchedulerDisabledByZeroInterval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tdb.snapshot")
	ks := keyspace.New(4)

	sched := NewScheduler(path, ks, 0)
	go sched.Run()

	time.Sleep(20 * time.Millisecond)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	sched.Stop()
}

func TestSchedulerFinalRunsSynchronously(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tdb.snapshot")
	ks := keyspace.New(4)
	require.NoError(t, ks.Set("a", []byte("1")))

	sched := NewScheduler(path, ks, 0)
	require.NoError(t, sched.Final())

	_, err := os.Stat(path)
	require.NoError(t, err)
}
