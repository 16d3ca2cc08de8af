package terrapipe

import (
	"bufio"
	"bytes"
	"io"
	"strconv"

	"github.com/terrabasedb/tdb/internal"
)

// bufferPool holds scratch buffers for building meta lines: a typical
// Terrapipe meta-line pair is well under 256 bytes.
var bufferPool = internal.NewBufferPool(256)

func getBuffer() *bytes.Buffer {
	return bufferPool.Get()
}

func putBuffer(buf *bytes.Buffer) {
	bufferPool.Put(buf)
}

// Encoder writes Terrapipe frames to a buffered byte stream. Encoding is
// infallible given well-typed input: the only errors it can return are
// I/O errors from the underlying writer.
type Encoder struct {
	w *bufio.Writer
}

// NewEncoder wraps w (already buffered, or not) in an Encoder.
func NewEncoder(w io.Writer) *Encoder {
	bw, ok := w.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriter(w)
	}
	return &Encoder{w: bw}
}

// Encode writes a frame and flushes it. Flushing per-frame keeps the
// encoder simple and correct for pipelined responses; frames are never
// batched into one flush.
func (e *Encoder) Encode(f *Frame) error {
	meta2, totalLen := buildMeta2(f)
	defer putBuffer(meta2)

	if _, err := e.w.WriteString(string(f.Kind)); err != nil {
		return err
	}
	if _, err := e.w.WriteString(strconv.Itoa(totalLen)); err != nil {
		return err
	}
	if _, err := e.w.WriteString(LF); err != nil {
		return err
	}
	if _, err := e.w.Write(meta2.Bytes()); err != nil {
		return err
	}
	if _, err := e.w.WriteString(LF); err != nil {
		return err
	}
	for _, group := range f.Groups {
		for _, field := range group {
			if len(field) == 0 {
				continue
			}
			if _, err := e.w.Write(field); err != nil {
				return err
			}
		}
	}
	return e.w.Flush()
}

// buildMeta2 computes MetaLine2's bytes and the total payload length.
// MetaLine1 is written directly by Encode since it needs the computed
// total length.
func buildMeta2(f *Frame) (meta2 *bytes.Buffer, totalLen int) {
	meta2 = getBuffer()

	meta2.WriteString(strconv.Itoa(len(f.Groups)))
	for _, group := range f.Groups {
		meta2.WriteByte(GroupSep)
		meta2.WriteString(strconv.Itoa(len(group)))
		for _, field := range group {
			meta2.WriteByte(GroupSep)
			meta2.WriteString(strconv.Itoa(len(field)))
			totalLen += len(field)
		}
	}
	return meta2, totalLen
}
