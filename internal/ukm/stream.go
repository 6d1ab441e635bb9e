// Package ukm persists structured frame records as a stream of msgpack
// messages, each preceded by a 4-byte big-endian length.
package ukm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/sink"
)

// MaxRecordSize bounds a single encoded record.
const MaxRecordSize = 1 << 20

var (
	ErrRecordTooLarge = errors.New("ukm: record exceeds maximum size")
	ErrWriterClosed   = errors.New("ukm: writer is closed")
)

// Writer encodes structured events to w. It implements sink.StructuredSink;
// encode and write failures are logged and counted.
//
// Thread-safety: Safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	closed bool

	written atomic.Uint64
	failed  atomic.Uint64
}

var _ sink.StructuredSink = (*Writer)(nil)

// NewWriter creates a writer over w. If w is an io.Closer, Close closes it.
func NewWriter(w io.Writer) *Writer {
	wr := &Writer{w: w}
	if c, ok := w.(io.Closer); ok {
		wr.closer = c
	}
	return wr
}

// Create opens path for appending and returns a writer over it.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open ukm stream: %w", err)
	}
	return NewWriter(f), nil
}

// Write encodes one record.
func (w *Writer) Write(ev sink.StructuredEvent) error {
	data, err := msgpack.Marshal(&ev)
	if err != nil {
		return fmt.Errorf("failed to marshal msgpack record: %w", err)
	}
	if len(data) > MaxRecordSize {
		return ErrRecordTooLarge
	}

	lengthPrefix := make([]byte, 4)
	binary.BigEndian.PutUint32(lengthPrefix, uint32(len(data)))

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}
	if _, err := w.w.Write(lengthPrefix); err != nil {
		return fmt.Errorf("failed to write length prefix: %w", err)
	}
	if _, err := w.w.Write(data); err != nil {
		return fmt.Errorf("failed to write msgpack data: %w", err)
	}
	w.written.Add(1)
	return nil
}

// EmitStructuredEvent implements sink.StructuredSink.
func (w *Writer) EmitStructuredEvent(ev sink.StructuredEvent) {
	if err := w.Write(ev); err != nil {
		w.failed.Add(1)
		slog.Warn("ukm: failed to write record",
			"name", ev.Name,
			"trace_id", ev.TraceID,
			"error", err,
		)
	}
}

// Written returns the number of records written.
func (w *Writer) Written() uint64 { return w.written.Load() }

// Failed returns the number of records that could not be written.
func (w *Writer) Failed() uint64 { return w.failed.Load() }

// Close closes the underlying writer when it is an io.Closer.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// Reader decodes records written by Writer.
type Reader struct {
	r         io.Reader
	lengthBuf [4]byte
}

// NewReader creates a reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Next returns the next record, or io.EOF at a clean end of stream. A
// stream cut inside a record returns io.ErrUnexpectedEOF.
func (r *Reader) Next() (sink.StructuredEvent, error) {
	var ev sink.StructuredEvent

	if _, err := io.ReadFull(r.r, r.lengthBuf[:]); err != nil {
		return ev, err
	}

	msgLength := binary.BigEndian.Uint32(r.lengthBuf[:])
	if msgLength > MaxRecordSize {
		return ev, ErrRecordTooLarge
	}

	data := make([]byte, msgLength)
	if _, err := io.ReadFull(r.r, data); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return ev, fmt.Errorf("failed to read msgpack data: %w", err)
	}
	if err := msgpack.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("failed to unmarshal msgpack record: %w", err)
	}
	return ev, nil
}

// ReadAll returns every record until the end of the stream.
func ReadAll(r io.Reader) ([]sink.StructuredEvent, error) {
	rd := NewReader(r)
	var out []sink.StructuredEvent
	for {
		ev, err := rd.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, ev)
	}
}
