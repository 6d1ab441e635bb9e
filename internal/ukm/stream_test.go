package ukm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/sink"
)

func sampleEvents() []sink.StructuredEvent {
	ts := time.Unix(1700000000, 250000000)
	return []sink.StructuredEvent{
		{
			Name:      sink.CompositorLatencyEvent,
			TraceID:   "3f0c3a5e-0000-4000-8000-000000000001",
			Sequence:  12,
			Timestamp: ts,
			Labels:    map[string]string{"report_types": "NonDroppedFrame", "status": "PresentedFrame"},
			Values:    map[string]int64{"TotalLatency": 400, "Commit": 50},
		},
		{
			Name:      sink.EventLatencyEvent,
			TraceID:   "3f0c3a5e-0000-4000-8000-000000000002",
			Sequence:  13,
			Timestamp: ts.Add(16 * time.Millisecond),
			Labels:    map[string]string{"event_type": "GestureScrollUpdate", "device": "Touchscreen"},
			Values:    map[string]int64{"TotalLatency": 700},
		},
	}
}

// TestStreamRoundTrip verifies records read back in order.
func TestStreamRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	want := sampleEvents()
	for _, ev := range want {
		w.EmitStructuredEvent(ev)
	}
	if w.Written() != 2 || w.Failed() != 0 {
		t.Fatalf("Expected 2 written and 0 failed, got %d and %d", w.Written(), w.Failed())
	}

	got, err := ReadAll(&buf)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Records mismatch (-want +got):\n%s", diff)
	}
}

// TestLengthPrefixFraming verifies each record is prefixed with its
// big-endian length.
func TestLengthPrefixFraming(t *testing.T) {
	var buf bytes.Buffer
	if err := NewWriter(&buf).Write(sampleEvents()[0]); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	data := buf.Bytes()
	if len(data) < 4 {
		t.Fatalf("Expected length prefix, got %d bytes", len(data))
	}
	if n := binary.BigEndian.Uint32(data[:4]); int(n) != len(data)-4 {
		t.Errorf("Expected prefix %d, got %d", len(data)-4, n)
	}
}

// TestTruncatedStream verifies a record cut short is reported.
func TestTruncatedStream(t *testing.T) {
	var buf bytes.Buffer
	NewWriter(&buf).Write(sampleEvents()[0])
	data := buf.Bytes()

	r := NewReader(bytes.NewReader(data[:len(data)-3]))
	if _, err := r.Next(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Expected io.ErrUnexpectedEOF, got %v", err)
	}

	r = NewReader(bytes.NewReader(nil))
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Expected io.EOF on empty stream, got %v", err)
	}
}

// TestOversizedPrefixRejected verifies a corrupt length is not allocated.
func TestOversizedPrefixRejected(t *testing.T) {
	prefix := make([]byte, 4)
	binary.BigEndian.PutUint32(prefix, MaxRecordSize+1)

	r := NewReader(bytes.NewReader(prefix))
	if _, err := r.Next(); !errors.Is(err, ErrRecordTooLarge) {
		t.Errorf("Expected ErrRecordTooLarge, got %v", err)
	}
}

// TestWriteAfterClose verifies closed writers count failures.
func TestWriteAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.ukm")
	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	w.EmitStructuredEvent(sampleEvents()[0])
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Expected idempotent Close, got %v", err)
	}

	if err := w.Write(sampleEvents()[1]); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("Expected ErrWriterClosed, got %v", err)
	}
	w.EmitStructuredEvent(sampleEvents()[1])
	if w.Failed() != 1 {
		t.Errorf("Expected 1 failed record, got %d", w.Failed())
	}
}
