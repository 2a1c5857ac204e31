// Package trace records the snapshots of a simulation run and reads them
// back.
//
// A trace is a sequence of JSON-encoded cluster.Snapshot values, one per
// line. Files whose name ends in ".lz4" are wrapped in an lz4 frame.
package trace

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pierrec/lz4/v4"

	"github.com/dreamware/bubblering/internal/cluster"
)

// CompressedSuffix marks trace files written through an lz4 frame.
const CompressedSuffix = ".lz4"

// ErrClosed is returned when writing to a closed Writer.
var ErrClosed = errors.New("trace writer closed")

// Writer appends snapshots to a trace. It implements cluster.Observer so it
// can be handed straight to Coordinator.Run.
type Writer struct {
	enc     *json.Encoder
	buf     *bufio.Writer
	zw      *lz4.Writer
	closer  io.Closer
	records int
	closed  bool
}

// NewWriter writes an uncompressed trace to w.
func NewWriter(w io.Writer) *Writer {
	buf := bufio.NewWriter(w)
	return &Writer{enc: json.NewEncoder(buf), buf: buf}
}

// NewCompressedWriter writes an lz4-framed trace to w.
func NewCompressedWriter(w io.Writer) *Writer {
	zw := lz4.NewWriter(w)
	buf := bufio.NewWriter(zw)
	return &Writer{enc: json.NewEncoder(buf), buf: buf, zw: zw}
}

// Create opens a trace file at path, compressed when the name ends in
// CompressedSuffix. Closing the Writer closes the file.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create trace: %w", err)
	}
	var w *Writer
	if strings.HasSuffix(path, CompressedSuffix) {
		w = NewCompressedWriter(f)
	} else {
		w = NewWriter(f)
	}
	w.closer = f
	return w, nil
}

// Observe appends one snapshot.
func (w *Writer) Observe(s cluster.Snapshot) error {
	if w.closed {
		return ErrClosed
	}
	if err := w.enc.Encode(s); err != nil {
		return fmt.Errorf("encode tick %d: %w", s.Tick, err)
	}
	w.records++
	return nil
}

// Records returns the number of snapshots written.
func (w *Writer) Records() int {
	return w.records
}

// Close flushes buffered data, ends the lz4 frame and closes the underlying
// file when the Writer owns one. Close is idempotent.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	err := w.buf.Flush()
	if w.zw != nil {
		if zerr := w.zw.Close(); err == nil {
			err = zerr
		}
	}
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return fmt.Errorf("close trace: %w", err)
	}
	return nil
}

// Reader decodes snapshots from a trace.
type Reader struct {
	dec    *json.Decoder
	closer io.Closer
	line   int
}

// NewReader reads an uncompressed trace from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: json.NewDecoder(bufio.NewReader(r))}
}

// NewCompressedReader reads an lz4-framed trace from r.
func NewCompressedReader(r io.Reader) *Reader {
	return &Reader{dec: json.NewDecoder(bufio.NewReader(lz4.NewReader(r)))}
}

// Open opens the trace file at path, decompressing when the name ends in
// CompressedSuffix.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	var r *Reader
	if strings.HasSuffix(path, CompressedSuffix) {
		r = NewCompressedReader(f)
	} else {
		r = NewReader(f)
	}
	r.closer = f
	return r, nil
}

// Next returns the next snapshot, or io.EOF after the last one.
func (r *Reader) Next() (cluster.Snapshot, error) {
	var s cluster.Snapshot
	if err := r.dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return cluster.Snapshot{}, io.EOF
		}
		return cluster.Snapshot{}, fmt.Errorf("decode record %d: %w", r.line+1, err)
	}
	r.line++
	return s, nil
}

// ReadAll returns every remaining snapshot.
func (r *Reader) ReadAll() ([]cluster.Snapshot, error) {
	var out []cluster.Snapshot
	for {
		s, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, s)
	}
}

// Close closes the underlying file when the Reader owns one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
