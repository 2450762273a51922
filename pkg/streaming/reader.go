package streaming

import (
	"bufio"
	"fmt"
	"io"

	"github.com/nemanja-m/mrchain/pkg/core"
)

const (
	DefaultBufferSize = 1024 * 1024      // 1MB
	MaxLineSize       = 64 * 1024 * 1024 // 64MB
)

// Reader is a finite, single-pass stream of records.
//
//	for r.Next() {
//	    kv := r.Record()
//	}
//	if err := r.Err(); err != nil { ... }
type Reader interface {
	Next() bool
	Record() core.KeyValue
	Err() error
}

type lineReader struct {
	scanner *bufio.Scanner
	record  core.KeyValue
	line    int
}

// NewLineReader reads raw lines as map input. Every record has an empty key
// and the line as its value.
func NewLineReader(in io.Reader) Reader {
	return &lineReader{scanner: newScanner(in)}
}

func (r *lineReader) Next() bool {
	if !r.scanner.Scan() {
		return false
	}
	r.line++
	r.record = core.KeyValue{Value: r.scanner.Text()}
	return true
}

func (r *lineReader) Record() core.KeyValue {
	return r.record
}

func (r *lineReader) Err() error {
	if err := r.scanner.Err(); err != nil {
		return fmt.Errorf("reading line %d: %w", r.line+1, err)
	}
	return nil
}

type recordReader struct {
	lines  *lineReader
	codec  core.Codec
	record core.KeyValue
	err    error
}

// NewRecordReader decodes every line with codec. Decoding stops at the
// first malformed line and the error is reported by Err.
func NewRecordReader(in io.Reader, codec core.Codec) Reader {
	return &recordReader{lines: &lineReader{scanner: newScanner(in)}, codec: codec}
}

func (r *recordReader) Next() bool {
	if r.err != nil || !r.lines.Next() {
		return false
	}
	kv, err := r.codec.Decode(r.lines.record.Value)
	if err != nil {
		r.err = fmt.Errorf("line %d: %w", r.lines.line, err)
		return false
	}
	r.record = kv
	return true
}

func (r *recordReader) Record() core.KeyValue {
	return r.record
}

func (r *recordReader) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.lines.Err()
}

type sliceReader struct {
	records []core.KeyValue
	pos     int
}

// NewSliceReader streams records that are already in memory.
func NewSliceReader(records []core.KeyValue) Reader {
	return &sliceReader{records: records}
}

func (r *sliceReader) Next() bool {
	if r.pos >= len(r.records) {
		return false
	}
	r.pos++
	return true
}

func (r *sliceReader) Record() core.KeyValue {
	return r.records[r.pos-1]
}

func (r *sliceReader) Err() error {
	return nil
}

func newScanner(in io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, DefaultBufferSize), MaxLineSize)
	return scanner
}
