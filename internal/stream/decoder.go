package stream

import (
	"bytes"
	"errors"
	"io"
)

const readChunkSize = 32 << 10

// ErrDone is returned by Decoder.Next once the underlying stream is exhausted
// and the trailing fragment, if any, has been yielded.
var ErrDone = errors.New("stream exhausted")

// lineBuffer assembles complete NDJSON lines from raw byte chunks. Lines split
// across chunk boundaries are carried in the buffer until the closing newline
// arrives; blank lines are dropped.
type lineBuffer struct {
	buf []byte
}

// feed appends one chunk and returns every complete line it unlocked.
func (b *lineBuffer) feed(chunk []byte) [][]byte {
	b.buf = append(b.buf, chunk...)
	var lines [][]byte
	for {
		idx := bytes.IndexByte(b.buf, '\n')
		if idx == -1 {
			break
		}
		line := bytes.TrimSpace(b.buf[:idx])
		b.buf = b.buf[idx+1:]
		if len(line) == 0 {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// flush yields the retained fragment at end of stream, if non-blank. A payload
// ending in "}" without a final newline still produces its last line.
func (b *lineBuffer) flush() ([]byte, bool) {
	line := bytes.TrimSpace(b.buf)
	b.buf = nil
	if len(line) == 0 {
		return nil, false
	}
	return line, true
}

// Decoder turns an HTTP response body into a sequence of NDJSON lines. It is
// single pass: one Decoder per response, not restartable.
type Decoder struct {
	r       io.Reader
	lines   *lineBuffer
	pending [][]byte
	scratch []byte
	done    bool
	err     error
}

// NewDecoder wraps the provided reader, typically a streaming response body.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:       r,
		lines:   &lineBuffer{},
		scratch: make([]byte, readChunkSize),
	}
}

// Next returns the next complete line. It blocks on the underlying reader
// between chunks. After the final line it returns ErrDone; any other error is
// a transport failure. Lines buffered before a transport failure are still
// delivered ahead of the error.
func (d *Decoder) Next() ([]byte, error) {
	for {
		if len(d.pending) > 0 {
			line := d.pending[0]
			d.pending = d.pending[1:]
			return line, nil
		}
		if d.done {
			if d.err != nil {
				return nil, d.err
			}
			return nil, ErrDone
		}
		n, err := d.r.Read(d.scratch)
		if n > 0 {
			d.pending = append(d.pending, d.lines.feed(d.scratch[:n])...)
		}
		if err != nil {
			d.done = true
			if line, ok := d.lines.flush(); ok {
				d.pending = append(d.pending, line)
			}
			if !errors.Is(err, io.EOF) {
				d.err = err
			}
		}
	}
}
