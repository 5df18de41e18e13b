package stream

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

const samplePayload = `{"type":"message","content":"a"}
{"type":"data","graph":{"nodes":[{"id":"1"}],"links":[]}}
{"type":"complete"}
`

// chunkedReader returns fixed-size chunks so line boundaries land mid-chunk.
type chunkedReader struct {
	data []byte
	size int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := r.size
	if n > len(r.data) {
		n = len(r.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

func collectLines(t *testing.T, r io.Reader) []string {
	t.Helper()
	dec := NewDecoder(r)
	var lines []string
	for {
		line, err := dec.Next()
		if err != nil {
			if errors.Is(err, ErrDone) {
				return lines
			}
			t.Fatalf("decode failed: %v", err)
		}
		lines = append(lines, string(line))
	}
}

func TestDecoderChunkSplitInvariance(t *testing.T) {
	want := collectLines(t, bytes.NewReader([]byte(samplePayload)))
	if len(want) != 3 {
		t.Fatalf("expected 3 lines from unsplit payload, got %d", len(want))
	}
	for size := 1; size <= len(samplePayload); size++ {
		got := collectLines(t, &chunkedReader{data: []byte(samplePayload), size: size})
		if len(got) != len(want) {
			t.Fatalf("chunk size %d: expected %d lines, got %d", size, len(want), len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("chunk size %d: line %d mismatch: %q vs %q", size, i, got[i], want[i])
			}
		}
	}
}

func TestDecoderTrailingLineWithoutNewline(t *testing.T) {
	payload := "{\"type\":\"message\"}\n{\"type\":\"complete\"}"
	lines := collectLines(t, bytes.NewReader([]byte(payload)))
	if len(lines) != 2 {
		t.Fatalf("expected trailing line to be yielded, got %d lines", len(lines))
	}
	if lines[1] != `{"type":"complete"}` {
		t.Fatalf("unexpected trailing line: %q", lines[1])
	}
}

func TestDecoderSkipsBlankLines(t *testing.T) {
	payload := "\n{\"type\":\"message\"}\n\n   \n{\"type\":\"complete\"}\n\n"
	lines := collectLines(t, bytes.NewReader([]byte(payload)))
	if len(lines) != 2 {
		t.Fatalf("expected blank lines to be dropped, got %d lines", len(lines))
	}
}

func TestDecoderDeliversBufferedLinesBeforeTransportError(t *testing.T) {
	broken := errors.New("connection reset")
	r := io.MultiReader(
		bytes.NewReader([]byte("{\"type\":\"message\"}\n")),
		&failingReader{err: broken},
	)
	dec := NewDecoder(r)
	line, err := dec.Next()
	if err != nil {
		t.Fatalf("expected buffered line, got error: %v", err)
	}
	if string(line) != `{"type":"message"}` {
		t.Fatalf("unexpected line: %q", line)
	}
	if _, err := dec.Next(); !errors.Is(err, broken) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

type failingReader struct{ err error }

func (r *failingReader) Read(p []byte) (int, error) { return 0, r.err }
