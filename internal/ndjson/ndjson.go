// Package ndjson reads newline-delimited JSON streams, one line per unit.
// Agent CLIs can emit very large single lines (full file contents inside a
// tool result), so the reader has no fixed line-length limit.
package ndjson

import (
	"bufio"
	"bytes"
	"io"
)

// Reader yields one line at a time from an NDJSON stream.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r for line-at-a-time reading.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 64*1024)}
}

// ReadLine returns the next line without the trailing newline. A final
// unterminated line is returned before io.EOF. Empty lines are returned
// as empty slices; callers decide whether to skip them.
func (r *Reader) ReadLine() ([]byte, error) {
	var buf []byte
	for {
		chunk, err := r.r.ReadSlice('\n')
		buf = append(buf, chunk...)
		if err == nil {
			break
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err == io.EOF && len(buf) > 0 {
			break
		}
		return nil, err
	}
	return bytes.TrimRight(buf, "\r\n"), nil
}
