package protocol

import (
	"bufio"
	"errors"
	"io"
)

// DefaultMaxLine bounds a single framed line.
const DefaultMaxLine = 4096

// LineReader splits a byte stream into newline-terminated lines.
//
// TCP may fragment or coalesce writes, so a single Read carries no message
// boundary.  LineReader restores them: every returned slice is one line
// including its '\n', a max-length fragment of an over-long line, or the
// unterminated tail of the stream right before io.EOF.
type LineReader struct {
	br  *bufio.Reader
	err error // sticky error, reported after any pending tail
}

// NewLineReader returns a LineReader for r.  max <= 0 selects DefaultMaxLine.
func NewLineReader(r io.Reader, max int) *LineReader {
	if max <= 0 {
		max = DefaultMaxLine
	}
	return &LineReader{br: bufio.NewReaderSize(r, max)}
}

// ReadLine returns the next line.  The returned slice is owned by the caller.
func (l *LineReader) ReadLine() ([]byte, error) {
	if l.err != nil {
		return nil, l.err
	}
	data, err := l.br.ReadSlice('\n')
	line := append([]byte(nil), data...)
	switch {
	case err == nil, errors.Is(err, bufio.ErrBufferFull):
		return line, nil
	case len(line) > 0:
		l.err = err
		return line, nil
	default:
		l.err = err
		return nil, err
	}
}
