package nobo

import (
	"bufio"
	"bytes"
	"io"
	"iter"
	"strings"
)

// MaxFrameLen bounds a single frame. Week profiles are the largest frames the
// hub sends and stay well below this.
const MaxFrameLen = 64 * 1024

// FrameReader splits a byte stream into delimiter-terminated frames.
// Partial frames are buffered until the delimiter arrives and empty frames
// are dropped. A FrameReader cannot be restarted once it stops.
type FrameReader struct {
	scanner *bufio.Scanner
	err     error
	done    bool
}

// NewFrameReader returns a FrameReader reading from r.
func NewFrameReader(r io.Reader) *FrameReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), MaxFrameLen)
	s.Split(splitFrames)
	return &FrameReader{scanner: s}
}

// Next returns the tokens of the next non-empty frame. It returns false once
// the stream has ended; it never reports an error to the caller.
func (fr *FrameReader) Next() ([]string, bool) {
	if fr.done {
		return nil, false
	}
	for fr.scanner.Scan() {
		tokens := Tokenize(fr.scanner.Text())
		if tokens == nil {
			continue
		}
		return tokens, true
	}
	fr.done = true
	fr.err = fr.scanner.Err()
	return nil, false
}

// Err reports why the stream stopped. It is nil on a clean EOF and is only
// meant for diagnostics.
func (fr *FrameReader) Err() error {
	return fr.err
}

// All returns the remaining frames as a sequence.
func (fr *FrameReader) All() iter.Seq[[]string] {
	return func(yield func([]string) bool) {
		for {
			tokens, ok := fr.Next()
			if !ok || !yield(tokens) {
				return
			}
		}
	}
}

// Frames returns a lazy sequence of tokenized frames read from r.
func Frames(r io.Reader) iter.Seq[[]string] {
	return NewFrameReader(r).All()
}

// Tokenize splits a frame on ASCII spaces. Other whitespace, such as the
// non-breaking spaces the hub uses inside names, stays part of the token.
// Empty tokens are kept so positional fields do not shift. A frame holding
// only spaces yields nil.
func Tokenize(frame string) []string {
	if strings.Trim(frame, " ") == "" {
		return nil
	}
	return strings.Split(frame, " ")
}

// splitFrames is a bufio.SplitFunc cutting on FrameDelimiter. A trailing
// fragment without delimiter is discarded at EOF.
func splitFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if i := bytes.IndexByte(data, FrameDelimiter); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), nil, nil
	}
	return 0, nil, nil
}
