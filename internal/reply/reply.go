// Package reply reads SMTP server replies off a connection.
//
// A reply is one or more lines of the form "<code><sep><text>". A line is a
// continuation unless its fourth byte is a space or it is exactly three
// bytes long; only the final line carries the decisive code.
package reply

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// MaxLineLength bounds a single reply line, CRLF excluded (RFC 5321 4.5.3.1.5).
	MaxLineLength = 512
	// MaxLines bounds the number of lines in one multi-line reply.
	MaxLines = 64
)

// ErrMalformed is returned for replies that do not follow the reply grammar.
var ErrMalformed = errors.New("reply: malformed SMTP reply")

// Reply is one complete server reply.
type Reply struct {
	Code  int
	Lines []string
}

// Class returns the first digit of the code (2 for 2xx and so on).
func (r Reply) Class() int {
	return r.Code / 100
}

// Text joins the reply lines the way they are reported in verdict messages.
func (r Reply) Text() string {
	return strings.Join(r.Lines, " | ")
}

func (r Reply) String() string {
	return fmt.Sprintf("%d %s", r.Code, r.Text())
}

// Reader reads replies from a buffered connection.
type Reader struct {
	br *bufio.Reader
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, 2*MaxLineLength)}
}

// Read reads one complete, possibly multi-line, reply. Transport errors are
// returned as-is; grammar violations wrap ErrMalformed. The lines read so far
// are returned in both cases.
func (r *Reader) Read() (Reply, error) {
	var rep Reply
	for {
		line, err := r.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) && len(rep.Lines) > 0 {
				return rep, fmt.Errorf("%w: truncated reply: %w", ErrMalformed, io.ErrUnexpectedEOF)
			}
			return rep, err
		}
		rep.Lines = append(rep.Lines, line)

		code, final, err := parseLine(line)
		if err != nil {
			return rep, err
		}
		if final {
			rep.Code = code
			return rep, nil
		}
		if len(rep.Lines) >= MaxLines {
			return rep, fmt.Errorf("%w: more than %d lines", ErrMalformed, MaxLines)
		}
	}
}

func (r *Reader) readLine() (string, error) {
	var sb strings.Builder
	for {
		chunk, isPrefix, err := r.br.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) && sb.Len() > 0 {
				return "", fmt.Errorf("%w: unterminated line", ErrMalformed)
			}
			return "", err
		}
		sb.Write(chunk)
		if sb.Len() > MaxLineLength {
			return "", fmt.Errorf("%w: line exceeds %d bytes", ErrMalformed, MaxLineLength)
		}
		if !isPrefix {
			return sb.String(), nil
		}
	}
}

// parseLine extracts the code of a single reply line and whether it is the
// final line of its reply.
func parseLine(line string) (code int, final bool, err error) {
	if len(line) < 3 {
		return 0, false, fmt.Errorf("%w: short line %q", ErrMalformed, line)
	}
	for i := 0; i < 3; i++ {
		c := line[i]
		if c < '0' || c > '9' {
			return 0, false, fmt.Errorf("%w: bad code in %q", ErrMalformed, line)
		}
		code = code*10 + int(c-'0')
	}
	if code < 200 || code > 599 {
		return 0, false, fmt.Errorf("%w: code %d out of range", ErrMalformed, code)
	}
	return code, len(line) == 3 || line[3] == ' ', nil
}
