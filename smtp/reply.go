package smtp

import (
	"bufio"
	"strings"

	"github.com/credprobe-dev/credprobe/domain/errors"
	"github.com/credprobe-dev/credprobe/domain/ports"
)

// streamReader adapts a ByteStream to io.Reader for buffering.
type streamReader struct {
	s ports.ByteStream
}

func (r streamReader) Read(p []byte) (int, error) {
	return r.s.Recv(p)
}

// replyReader frames SMTP replies on top of a byte stream. A reply is one
// or more CRLF lines starting with a 3-digit code; continuation lines have
// '-' in column 4 and the final line has a space (or nothing) after the
// code. The reader consumes lines until it sees the final one and returns
// the concatenated text.
type replyReader struct {
	br *bufio.Reader
}

func newReplyReader(s ports.ByteStream) *replyReader {
	return &replyReader{br: bufio.NewReader(streamReader{s: s})}
}

// readReply returns the reply's leading code (0 if unparseable) and its
// full concatenated text, line endings included.
func (r *replyReader) readReply() (int, string, error) {
	var sb strings.Builder
	for {
		line, err := r.br.ReadString('\n')
		if err != nil {
			return 0, "", &errors.NetworkError{Err: err, Operation: "recv"}
		}
		sb.WriteString(line)

		trimmed := strings.TrimRight(line, "\r\n")
		if len(trimmed) < 3 || !isReplyCode(trimmed[:3]) {
			return 0, "", &errors.ProtocolError{Reason: "reply line does not start with a 3-digit code", Reply: trimmed}
		}
		// Final line: bare code, or code followed by a space.
		if len(trimmed) == 3 || trimmed[3] == ' ' {
			break
		}
		if trimmed[3] != '-' {
			return 0, "", &errors.ProtocolError{Reason: "reply line separator is neither space nor dash", Reply: trimmed}
		}
	}

	text := sb.String()
	return parseReplyCode(text), text, nil
}

func isReplyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// parseReplyCode extracts the leading 3-digit code, or 0 if the text does
// not start with three ASCII digits.
func parseReplyCode(s string) int {
	if len(s) < 3 || !isReplyCode(s[:3]) {
		return 0
	}
	return int(s[0]-'0')*100 + int(s[1]-'0')*10 + int(s[2]-'0')
}

// Reply code classes.
func isPositive(code int) bool     { return code >= 200 && code < 300 }
func isIntermediate(code int) bool { return code >= 300 && code < 400 }
func isTransient(code int) bool    { return code >= 400 && code < 500 }
func isPermanent(code int) bool    { return code >= 500 && code < 600 }
