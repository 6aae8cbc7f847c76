package smtp

import (
	"bytes"
	"encoding/base64"
	stderrors "errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/credprobe-dev/credprobe/domain/ports"
)

// mockServer scripts a LOGIN/PLAIN/CRAM-MD5 capable SMTP server shared by
// every stream a prober spawns. State that must survive reconnects (failure
// injection counters, the attempt log) lives here.
type mockServer struct {
	goodUser string
	goodPass string

	authLine      string // EHLO AUTH capability line; empty for none
	supportsTLS   bool
	rejectedReply string // final reply for a bad credential

	mu                 sync.Mutex
	failConnects       int  // remaining Connect calls to fail
	transientOnVerdict int  // remaining final replies answered 454
	rejectUsername     bool // 535 straight after the LOGIN username
	attempts           [][2]string
	attemptOrder       []string
}

func newMockServer() *mockServer {
	return &mockServer{
		goodUser:      "alice",
		goodPass:      "s3cret",
		authLine:      "AUTH LOGIN PLAIN CRAM-MD5",
		rejectedReply: "535 5.7.8 authentication failed\r\n",
	}
}

func (srv *mockServer) factory() ports.StreamFactory {
	return func() ports.ByteStream {
		return &mockStream{srv: srv}
	}
}

func (srv *mockServer) recordAttempt(user, pass string) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.attempts = append(srv.attempts, [2]string{user, pass})
	srv.attemptOrder = append(srv.attemptOrder, user+":"+pass)
}

func (srv *mockServer) verdict(user, pass string) string {
	srv.mu.Lock()
	transient := srv.transientOnVerdict > 0
	if transient {
		srv.transientOnVerdict--
	}
	srv.mu.Unlock()
	if transient {
		return "454 4.7.0 temporary authentication failure\r\n"
	}
	srv.recordAttempt(user, pass)
	if user == srv.goodUser && pass == srv.goodPass {
		return "235 2.7.0 authentication successful\r\n"
	}
	return srv.rejectedReply
}

// mockStream is one scripted connection. Replies are queued into rbuf by
// Send and drained by Recv.
type mockStream struct {
	srv *mockServer

	rbuf      bytes.Buffer
	sent      []string
	connected bool
	upgraded  bool
	closed    bool

	authState int // 0 idle, 1 awaiting LOGIN user, 2 awaiting LOGIN pass, 3 awaiting CRAM digest
	loginUser string
}

const mockCRAMChallenge = "<12345.67890@mock>"

func (m *mockStream) Connect(host string, port uint16, timeout time.Duration) error {
	m.srv.mu.Lock()
	fail := m.srv.failConnects > 0
	if fail {
		m.srv.failConnects--
	}
	m.srv.mu.Unlock()
	if fail {
		return stderrors.New("connection refused")
	}
	m.connected = true
	m.rbuf.WriteString("220 mock ESMTP ready\r\n")
	return nil
}

func (m *mockStream) Send(p []byte) (int, error) {
	if !m.connected || m.closed {
		return 0, stderrors.New("send on closed stream")
	}
	line := strings.TrimRight(string(p), "\r\n")
	m.sent = append(m.sent, line)

	switch {
	case m.authState == 1:
		decoded, err := base64.StdEncoding.DecodeString(line)
		if err != nil {
			m.rbuf.WriteString("501 5.5.2 cannot decode\r\n")
			m.authState = 0
			break
		}
		if m.srv.rejectUsername {
			m.authState = 0
			m.rbuf.WriteString("535 5.7.8 bad username\r\n")
			break
		}
		m.loginUser = string(decoded)
		m.authState = 2
		m.rbuf.WriteString("334 UGFzc3dvcmQ6\r\n")

	case m.authState == 2:
		decoded, err := base64.StdEncoding.DecodeString(line)
		if err != nil {
			m.rbuf.WriteString("501 5.5.2 cannot decode\r\n")
			m.authState = 0
			break
		}
		m.authState = 0
		m.rbuf.WriteString(m.srv.verdict(m.loginUser, string(decoded)))

	case m.authState == 3:
		decoded, err := base64.StdEncoding.DecodeString(line)
		m.authState = 0
		if err != nil {
			m.rbuf.WriteString("501 5.5.2 cannot decode\r\n")
			break
		}
		user, digest, ok := strings.Cut(string(decoded), " ")
		if !ok {
			m.rbuf.WriteString("501 5.5.2 malformed response\r\n")
			break
		}
		// The digest is opaque to the mock; it accepts the good user's
		// correct digest computed by the client under test.
		want := cramDigest(m.srv.goodUser, m.srv.goodPass, []byte(mockCRAMChallenge))
		wantDecoded, _ := base64.StdEncoding.DecodeString(want)
		_, wantDigest, _ := strings.Cut(string(wantDecoded), " ")
		if user == m.srv.goodUser && digest == wantDigest {
			m.rbuf.WriteString(m.srv.verdict(m.srv.goodUser, m.srv.goodPass))
		} else {
			m.rbuf.WriteString(m.srv.verdict(user, ""))
		}

	case strings.HasPrefix(line, "EHLO "):
		if m.srv.authLine == "" {
			m.rbuf.WriteString("250 mock greets you\r\n")
			break
		}
		if m.srv.supportsTLS && !m.upgraded {
			m.rbuf.WriteString("250-mock greets you\r\n250-STARTTLS\r\n250 " + m.srv.authLine + "\r\n")
			break
		}
		m.rbuf.WriteString("250-mock greets you\r\n250 " + m.srv.authLine + "\r\n")

	case line == "STARTTLS":
		if !m.srv.supportsTLS {
			m.rbuf.WriteString("502 5.5.1 not implemented\r\n")
			break
		}
		m.rbuf.WriteString("220 2.0.0 ready to start TLS\r\n")

	case line == "AUTH LOGIN":
		m.authState = 1
		m.rbuf.WriteString("334 VXNlcm5hbWU6\r\n")

	case strings.HasPrefix(line, "AUTH PLAIN "):
		blob, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(line, "AUTH PLAIN "))
		if err != nil {
			m.rbuf.WriteString("501 5.5.2 cannot decode\r\n")
			break
		}
		parts := strings.Split(string(blob), "\x00")
		if len(parts) != 3 {
			m.rbuf.WriteString("501 5.5.2 malformed blob\r\n")
			break
		}
		m.rbuf.WriteString(m.srv.verdict(parts[1], parts[2]))

	case line == "AUTH CRAM-MD5":
		m.authState = 3
		m.rbuf.WriteString("334 " + base64.StdEncoding.EncodeToString([]byte(mockCRAMChallenge)) + "\r\n")

	default:
		m.rbuf.WriteString("500 5.5.1 command unrecognized\r\n")
	}

	return len(p), nil
}

func (m *mockStream) Recv(p []byte) (int, error) {
	if m.closed {
		return 0, stderrors.New("recv on closed stream")
	}
	if m.rbuf.Len() == 0 {
		return 0, io.EOF
	}
	return m.rbuf.Read(p)
}

func (m *mockStream) UpgradeTLS() error {
	if !m.srv.supportsTLS {
		return stderrors.New("tls not supported by mock")
	}
	m.upgraded = true
	return nil
}

func (m *mockStream) Close() error {
	m.closed = true
	return nil
}
