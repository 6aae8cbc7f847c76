// Package netconn provides the real TCP/TLS implementation of
// ports.ByteStream, plus the system monotonic clock.
package netconn

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"golang.org/x/net/proxy"

	"github.com/credprobe-dev/credprobe/domain/ports"
)

// Compile-time interface compliance check
var _ ports.ByteStream = (*Stream)(nil)

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// WithSOCKS5 routes the connection through a SOCKS5 proxy. Username and
// password may be empty for an unauthenticated proxy.
func WithSOCKS5(address, username, password string) StreamOption {
	return func(s *Stream) {
		s.socksAddr = address
		s.socksUser = username
		s.socksPass = password
	}
}

// WithTLSConfig overrides the TLS configuration used by UpgradeTLS.
// The default accepts any certificate: this is a probing tool, and the
// target's certificate is not what is being tested.
func WithTLSConfig(cfg *tls.Config) StreamOption {
	return func(s *Stream) {
		s.tlsConfig = cfg
	}
}

// Stream is a TCP connection with per-call deadlines and an in-place
// STARTTLS upgrade. A Stream belongs to a single connection task and is
// not safe for concurrent use.
type Stream struct {
	conn      net.Conn
	tlsConfig *tls.Config
	host      string
	timeout   time.Duration
	socksAddr string
	socksUser string
	socksPass string
}

// NewStream creates an unconnected Stream.
func NewStream(opts ...StreamOption) *Stream {
	s := &Stream{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect dials the target, optionally through the configured SOCKS5
// proxy. The timeout bounds the dial and every later I/O call.
func (s *Stream) Connect(host string, port uint16, timeout time.Duration) error {
	address := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	s.host = host
	s.timeout = timeout

	if s.socksAddr != "" {
		conn, err := s.dialSOCKS5(address, timeout)
		if err != nil {
			return err
		}
		s.conn = conn
		return nil
	}

	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

func (s *Stream) dialSOCKS5(address string, timeout time.Duration) (net.Conn, error) {
	var auth *proxy.Auth
	if s.socksUser != "" || s.socksPass != "" {
		auth = &proxy.Auth{User: s.socksUser, Password: s.socksPass}
	}
	dialer, err := proxy.SOCKS5("tcp", s.socksAddr, auth, &net.Dialer{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("socks5 dialer: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return dialer.(proxy.ContextDialer).DialContext(ctx, "tcp", address)
}

// Send writes p under the per-call deadline.
func (s *Stream) Send(p []byte) (int, error) {
	if s.conn == nil {
		return 0, net.ErrClosed
	}
	if s.timeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
			return 0, err
		}
	}
	return s.conn.Write(p)
}

// Recv reads into p under the per-call deadline.
func (s *Stream) Recv(p []byte) (int, error) {
	if s.conn == nil {
		return 0, net.ErrClosed
	}
	if s.timeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
			return 0, err
		}
	}
	return s.conn.Read(p)
}

// UpgradeTLS wraps the established connection in TLS on the same socket
// and runs the handshake.
func (s *Stream) UpgradeTLS() error {
	if s.conn == nil {
		return net.ErrClosed
	}

	cfg := s.tlsConfig
	if cfg == nil {
		cfg = &tls.Config{
			InsecureSkipVerify: true,
			ServerName:         s.host,
		}
	}

	tlsConn := tls.Client(s.conn, cfg)
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return err
	}
	s.conn = tlsConn
	return nil
}

// Close releases the connection. Safe to call more than once.
func (s *Stream) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
