package ports

import (
	"time"
)

// ByteStream defines the interface for a byte-oriented connection with an
// optional in-place TLS upgrade. Infrastructure adapters implement this to
// provide real TCP/TLS transport; tests implement it with scripted replies.
type ByteStream interface {
	// Connect establishes the underlying transport connection.
	Connect(host string, port uint16, timeout time.Duration) error

	// Send writes the given bytes, returning the number written.
	Send(p []byte) (int, error)

	// Recv reads up to len(p) bytes into p, returning the number read.
	Recv(p []byte) (int, error)

	// UpgradeTLS upgrades the established connection to TLS on the same
	// socket. Certificate verification is intentionally disabled; this is
	// a probing tool, not a mail client.
	UpgradeTLS() error

	// Close releases the connection. Safe to call more than once.
	Close() error
}

// StreamFactory produces a fresh ByteStream for each connection attempt.
type StreamFactory func() ByteStream
