package dnswire

import "errors"

// Errors returned by the decoder. Decode failures wrap these sentinels
// with positional context; a resource record failure wraps ErrMalformedRR
// together with the sentinel of its cause. Match with errors.Is.
var (
	// ErrTruncated means the buffer ended before a field could be read.
	ErrTruncated = errors.New("dnswire: truncated message")

	// ErrMalformedName means a domain name violated a structural limit:
	// a forward or self compression pointer, too many jumps, or a name
	// longer than 255 bytes.
	ErrMalformedName = errors.New("dnswire: malformed name")

	// ErrMalformedRR means a resource record could not be decoded.
	ErrMalformedRR = errors.New("dnswire: malformed resource record")

	// ErrReserved means a label used the reserved 0x40 or 0x80 prefix.
	ErrReserved = errors.New("dnswire: reserved label type")
)
