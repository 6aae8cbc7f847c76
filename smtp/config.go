package smtp

import (
	"time"

	"github.com/credprobe-dev/credprobe/application/config"
)

// AuthMethod selects the SMTP authentication mechanism.
type AuthMethod string

const (
	// AuthLogin is the two-step Base64 username/password exchange.
	AuthLogin AuthMethod = "LOGIN"

	// AuthPlain sends the NUL-separated credential blob in one step.
	AuthPlain AuthMethod = "PLAIN"

	// AuthCRAMMD5 answers the server challenge with an HMAC-MD5 digest.
	AuthCRAMMD5 AuthMethod = "CRAM-MD5"

	// AuthAuto picks the first server-advertised mechanism we support,
	// in the order LOGIN, PLAIN, CRAM-MD5.
	AuthAuto AuthMethod = "AUTO"
)

// Config describes the target server and how to talk to it. A Config is
// immutable once handed to a prober.
type Config struct {
	// Host is the SMTP server hostname or address.
	Host string `json:"host" validate:"required"`

	// Port is the SMTP server port.
	Port uint16 `json:"port" validate:"required"`

	// AuthMethod is the mechanism to negotiate.
	AuthMethod AuthMethod `json:"auth_method" validate:"oneof=LOGIN PLAIN CRAM-MD5 AUTO"`

	// UseTLS upgrades the connection with STARTTLS before authenticating.
	UseTLS bool `json:"use_tls"`

	// Timeout applies per I/O call: connect, send, receive.
	Timeout time.Duration `json:"timeout"`

	// MaxRetries bounds re-initialization after recoverable failures.
	MaxRetries uint16 `json:"max_retries"`

	// EHLODomain is the domain announced in the EHLO greeting.
	EHLODomain string `json:"ehlo_domain"`
}

// DefaultConfig returns a Config with the defaults the original tool ships:
// port 25, automatic mechanism selection, no TLS, 30s timeout, 3 retries.
func DefaultConfig(host string) Config {
	return Config{
		Host:       host,
		Port:       25,
		AuthMethod: AuthAuto,
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		EHLODomain: "localhost",
	}
}

// Validate checks the Config against its validation tags.
func (c Config) Validate() error {
	return config.ValidateStruct(c)
}

// Params describes the credential space and concurrency of a probe run.
type Params struct {
	// Usernames is the ordered outer sequence of the cartesian product.
	Usernames []string `json:"usernames" validate:"required,min=1"`

	// Passwords is the ordered inner sequence of the cartesian product.
	Passwords []string `json:"passwords" validate:"required,min=1"`

	// Parallelism is the number of concurrent connection workers.
	Parallelism uint16 `json:"parallelism" validate:"required,min=1"`

	// StopOnFirstSuccess stops handing out credentials after the first
	// accepted pair. In-flight attempts complete normally.
	StopOnFirstSuccess bool `json:"stop_on_first_success"`
}

// Validate checks the Params against its validation tags.
func (p Params) Validate() error {
	return config.ValidateStruct(p)
}

// Total returns the number of credential pairs the run will attempt.
func (p Params) Total() uint64 {
	return uint64(len(p.Usernames)) * uint64(len(p.Passwords))
}
