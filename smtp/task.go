package smtp

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/credprobe-dev/credprobe/domain/entities"
	"github.com/credprobe-dev/credprobe/domain/errors"
	"github.com/credprobe-dev/credprobe/domain/ports"
)

// ConnectionState is the phase of a connection task. Transitions run
// forward only, except that a STARTTLS upgrade re-enters StateConnected
// so EHLO is repeated on the encrypted channel.
type ConnectionState int

const (
	StateInit ConnectionState = iota
	StateConnected
	StateEHLOSent
	StateAuthStarted
	StateAuthUsername
	StateAuthPassword
	StateAuthComplete
	StateError
)

var stateNames = map[ConnectionState]string{
	StateInit:         "INIT",
	StateConnected:    "CONNECTED",
	StateEHLOSent:     "EHLO_SENT",
	StateAuthStarted:  "AUTH_STARTED",
	StateAuthUsername: "AUTH_USERNAME",
	StateAuthPassword: "AUTH_PASSWORD",
	StateAuthComplete: "AUTH_COMPLETE",
	StateError:        "ERROR",
}

func (s ConnectionState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ConnectionState(%d)", int(s))
}

// transientReplyError marks a 4xx server reply. Retried within the budget;
// if the budget runs out it degrades to a negative outcome. The reply text
// is carried for that outcome but never printed.
type transientReplyError struct {
	code int
	text string
}

func (e *transientReplyError) Error() string {
	return fmt.Sprintf("transient server reply %d", e.code)
}

// connTask attempts exactly one credential pair against one server, from
// cold TCP up to a decisive outcome. Each attempt runs on a fresh stream
// from the factory; the task never sends QUIT - a rejected connection is
// discarded, not closed politely.
type connTask struct {
	cfg     Config
	factory ports.StreamFactory
	logger  *slog.Logger
	state   ConnectionState
}

func newConnTask(cfg Config, factory ports.StreamFactory, logger *slog.Logger) *connTask {
	return &connTask{cfg: cfg, factory: factory, logger: logger, state: StateInit}
}

// run drives attempts until a decisive outcome or the retry budget is
// spent. Recoverable failures (I/O, TLS handshake, 4xx replies) re-run
// from a cold connection; protocol and negotiation failures do not.
func (t *connTask) run(username, password string) (entities.AuthOutcome, error) {
	var lastErr error
	for attempt := uint16(0); attempt <= t.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			t.logger.Debug("retrying attempt",
				"host", t.cfg.Host, "attempt", attempt, "error", lastErr)
		}
		outcome, err := t.attempt(username, password)
		if err == nil {
			return outcome, nil
		}
		t.state = StateError
		if !retriable(err) {
			return entities.AuthOutcome{}, err
		}
		lastErr = err
	}

	// A 4xx that survived every retry is still a verdict on the
	// credential, not a transport failure.
	var transient *transientReplyError
	if stderrors.As(lastErr, &transient) {
		return t.outcome(username, password, transient.code, transient.text), nil
	}
	return entities.AuthOutcome{}, lastErr
}

func retriable(err error) bool {
	var netErr *errors.NetworkError
	if stderrors.As(err, &netErr) {
		return true
	}
	var tlsErr *errors.TLSError
	if stderrors.As(err, &tlsErr) {
		return true
	}
	var transient *transientReplyError
	return stderrors.As(err, &transient)
}

// attempt runs the state machine once over a fresh stream.
func (t *connTask) attempt(username, password string) (entities.AuthOutcome, error) {
	stream := t.factory()
	defer stream.Close()

	target := fmt.Sprintf("%s:%d", t.cfg.Host, t.cfg.Port)
	t.state = StateInit
	upgraded := false
	var (
		r          *replyReader
		method     AuthMethod
		advertised []string
	)

	for {
		switch t.state {
		case StateInit:
			if err := stream.Connect(t.cfg.Host, t.cfg.Port, t.cfg.Timeout); err != nil {
				return entities.AuthOutcome{}, &errors.NetworkError{Err: err, Operation: "connect", Target: target}
			}
			r = newReplyReader(stream)
			code, _, err := r.readReply()
			if err != nil {
				return entities.AuthOutcome{}, err
			}
			if !isPositive(code) {
				if isTransient(code) {
					return entities.AuthOutcome{}, &transientReplyError{code: code}
				}
				return entities.AuthOutcome{}, &errors.ProtocolError{Reason: fmt.Sprintf("unexpected greeting code %d", code)}
			}
			t.state = StateConnected

		case StateConnected:
			if err := t.send(stream, "EHLO "+t.cfg.EHLODomain+"\r\n", target); err != nil {
				return entities.AuthOutcome{}, err
			}
			code, text, err := r.readReply()
			if err != nil {
				return entities.AuthOutcome{}, err
			}
			if !isPositive(code) {
				if isTransient(code) {
					return entities.AuthOutcome{}, &transientReplyError{code: code}
				}
				return entities.AuthOutcome{}, &errors.ProtocolError{Reason: fmt.Sprintf("EHLO rejected with code %d", code)}
			}
			advertised = parseAuthCapabilities(text)
			t.state = StateEHLOSent

		case StateEHLOSent:
			if t.cfg.UseTLS && !upgraded {
				if err := t.startTLS(stream, r, target); err != nil {
					return entities.AuthOutcome{}, err
				}
				upgraded = true
				// The plaintext read buffer must not survive the
				// handshake; frame replies from the TLS layer on.
				r = newReplyReader(stream)
				t.state = StateConnected
				continue
			}

			var err error
			method, err = resolveMethod(t.cfg.AuthMethod, advertised)
			if err != nil {
				return entities.AuthOutcome{}, err
			}

			switch method {
			case AuthLogin:
				if err := t.authCommand(stream, r, "AUTH LOGIN\r\n", target); err != nil {
					return entities.AuthOutcome{}, err
				}
				t.state = StateAuthStarted

			case AuthPlain:
				// Single-step variant: the username and password
				// states collapse into the final read.
				blob := base64.StdEncoding.EncodeToString([]byte("\x00" + username + "\x00" + password))
				if err := t.send(stream, "AUTH PLAIN "+blob+"\r\n", target); err != nil {
					return entities.AuthOutcome{}, err
				}
				t.state = StateAuthPassword

			case AuthCRAMMD5:
				resp, err := t.cramResponse(stream, r, username, password, target)
				if err != nil {
					return entities.AuthOutcome{}, err
				}
				if err := t.send(stream, resp+"\r\n", target); err != nil {
					return entities.AuthOutcome{}, err
				}
				t.state = StateAuthPassword

			default:
				return entities.AuthOutcome{}, &errors.AuthError{Reason: fmt.Sprintf("unsupported mechanism %q", string(method))}
			}

		case StateAuthStarted:
			// LOGIN username step.
			encoded := base64.StdEncoding.EncodeToString([]byte(username))
			if err := t.send(stream, encoded+"\r\n", target); err != nil {
				return entities.AuthOutcome{}, err
			}
			code, text, err := r.readReply()
			if err != nil {
				return entities.AuthOutcome{}, err
			}
			if isPermanent(code) {
				// Decisive rejection of the credential.
				t.state = StateAuthComplete
				return t.outcome(username, password, code, text), nil
			}
			if isTransient(code) {
				return entities.AuthOutcome{}, &transientReplyError{code: code, text: text}
			}
			if !isIntermediate(code) {
				return entities.AuthOutcome{}, &errors.ProtocolError{Reason: fmt.Sprintf("unexpected code %d after username", code)}
			}
			t.state = StateAuthUsername

		case StateAuthUsername:
			// LOGIN password step; the verdict is the next reply.
			encoded := base64.StdEncoding.EncodeToString([]byte(password))
			if err := t.send(stream, encoded+"\r\n", target); err != nil {
				return entities.AuthOutcome{}, err
			}
			t.state = StateAuthPassword

		case StateAuthPassword:
			code, text, err := r.readReply()
			if err != nil {
				return entities.AuthOutcome{}, err
			}
			if isTransient(code) {
				return entities.AuthOutcome{}, &transientReplyError{code: code, text: text}
			}
			t.state = StateAuthComplete
			return t.outcome(username, password, code, text), nil

		default:
			return entities.AuthOutcome{}, &errors.ProtocolError{Reason: fmt.Sprintf("task reached invalid state %v", t.state)}
		}
	}
}

// startTLS performs the STARTTLS exchange and the handshake.
func (t *connTask) startTLS(stream ports.ByteStream, r *replyReader, target string) error {
	if err := t.send(stream, "STARTTLS\r\n", target); err != nil {
		return err
	}
	code, _, err := r.readReply()
	if err != nil {
		return err
	}
	if !isPositive(code) {
		if isTransient(code) {
			return &transientReplyError{code: code}
		}
		return &errors.ProtocolError{Reason: fmt.Sprintf("STARTTLS rejected with code %d", code)}
	}
	if err := stream.UpgradeTLS(); err != nil {
		return &errors.TLSError{Err: err, Target: target}
	}
	return nil
}

// authCommand sends an AUTH initiation and requires an intermediate reply.
func (t *connTask) authCommand(stream ports.ByteStream, r *replyReader, cmd, target string) error {
	if err := t.send(stream, cmd, target); err != nil {
		return err
	}
	code, _, err := r.readReply()
	if err != nil {
		return err
	}
	if isTransient(code) {
		return &transientReplyError{code: code}
	}
	if !isIntermediate(code) {
		return &errors.AuthError{Reason: fmt.Sprintf("authentication initialization failed with code %d", code)}
	}
	return nil
}

// cramResponse runs the CRAM-MD5 challenge exchange and returns the
// Base64 response to send.
func (t *connTask) cramResponse(stream ports.ByteStream, r *replyReader, username, password, target string) (string, error) {
	if err := t.send(stream, "AUTH CRAM-MD5\r\n", target); err != nil {
		return "", err
	}
	code, text, err := r.readReply()
	if err != nil {
		return "", err
	}
	if isTransient(code) {
		return "", &transientReplyError{code: code}
	}
	if !isIntermediate(code) {
		return "", &errors.AuthError{Reason: fmt.Sprintf("authentication initialization failed with code %d", code)}
	}
	challenge, err := decodeChallenge(text)
	if err != nil {
		return "", err
	}
	return cramDigest(username, password, challenge), nil
}

// send writes a full command or payload line.
func (t *connTask) send(stream ports.ByteStream, line, target string) error {
	if _, err := stream.Send([]byte(line)); err != nil {
		return &errors.NetworkError{Err: err, Operation: "send", Target: target}
	}
	return nil
}

// outcome classifies a final reply. Success tracks the 2xx/3xx window;
// anything else, 0 included, is a rejection.
func (t *connTask) outcome(username, password string, code int, text string) entities.AuthOutcome {
	return entities.AuthOutcome{
		Username:     username,
		Password:     password,
		ResponseCode: code,
		ResponseText: text,
		Success:      code >= 200 && code < 400,
	}
}

// cramDigest computes the CRAM-MD5 response for a challenge.
func cramDigest(username, password string, challenge []byte) string {
	mac := hmac.New(md5.New, []byte(password))
	mac.Write(challenge)
	return base64.StdEncoding.EncodeToString([]byte(username + " " + hex.EncodeToString(mac.Sum(nil))))
}

// decodeChallenge strips the reply code from a 334 line and decodes the
// Base64 challenge that follows it.
func decodeChallenge(text string) ([]byte, error) {
	line := strings.TrimRight(text, "\r\n")
	if len(line) > 4 {
		line = line[4:]
	} else {
		line = ""
	}
	challenge, err := base64.StdEncoding.DecodeString(strings.TrimSpace(line))
	if err != nil {
		return nil, &errors.ProtocolError{Reason: "server challenge is not valid Base64"}
	}
	return challenge, nil
}
