// Package errors provides domain-specific error types for the toolkit.
// All error types support error unwrapping via errors.As() and errors.Is().
package errors

import (
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/credprobe-dev/credprobe/domain/entities"
)

// ErrorDetail is an alias to entities.ErrorDetail for convenience.
type ErrorDetail = entities.ErrorDetail

// DetailedError is an interface for custom error types that can convert
// themselves to a structured ErrorDetail. New error types only need to
// implement this interface without modifying ToErrorDetail.
type DetailedError interface {
	error
	ToErrorDetail() *entities.ErrorDetail
}

// ToErrorDetail converts a Go error to our structured ErrorDetail.
// This function recognizes custom error types and categorizes them appropriately.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	// If the error is already a *ErrorDetail (entity), use it directly.
	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	// Check if error matches domain errors.DetailedError interface
	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}

	// Generic error - categorize as internal
	return &entities.ErrorDetail{
		Message: err.Error(),
		Type:    "internal",
	}
}

// NetworkError represents a transport operation failure (connect, send, recv).
// The connection task treats these as recoverable within its retry budget.
type NetworkError struct {
	Err       error
	Operation string
	Target    string
}

func (e *NetworkError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("network %s failed for %s: %v", e.Operation, e.Target, e.Err)
	}
	return fmt.Sprintf("network %s failed: %v", e.Operation, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func (e *NetworkError) Timeout() bool {
	if t, ok := e.Err.(interface{ Timeout() bool }); ok {
		return t.Timeout()
	}
	return false
}

// ToErrorDetail implements DetailedError.
func (e *NetworkError) ToErrorDetail() *entities.ErrorDetail {
	detail := &entities.ErrorDetail{Message: e.Error(), Type: "network", Code: e.Operation}
	if e.Timeout() {
		detail.Type = "timeout"
		detail.IsTimeout = true
	}
	return detail
}

// TimeoutError represents a timeout during an operation.
type TimeoutError struct {
	Operation string
	Target    string
	Duration  time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("%s timeout after %v (target: %s)", e.Operation, e.Duration, e.Target)
	}
	return fmt.Sprintf("%s timeout after %v", e.Operation, e.Duration)
}

func (e *TimeoutError) Timeout() bool {
	return true
}

// ToErrorDetail implements DetailedError.
func (e *TimeoutError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "timeout", Code: e.Operation, IsTimeout: true}
}

// TLSError represents a TLS handshake failure after STARTTLS.
// Recoverable within the retry budget.
type TLSError struct {
	Err    error
	Target string
}

func (e *TLSError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("tls handshake with %s failed: %v", e.Target, e.Err)
	}
	return fmt.Sprintf("tls handshake failed: %v", e.Err)
}

func (e *TLSError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *TLSError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "tls", Code: "handshake"}
}

// ProtocolError represents a malformed or unexpected SMTP reply.
// Not recoverable; the connection task surfaces it as a terminal error.
type ProtocolError struct {
	Reason string
	Reply  string
}

func (e *ProtocolError) Error() string {
	if e.Reply != "" {
		return fmt.Sprintf("smtp protocol error: %s (reply: %q)", e.Reason, e.Reply)
	}
	return fmt.Sprintf("smtp protocol error: %s", e.Reason)
}

// ToErrorDetail implements DetailedError.
func (e *ProtocolError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "protocol", Code: "smtp_reply"}
}

// AuthError represents an authentication negotiation failure, as opposed to
// a credential rejection, which is an outcome rather than an error.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("smtp auth error: %s", e.Reason)
}

// ToErrorDetail implements DetailedError.
func (e *AuthError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "auth", Code: "negotiation"}
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Err   error
	Field string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config validation failed for field '%s': %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ConfigError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "config", Code: e.Field}
}

// DNSWireError represents a DNS wire-format decoding failure.
type DNSWireError struct {
	Err    error
	Offset int
}

func (e *DNSWireError) Error() string {
	return fmt.Sprintf("dns decode failed at offset %d: %v", e.Offset, e.Err)
}

func (e *DNSWireError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *DNSWireError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "dns", Code: "decode"}
}

// SchemaError represents a schema generation or validation error.
type SchemaError struct {
	Err  error
	Type string
}

func (e *SchemaError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("schema error for type %s: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("schema error: %v", e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *SchemaError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "config", Code: "schema"}
}
