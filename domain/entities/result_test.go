package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultSuccess(t *testing.T) {
	data := map[string]any{"attempts": 6}
	result := ResultSuccess("credentials accepted", data)

	assert.Equal(t, ResultStatusSuccess, result.Status)
	assert.Equal(t, "credentials accepted", result.Message)
	assert.Equal(t, data, result.Data)
	assert.True(t, result.IsSuccess())
	assert.False(t, result.IsFailure())
	assert.False(t, result.IsError())
}

func TestResultFailure(t *testing.T) {
	data := map[string]any{"attempts": 6}
	result := ResultFailure("no credential accepted", data)

	assert.Equal(t, ResultStatusFailure, result.Status)
	assert.False(t, result.IsSuccess())
	assert.True(t, result.IsFailure())
	assert.False(t, result.IsError())
}

func TestResultError(t *testing.T) {
	err := NewErrorDetail("auth", "no shared authentication mechanism").WithCode("negotiation")
	result := ResultError(err)

	assert.Equal(t, ResultStatusError, result.Status)
	assert.Equal(t, "no shared authentication mechanism", result.Message)
	require.NotNil(t, result.Error)
	assert.Equal(t, "auth", result.Error.Type)
	assert.True(t, result.IsError())
}

func TestResultWithMetadata(t *testing.T) {
	start := time.Now()
	end := start.Add(250 * time.Millisecond)
	meta := NewRunMetadata(start, end).WithToolVersion("test")

	result := ResultSuccess("ok", nil).WithMetadata(meta)

	require.NotNil(t, result.Metadata)
	assert.Equal(t, 250*time.Millisecond, result.Metadata.Duration)
	assert.Equal(t, "test", result.Metadata.ToolVersion)
}

func TestErrorDetail_Error(t *testing.T) {
	tests := []struct {
		name   string
		detail *ErrorDetail
		want   string
	}{
		{
			name:   "typed with code",
			detail: NewErrorDetail("network", "connect refused").WithCode("connect"),
			want:   "network: connect refused [connect]",
		},
		{
			name:   "internal omits type",
			detail: NewErrorDetail("internal", "boom"),
			want:   "boom",
		},
		{
			name: "wrapped chain",
			detail: &ErrorDetail{
				Type:    "tls",
				Message: "handshake failed",
				Wrapped: NewErrorDetail("network", "reset"),
			},
			want: "tls: handshake failed: network: reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.detail.Error())
		})
	}
}

func TestAuthOutcomeInvariant(t *testing.T) {
	for _, code := range []int{0, 199, 200, 235, 334, 399, 400, 454, 535} {
		outcome := AuthOutcome{ResponseCode: code, Success: code >= 200 && code < 400}
		assert.Equal(t, outcome.ResponseCode >= 200 && outcome.ResponseCode < 400, outcome.Success)
	}
}
