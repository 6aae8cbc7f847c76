package probenet

import (
	"bytes"
	"context"
	"encoding/base64"
	stderrors "errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credprobe-dev/credprobe/application/config"
	"github.com/credprobe-dev/credprobe/domain/ports"
	"github.com/credprobe-dev/credprobe/smtp"
)

// loginStream scripts a minimal AUTH LOGIN server accepting one pair.
type loginStream struct {
	goodUser  string
	goodPass  string
	rbuf      bytes.Buffer
	authState int
	user      string
}

func loginFactory(goodUser, goodPass string) ports.StreamFactory {
	return func() ports.ByteStream {
		return &loginStream{goodUser: goodUser, goodPass: goodPass}
	}
}

func (m *loginStream) Connect(string, uint16, time.Duration) error {
	m.rbuf.WriteString("220 mock ready\r\n")
	return nil
}

func (m *loginStream) Send(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\r\n")
	switch {
	case m.authState == 1:
		decoded, _ := base64.StdEncoding.DecodeString(line)
		m.user = string(decoded)
		m.authState = 2
		m.rbuf.WriteString("334 UGFzc3dvcmQ6\r\n")
	case m.authState == 2:
		decoded, _ := base64.StdEncoding.DecodeString(line)
		m.authState = 0
		if m.user == m.goodUser && string(decoded) == m.goodPass {
			m.rbuf.WriteString("235 ok\r\n")
		} else {
			m.rbuf.WriteString("535 no\r\n")
		}
	case strings.HasPrefix(line, "EHLO "):
		m.rbuf.WriteString("250-mock\r\n250 AUTH LOGIN\r\n")
	case line == "AUTH LOGIN":
		m.authState = 1
		m.rbuf.WriteString("334 VXNlcm5hbWU6\r\n")
	default:
		m.rbuf.WriteString("500 what\r\n")
	}
	return len(p), nil
}

func (m *loginStream) Recv(p []byte) (int, error) {
	if m.rbuf.Len() == 0 {
		return 0, io.EOF
	}
	return m.rbuf.Read(p)
}

func (m *loginStream) UpgradeTLS() error { return stderrors.New("not supported") }
func (m *loginStream) Close() error      { return nil }

func probeConfig() config.Config {
	return config.Config{
		"host":       "mail.example.com",
		"port":       587,
		"usernames":  []string{"alice", "bob"},
		"passwords":  []string{"one", "s3cret"},
		"timeout_ms": 1000,
	}
}

func TestRunSMTPProbe_MissingHost(t *testing.T) {
	cfg := probeConfig()
	delete(cfg, "host")

	result, err := RunSMTPProbe(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, result.IsError())
	require.NotNil(t, result.Error)
	assert.Equal(t, "config", result.Error.Type)
}

func TestRunSMTPProbe_InvalidPort(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"port too low", 0},
		{"port negative", -1},
		{"port too high", 65536},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := probeConfig()
			cfg["port"] = tt.port

			result, err := RunSMTPProbe(context.Background(), cfg)
			require.NoError(t, err)
			assert.True(t, result.IsError())
		})
	}
}

func TestRunSMTPProbe_MissingCredentialLists(t *testing.T) {
	cfg := probeConfig()
	delete(cfg, "usernames")

	result, err := RunSMTPProbe(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, result.IsError())
}

func TestRunSMTPProbe_CredentialAccepted(t *testing.T) {
	result, err := RunSMTPProbe(context.Background(), probeConfig(),
		WithProberOptions(smtp.WithStreamFactory(loginFactory("alice", "s3cret"))))
	require.NoError(t, err)

	assert.True(t, result.IsSuccess())
	assert.Equal(t, uint64(4), result.Data["attempts"])
	assert.Equal(t, "completed", result.Data["status"])

	successes, ok := result.Data["successes"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, successes, 1)
	assert.Equal(t, "alice", successes[0]["username"])
	assert.Equal(t, "s3cret", successes[0]["password"])
	assert.Equal(t, 235, successes[0]["response_code"])

	require.NotNil(t, result.Metadata)
	assert.Equal(t, Version, result.Metadata.ToolVersion)
}

func TestRunSMTPProbe_NothingAccepted(t *testing.T) {
	result, err := RunSMTPProbe(context.Background(), probeConfig(),
		WithProberOptions(smtp.WithStreamFactory(loginFactory("nobody", "never"))))
	require.NoError(t, err)

	assert.True(t, result.IsFailure())
	assert.Equal(t, uint64(4), result.Data["attempts"])
}

func TestRunSMTPProbe_StopOnFirstSuccess(t *testing.T) {
	cfg := probeConfig()
	cfg["stop_on_first_success"] = true

	result, err := RunSMTPProbe(context.Background(), cfg,
		WithProberOptions(smtp.WithStreamFactory(loginFactory("alice", "one"))))
	require.NoError(t, err)

	assert.True(t, result.IsSuccess())
	assert.Equal(t, "stopped_early", result.Data["status"])
}

func TestSMTPProbeConfigSchema(t *testing.T) {
	schemaJSON := SMTPProbeConfigSchema()
	assert.Contains(t, string(schemaJSON), "usernames")
	assert.Contains(t, string(schemaJSON), "stop_on_first_success")
}
