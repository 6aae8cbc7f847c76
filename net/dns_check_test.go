package probenet

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credprobe-dev/credprobe/application/config"
)

// answerPayload carries one question for example.com A IN and one
// compressed answer.
var answerPayload = []byte{
	0x00, 0x01, 0x81, 0x80,
	0x00, 0x01, 0x00, 0x01,
	0x00, 0x00, 0x00, 0x00,
	0x07, 'e', 'x', 'a', 'm', 'p', 'l', 'e',
	0x03, 'c', 'o', 'm', 0x00,
	0x00, 0x01, 0x00, 0x01,
	0xC0, 0x0C,
	0x00, 0x01, 0x00, 0x01,
	0x00, 0x00, 0x00, 0x3C,
	0x00, 0x04, 0x5D, 0xB8, 0xD8, 0x22,
}

func TestRunDNSDecode_Base64Payload(t *testing.T) {
	cfg := config.Config{
		"payload_b64": base64.StdEncoding.EncodeToString(answerPayload),
	}

	result, err := RunDNSDecode(context.Background(), cfg)
	require.NoError(t, err)
	require.True(t, result.IsSuccess())

	assert.Equal(t, uint16(0x0001), result.Data["id"])
	assert.Equal(t, true, result.Data["response"])

	questions, ok := result.Data["questions"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, questions, 1)
	assert.Equal(t, "example.com", questions[0]["name"])

	answers, ok := result.Data["answers"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, answers, 1)
	assert.Equal(t, uint32(60), answers[0]["ttl"])
	assert.Equal(t, 4, answers[0]["rdlength"])
}

func TestRunDNSDecode_HexPayload(t *testing.T) {
	cfg := config.Config{
		"payload_hex": hex.EncodeToString(answerPayload),
	}

	result, err := RunDNSDecode(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, result.IsSuccess())
}

func TestRunDNSDecode_MissingPayload(t *testing.T) {
	result, err := RunDNSDecode(context.Background(), config.Config{})
	require.NoError(t, err)
	assert.True(t, result.IsError())
	assert.Equal(t, "config", result.Error.Type)
}

func TestRunDNSDecode_BadEncoding(t *testing.T) {
	result, err := RunDNSDecode(context.Background(), config.Config{"payload_b64": "%%%"})
	require.NoError(t, err)
	assert.True(t, result.IsError())
	assert.Equal(t, "config", result.Error.Type)
}

func TestRunDNSDecode_MalformedMessage(t *testing.T) {
	result, err := RunDNSDecode(context.Background(), config.Config{
		"payload_hex": "12345678",
	})
	require.NoError(t, err)
	assert.True(t, result.IsError())
	assert.Equal(t, "dns", result.Error.Type)
}
