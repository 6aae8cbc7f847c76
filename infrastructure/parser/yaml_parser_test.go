package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credprobe-dev/credprobe/application/config"
)

func TestParseConfig(t *testing.T) {
	data := []byte(`
host: mail.example.com
port: 587
use_tls: true
usernames:
  - alice
  - bob
`)

	cfg, err := ParseConfig(data)
	require.NoError(t, err)

	host, ok := config.GetString(cfg, "host")
	require.True(t, ok)
	assert.Equal(t, "mail.example.com", host)

	port, ok := config.GetInt(cfg, "port")
	require.True(t, ok)
	assert.Equal(t, 587, port)

	useTLS, ok := config.GetBool(cfg, "use_tls")
	require.True(t, ok)
	assert.True(t, useTLS)

	users, ok := config.GetStringSlice(cfg, "usernames")
	require.True(t, ok)
	assert.Equal(t, []string{"alice", "bob"}, users)
}

func TestParseConfig_Invalid(t *testing.T) {
	_, err := ParseConfig([]byte("host: [unclosed"))
	assert.Error(t, err)
}

func TestLoadConfigFile_Missing(t *testing.T) {
	_, err := LoadConfigFile("does-not-exist.yaml")
	assert.Error(t, err)
}
