// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package jsonrelay

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jsonrelay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
relay:
    listeners:
        - ":6667"
        - "127.0.0.1:6697"
    upstreams:
        - address: "irc.example.com:6697"
          tls: true
          verify-tls: true
        - address: "irc.example.com:6667"
    eager-json: true
    max-sendq: "32k"
    logging:
        raw: "true"
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{":6667", "127.0.0.1:6697"}, config.Relay.Listeners)
	require.Len(t, config.Relay.Upstreams, 2)
	assert.True(t, config.Relay.Upstreams[0].UseTLS)
	assert.True(t, config.Relay.Upstreams[0].VerifyTLS)
	assert.Equal(t, "irc.example.com:6667", config.Relay.Upstreams[1].Address)
	assert.True(t, config.Relay.EagerJSON)
	assert.True(t, config.LogRaw())

	max, err := config.MaxSendQBytes()
	require.NoError(t, err)
	assert.Equal(t, uint64(32*1024), max)
}

func TestLoadConfigRequiresListeners(t *testing.T) {
	path := writeConfig(t, `
relay:
    upstreams:
        - address: "irc.example.com:6667"
`)
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigRequiresUpstream(t *testing.T) {
	path := writeConfig(t, `
relay:
    listeners:
        - ":6667"
`)
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
relay:
    listeners:
        - ":6667"
    upstreams:
        - address: "irc.example.com:6667"
`)
	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.False(t, config.Relay.EagerJSON)
	assert.False(t, config.LogRaw())
	max, err := config.MaxSendQBytes()
	require.NoError(t, err)
	assert.Zero(t, max, "no cap configured means no cap")
}
