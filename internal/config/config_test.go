package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigYaml(t *testing.T) {
	t.Setenv(AppTokenEnv, "")

	cfg, err := Load(filepath.Join("testdata", "config.yml"), false)
	require.NoError(t, err)

	assert.Equal(t, "tcp://mqtt.example.org:1883", cfg.Broker)
	assert.Equal(t, "inbox", cfg.Username)
	assert.Equal(t, "hunter2", cfg.Password)
	assert.Equal(t, "mesht/relay", cfg.RootTopic)
	assert.Equal(t, "c2VjcmV0LWFwcC10b2tlbg==", cfg.AppToken)
	assert.Equal(t, []string{"cmV2b2tlZC1hcHAtdG9rZW4="}, cfg.RevokedTokens)
	assert.Equal(t, Duration(90*time.Minute), cfg.DedupTTL)
	assert.True(t, cfg.UDP.Enabled)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, defaultNatsSubject, cfg.NATS.Subject)
	assert.Equal(t, 16, cfg.Hub.QueueSize)
	assert.Equal(t, defaultInboxSize, cfg.Inbox.Capacity)
}

func TestLoadTokenFromEnvironment(t *testing.T) {
	t.Setenv(AppTokenEnv, "ZW52LWFwcC10b2tlbi0xMjM=")

	cfg, err := Load(filepath.Join("testdata", "config.yml"), false)
	require.NoError(t, err)
	assert.Equal(t, "ZW52LWFwcC10b2tlbi0xMjM=", cfg.AppToken)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"), false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv(AppTokenEnv, "")

	tests := []struct {
		name string
		body string
	}{
		{"missing token", "udp:\n  enabled: true\n"},
		{"no source", "app_token: c2VjcmV0LWFwcC10b2tlbg==\n"},
		{"bad scheme", "app_token: abc\nbroker: http://example.org\nroot_topic: x\n"},
		{"broker without topic", "app_token: abc\nbroker: example.org:1883\n"},
		{"bad nats url", "app_token: abc\nudp:\n  enabled: true\nnats:\n  url: '::nope'\n"},
		{"bad duration", "app_token: abc\nudp:\n  enabled: true\ndedup_ttl: soon\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body), false)
			assert.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv(AppTokenEnv, "")
	path := filepath.Join(t.TempDir(), "config.yml")

	in := &Configuration{
		AppToken:  "c2VjcmV0LWFwcC10b2tlbg==",
		Broker:    "ssl://mqtt.example.org:8883",
		RootTopic: "mesht/relay",
		DedupTTL:  Duration(time.Hour),
	}
	require.NoError(t, Save(path, in))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "dedup_ttl: 1h0m0s")

	out, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, in.Broker, out.Broker)
	assert.Equal(t, in.DedupTTL, out.DedupTTL)
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MESH_INBOX_TEST_VALUE=from-dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("MESH_INBOX_TEST_VALUE") })

	require.NoError(t, LoadEnv(path))
	assert.Equal(t, "from-dotenv", os.Getenv("MESH_INBOX_TEST_VALUE"))

	assert.NoError(t, LoadEnv(filepath.Join(t.TempDir(), "missing.env")))
}
