package config

import (
	"crypto/ed25519"
	"crypto/rand"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func testPublicKey(t *testing.T) string {
	t.Helper()
	public, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	key, err := ssh.NewPublicKey(public)
	require.NoError(t, err)
	return strings.TrimSpace(string(ssh.MarshalAuthorizedKey(key)))
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "funcs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel())
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
interpreter:
  maxDepth: 250
  trace: true
serve:
  address: 0.0.0.0:2424
  maxSessionTime: 30m
  authorizedKeys:
    - "`+testPublicKey(t)+`"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())
	assert.Equal(t, 250, cfg.Interpreter.MaxDepth)
	assert.True(t, cfg.Interpreter.Trace)
	assert.Equal(t, "0.0.0.0:2424", cfg.Serve.Address)
	assert.Equal(t, 30*time.Minute, cfg.Serve.MaxSessionTime)
	assert.Len(t, cfg.Serve.AuthorizedKeys, 1)

	assert.Equal(t, Default().Repl.Prompt, cfg.Repl.Prompt)
	assert.Equal(t, Default().Serve.RateLimit, cfg.Serve.RateLimit)
}

func TestLoadConfigErrors(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		expected error
	}{
		{name: "not yaml", body: "logging: [", expected: ErrConfigFileUnmarshallable},
		{name: "bad level", body: "logging:\n  level: loud\n", expected: ErrLoggingLevelInvalid},
		{name: "empty prompt", body: "repl:\n  prompt: \"\"\n", expected: ErrReplPromptMissing},
		{name: "history size", body: "repl:\n  historySize: 0\n", expected: ErrReplHistorySizeInvalid},
		{name: "empty address", body: "serve:\n  address: \"\"\n", expected: ErrServeAddressMissing},
		{name: "empty host key", body: "serve:\n  hostKeyPath: \"\"\n", expected: ErrServeHostKeyPathMissing},
		{name: "rate limit", body: "serve:\n  rateLimit:\n    limit: 0\n", expected: ErrServeRateLimitInvalid},
		{name: "bad key", body: "serve:\n  authorizedKeys: [\"not a key\"]\n", expected: ErrServeAuthorizedKeyInvalid},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.body))
			assert.ErrorIs(t, err, tc.expected)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrConfigFileUnreadable)
}

func TestGenerateConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "funcs.yaml")

	generated, err := GenerateConfig(path)
	require.NoError(t, err)

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, generated, loaded)
}

func TestEnsureHostKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "host_key")

	require.NoError(t, EnsureHostKey(path))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = ssh.ParsePrivateKey(first)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	require.NoError(t, EnsureHostKey(path))
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
