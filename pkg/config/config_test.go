package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFillsEveryTunable(t *testing.T) {
	cfg := Default("node-a")

	assert.Equal(t, "node-a", cfg.NodeID)
	assert.Equal(t, 5*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 15*time.Second, cfg.HeartbeatTimeout)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 1, cfg.RequestRetry)
	assert.True(t, cfg.PreferLocal)
	assert.Equal(t, time.Minute, cfg.CacheDefaultTTL)
	assert.NotZero(t, cfg.Breaker.MaxFailures)
}

func TestNewAppliesOptionsOverDefaults(t *testing.T) {
	cfg := New("node-b",
		WithHeartbeat(time.Second, 3*time.Second),
		WithRequestRetry(2*time.Second, 4),
		WithPreferLocal(false),
	)

	assert.Equal(t, "node-b", cfg.NodeID)
	assert.Equal(t, time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 3*time.Second, cfg.HeartbeatTimeout)
	assert.Equal(t, 2*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 4, cfg.RequestRetry)
	assert.False(t, cfg.PreferLocal)
}

func TestLoadParsesValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
nodeId: node-c
requestTimeout: 2500ms
requestRetry: 3
preferLocal: false
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "node-c", cfg.NodeID)
	assert.Equal(t, 2500*time.Millisecond, cfg.RequestTimeout)
	assert.Equal(t, 3, cfg.RequestRetry)
	assert.False(t, cfg.PreferLocal)
	// Fields absent from the file keep Default's values.
	assert.Equal(t, 5*time.Second, cfg.HeartbeatInterval)
}

func TestLoadRequiresNodeID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`requestRetry: 2`), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broker.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nodeId: [this is not"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
