package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	assert.Empty(t, cfg.Validate())
	assert.Equal(t, 100*time.Millisecond, cfg.CoioTimeoutDuration())
	assert.Equal(t, time.Second, cfg.FiberStandbyTimeoutDuration())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bridge.yaml")
	body := `
buffer: 256
fibers: 4
max_batch: 8
coio_timeout: 50ms
fiber_standby_timeout: 2s
runtime:
  type: cur_thread
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.Buffer)
	assert.Equal(t, 4, cfg.Fibers)
	assert.Equal(t, 8, cfg.MaxBatch)
	assert.Equal(t, RuntimeCurrentThread, cfg.Runtime.Kind)
}

func TestValidateRejectsBadFields(t *testing.T) {
	cfg := Default()
	cfg.Buffer = 0
	cfg.MaxBatch = 999
	cfg.CoioTimeout = "not-a-duration"
	cfg.Runtime.Kind = "bogus"

	errs := cfg.Validate()
	require.NotEmpty(t, errs)
	assert.NotEmpty(t, errs.Error())
}

func TestValidateRejectsThreadCountUnderCurrentThread(t *testing.T) {
	cfg := Default()
	cfg.Runtime.Kind = RuntimeCurrentThread
	n := 4
	cfg.Runtime.ThreadCount = &n

	assert.NotEmpty(t, cfg.Validate())
}

func TestLoadRejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bridge.yaml")
	body := `
buffer: 256
fibrs: 4
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
