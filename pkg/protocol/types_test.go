package protocol

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, uint64(3145728), cfg.Workload.TotalBytes)
	assert.Equal(t, uint32(1000), cfg.Workload.DeadTimeMicros)
	assert.Equal(t, "none", cfg.Workload.Policy)
	assert.Equal(t, "off", cfg.PowerLoss.Mode)
	assert.Equal(t, "monotonic", cfg.Clock.Source)
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brownout.yaml")
	doc := `
workload:
  policy: linear
  fail_threshold: 2
power_loss:
  mode: periodic
  interval: 20ms
clock:
  source: tick
  tick_period: 50us
observability:
  log_format: text
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "linear", cfg.Workload.Policy)
	assert.Equal(t, 2, cfg.Workload.FailThreshold)
	assert.Equal(t, 8, cfg.Workload.SuccessThreshold, "omitted keys keep defaults")
	assert.Equal(t, uint64(3145728), cfg.Workload.TotalBytes)
	assert.Equal(t, "20ms", cfg.PowerLoss.Interval)
	assert.Equal(t, "tick", cfg.Clock.Source)
	assert.Equal(t, "50us", cfg.Clock.TickPeriod)
	assert.Equal(t, "text", cfg.Observability.LogFormat)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workload: [1, 2"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}
