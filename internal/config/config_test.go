package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Selection.Clips)
	assert.Equal(t, 20.0, cfg.Selection.Min)
	assert.Equal(t, 30.0, cfg.Selection.Max)
	assert.Equal(t, "trim", cfg.Selection.Overlap)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
selection:
  clips: 5
  min_duration: 10
  overlap: skip
  weights:
    intensity: 2
    sentiment: 0.5
worker:
  concurrency: 4
`), 0o644))

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Selection.Clips)
	assert.Equal(t, 10.0, cfg.Selection.Min)
	assert.Equal(t, 30.0, cfg.Selection.Max, "unset keys keep their default")
	assert.Equal(t, "skip", cfg.Selection.Overlap)
	assert.Equal(t, 2.0, cfg.Selection.Weights.Intensity)
	assert.Equal(t, 0.5, cfg.Selection.Weights.Sentiment)
	assert.Equal(t, 4, cfg.Worker.Concurrency)
}

func TestLoad_BadYAML(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte("selection: ["), 0o644))
	_, err := Load(p)
	require.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"HLSCENE_CLIPS":        "7",
		"HLSCENE_MAX_DURATION": "45.5",
		"HLSCENE_WEBHOOK_URL":  "http://hooks.local/done",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	cfg := Default()
	require.NoError(t, applyEnv(cfg, lookup))
	assert.Equal(t, 7, cfg.Selection.Clips)
	assert.Equal(t, 45.5, cfg.Selection.Max)
	assert.Equal(t, "http://hooks.local/done", cfg.Publish.WebhookURL)

	env["HLSCENE_WORKERS"] = "many"
	require.Error(t, applyEnv(Default(), lookup))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero clips", func(c *Config) { c.Selection.Clips = 0 }},
		{"zero min", func(c *Config) { c.Selection.Min = 0 }},
		{"min above max", func(c *Config) { c.Selection.Min = 40 }},
		{"unknown overlap", func(c *Config) { c.Selection.Overlap = "merge" }},
		{"negative weight", func(c *Config) { c.Selection.Weights.Sentiment = -1 }},
		{"threshold out of range", func(c *Config) { c.FFmpeg.SceneThreshold = 1.5 }},
		{"no workers", func(c *Config) { c.Worker.Concurrency = 0 }},
		{"no queue", func(c *Config) { c.Worker.QueueSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Selection.Clips = 9
	require.NoError(t, cfg.Save(p))

	back, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 9, back.Selection.Clips)
}
