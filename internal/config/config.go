package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/forPelevin/hlscene/internal/domain/highlights"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Paths     PathsConfig     `yaml:"paths"`
	Selection SelectionConfig `yaml:"selection"`
	FFmpeg    FFmpegConfig    `yaml:"ffmpeg"`
	Whisper   WhisperConfig   `yaml:"whisper"`
	Worker    WorkerConfig    `yaml:"worker"`
	Publish   PublishConfig   `yaml:"publish"`
}

type ServerConfig struct {
	Addr           string `yaml:"addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

type PathsConfig struct {
	Upload  string `yaml:"upload"`
	Results string `yaml:"results"`
	Cache   string `yaml:"cache"`
}

// SelectionConfig carries the defaults applied when a caller does not set
// its own clip count or duration bounds.
type SelectionConfig struct {
	Clips   int                `yaml:"clips"`
	Min     float64            `yaml:"min_duration"`
	Max     float64            `yaml:"max_duration"`
	Overlap string             `yaml:"overlap"`
	Weights highlights.Weights `yaml:"weights"`
}

type FFmpegConfig struct {
	FFmpegPath     string  `yaml:"ffmpeg_path"`
	FFprobePath    string  `yaml:"ffprobe_path"`
	SceneThreshold float64 `yaml:"scene_threshold"`
}

type WhisperConfig struct {
	Bin   string `yaml:"bin"`
	Model string `yaml:"model"`
}

type WorkerConfig struct {
	Concurrency int `yaml:"concurrency"`
	QueueSize   int `yaml:"queue_size"`
}

type PublishConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":5000",
			MaxUploadBytes: 500 << 20,
		},
		Paths: PathsConfig{
			Upload:  "uploads",
			Results: "results",
			Cache:   ".cache",
		},
		Selection: SelectionConfig{
			Clips:   3,
			Min:     20,
			Max:     30,
			Overlap: string(highlights.OverlapTrim),
			Weights: highlights.DefaultWeights(),
		},
		FFmpeg: FFmpegConfig{
			FFmpegPath:     "ffmpeg",
			FFprobePath:    "ffprobe",
			SceneThreshold: 0.3,
		},
		Whisper: WhisperConfig{
			Bin:   ".cache/bin/whisper.cpp",
			Model: ".cache/models/ggml-base.bin",
		},
		Worker: WorkerConfig{
			Concurrency: 2,
			QueueSize:   16,
		},
	}
}

// Load reads configuration from path, or from the first config file found
// in the usual places when path is empty. Missing files yield defaults.
// Environment overrides (HLSCENE_*) are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) Validate() error {
	if c.Selection.Clips <= 0 {
		return fmt.Errorf("clips must be > 0")
	}
	if c.Selection.Min <= 0 {
		return fmt.Errorf("min duration must be > 0")
	}
	if c.Selection.Min > c.Selection.Max {
		return fmt.Errorf("min duration must be <= max duration")
	}
	if _, err := highlights.ParseOverlapPolicy(c.Selection.Overlap); err != nil {
		return err
	}
	if c.Selection.Weights.Intensity < 0 || c.Selection.Weights.Sentiment < 0 {
		return fmt.Errorf("weights must be >= 0")
	}
	if c.FFmpeg.SceneThreshold <= 0 || c.FFmpeg.SceneThreshold >= 1 {
		return fmt.Errorf("scene threshold must be in (0,1)")
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be > 0")
	}
	if c.Worker.QueueSize <= 0 {
		return fmt.Errorf("worker queue size must be > 0")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be > 0")
	}
	return nil
}

func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		"./config.yml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".hlscene", "config.yaml"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

type lookupFunc func(string) (string, bool)

func applyEnv(c *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var firstErr error
	num := func(key string, set func(string) error) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		if err := set(strings.TrimSpace(v)); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("env %s: %w", key, err)
		}
	}
	intVar := func(dst *int) func(string) error {
		return func(s string) error {
			n, err := strconv.Atoi(s)
			if err == nil {
				*dst = n
			}
			return err
		}
	}
	floatVar := func(dst *float64) func(string) error {
		return func(s string) error {
			f, err := strconv.ParseFloat(s, 64)
			if err == nil {
				*dst = f
			}
			return err
		}
	}

	str("HLSCENE_ADDR", &c.Server.Addr)
	str("HLSCENE_UPLOAD_DIR", &c.Paths.Upload)
	str("HLSCENE_RESULTS_DIR", &c.Paths.Results)
	str("HLSCENE_CACHE_DIR", &c.Paths.Cache)
	str("HLSCENE_OVERLAP", &c.Selection.Overlap)
	str("HLSCENE_FFMPEG", &c.FFmpeg.FFmpegPath)
	str("HLSCENE_FFPROBE", &c.FFmpeg.FFprobePath)
	str("HLSCENE_WHISPER_BIN", &c.Whisper.Bin)
	str("HLSCENE_WHISPER_MODEL", &c.Whisper.Model)
	str("HLSCENE_WEBHOOK_URL", &c.Publish.WebhookURL)

	num("HLSCENE_CLIPS", intVar(&c.Selection.Clips))
	num("HLSCENE_MIN_DURATION", floatVar(&c.Selection.Min))
	num("HLSCENE_MAX_DURATION", floatVar(&c.Selection.Max))
	num("HLSCENE_SCENE_THRESHOLD", floatVar(&c.FFmpeg.SceneThreshold))
	num("HLSCENE_WORKERS", intVar(&c.Worker.Concurrency))
	num("HLSCENE_QUEUE_SIZE", intVar(&c.Worker.QueueSize))
	return firstErr
}
