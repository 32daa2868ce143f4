package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/forPelevin/hlscene/internal/config"
	"github.com/forPelevin/hlscene/internal/domain/highlights"
	"github.com/forPelevin/hlscene/internal/logging"
	"github.com/forPelevin/hlscene/internal/ports"
	"github.com/forPelevin/hlscene/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/hlscene/internal/ports/adapters/webhook"
	"github.com/forPelevin/hlscene/internal/ports/adapters/whispercpp"
	"github.com/forPelevin/hlscene/internal/types"
	"github.com/forPelevin/hlscene/internal/usecase"
)

// Config describes one local run of the cut command.
type Config struct {
	InputVideo string
	OutDir     string
	App        *config.Config
	Log        zerolog.Logger
}

func (c Config) Validate() error {
	if c.InputVideo == "" {
		return errors.New("input is empty")
	}
	if _, err := os.Stat(c.InputVideo); err != nil {
		return fmt.Errorf("stat input: %w", err)
	}
	if c.App == nil {
		return errors.New("app config is required")
	}
	return c.App.Validate()
}

// NewUsecase wires the exec-backed adapters described by cfg. Transcription
// is skipped when no whisper model is configured and publishing when no
// webhook is set.
func NewUsecase(cfg *config.Config, log zerolog.Logger) (usecase.Usecase, error) {
	overlap, err := highlights.ParseOverlapPolicy(cfg.Selection.Overlap)
	if err != nil {
		return usecase.Usecase{}, err
	}

	v := ffmpeg.New(cfg.FFmpeg.FFmpegPath, cfg.FFmpeg.FFprobePath, cfg.FFmpeg.SceneThreshold, logging.WithComponent(log, "ffmpeg"))
	deps := usecase.Deps{
		Prober:      v,
		Scenes:      v,
		Intensity:   v,
		Audio:       v,
		Clips:       v,
		Engine:      highlights.NewEngine(cfg.Selection.Weights, overlap),
		ClipWorkers: cfg.Worker.Concurrency,
		Log:         logging.WithComponent(log, "usecase"),
	}
	if cfg.Whisper.Model != "" {
		deps.ASR = whispercpp.New(cfg.Whisper.Bin, cfg.Whisper.Model)
	}
	if cfg.Publish.WebhookURL != "" {
		deps.Publisher = webhook.New(cfg.Publish.WebhookURL, 0)
	}
	return usecase.New(deps), nil
}

type Result struct {
	Dir      string
	Metadata types.Metadata
}

func Run(ctx context.Context, cfg Config) (Result, error) {
	log := cfg.Log
	uc, err := NewUsecase(cfg.App, log)
	if err != nil {
		return Result{}, err
	}

	jobID := hash(cfg.InputVideo)
	baseCache := cfg.App.Paths.Cache
	if baseCache == "" {
		baseCache = ".cache"
	}
	cacheDir := filepath.Join(baseCache, "runs", jobID)
	log.Debug().Msg("preparing workspace")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return Result{}, err
	}
	log.Debug().Str("cache", cacheDir).Msg("cache ready")

	outDir := cfg.OutDir
	if outDir == "" {
		outDir = "out"
	}
	runOutDir := buildRunOutDir(outDir, cfg.InputVideo, time.Now().UTC())
	if err := os.MkdirAll(runOutDir, 0o755); err != nil {
		return Result{}, err
	}
	log.Info().Str("dir", runOutDir).Msg("output run dir")

	sel := cfg.App.Selection
	res, err := uc.Run(ctx, usecase.Input{
		JobID:      jobID,
		InputVideo: cfg.InputVideo,
		ClipsN:     sel.Clips,
		MinClip:    sel.Min,
		MaxClip:    sel.Max,
		CacheDir:   cacheDir,
		OutDir:     runOutDir,
		Progress: func(p int) {
			log.Debug().Int("progress", p).Msg("progress")
		},
	})
	if err != nil {
		return Result{}, err
	}

	log.Info().
		Int("highlights", len(res.Metadata.Highlights)).
		Str("metadata", filepath.Join(runOutDir, usecase.MetadataFile)).
		Msg("metadata written")
	return Result{Dir: runOutDir, Metadata: res.Metadata}, nil
}

func buildRunOutDir(outRoot, inputVideo string, now time.Time) string {
	name := strings.TrimSuffix(filepath.Base(inputVideo), filepath.Ext(inputVideo))
	name = normalizePathSegment(name)
	if name == "" {
		name = "input"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", inputVideo, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// ensure adapters implement ports
var (
	_ ports.MediaProber        = (*ffmpeg.Adapter)(nil)
	_ ports.SceneDetector      = (*ffmpeg.Adapter)(nil)
	_ ports.IntensityScorer    = (*ffmpeg.Adapter)(nil)
	_ ports.AudioExtractor     = (*ffmpeg.Adapter)(nil)
	_ ports.ClipExtractor      = (*ffmpeg.Adapter)(nil)
	_ ports.TranscriptProvider = (*whispercpp.Adapter)(nil)
	_ ports.Publisher          = (*webhook.Adapter)(nil)
)
