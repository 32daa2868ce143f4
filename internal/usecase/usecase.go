package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/forPelevin/hlscene/internal/domain/highlights"
	"github.com/forPelevin/hlscene/internal/domain/subtitles"
	"github.com/forPelevin/hlscene/internal/ports"
	"github.com/forPelevin/hlscene/internal/types"
)

const (
	MetadataFile   = "metadata.json"
	TranscriptFile = "transcript.txt"
)

// Deps are the collaborators of a run. ASR and Publisher are optional.
type Deps struct {
	Prober    ports.MediaProber
	Scenes    ports.SceneDetector
	Intensity ports.IntensityScorer
	Audio     ports.AudioExtractor
	ASR       ports.TranscriptProvider
	Clips     ports.ClipExtractor
	Publisher ports.Publisher

	Engine      highlights.Engine
	ClipWorkers int
	Log         zerolog.Logger
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase {
	if d.ClipWorkers <= 0 {
		d.ClipWorkers = 2
	}
	return Usecase{d: d}
}

type Input struct {
	JobID      string
	InputVideo string
	// OriginalName is recorded in the metadata; defaults to the input base name.
	OriginalName string
	ClipsN       int
	MinClip      float64
	MaxClip      float64
	CacheDir     string
	OutDir       string
	Progress     func(pct int)
}

type Result struct {
	Metadata types.Metadata
	// Files are the artifacts written to OutDir, relative to it.
	Files  []string
	Scored []types.ScoredScene
	// Dropped counts detector rows rejected by the catalog.
	Dropped int
}

func (u Usecase) Run(ctx context.Context, in Input) (Result, error) {
	log := u.d.Log.With().Str("job_id", in.JobID).Logger()
	progress := in.Progress
	if progress == nil {
		progress = func(int) {}
	}

	progress(10)
	info, err := u.d.Prober.Probe(ctx, in.InputVideo)
	if err != nil {
		return Result{}, fmt.Errorf("probe: %w", err)
	}
	// fail fast on bad settings before any heavy analysis
	sel := highlights.SelectConfig{TargetCount: in.ClipsN, MinDuration: in.MinClip, MaxDuration: in.MaxClip, Overlap: u.d.Engine.Overlap}
	if err := sel.Validate(info.Duration); err != nil {
		return Result{}, err
	}
	log.Info().
		Float64("duration", info.Duration).
		Bool("has_audio", info.HasAudio).
		Int("width", info.Width).
		Int("height", info.Height).
		Msg("probed input")

	progress(20)
	rows, err := u.d.Scenes.DetectScenes(ctx, in.InputVideo, info.Duration)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		log.Warn().Err(err).Msg("scene detection failed, falling back to uniform segments")
		rows = nil
	}
	cat := highlights.BuildCatalog(rows, info.Duration)
	if cat.Dropped > 0 {
		log.Warn().Int("dropped", cat.Dropped).Int("kept", len(cat.Scenes)).Msg("dropped malformed scene rows")
	}

	progress(40)
	var intensity map[int]float64
	if len(cat.Scenes) > 0 {
		intensity, err = u.d.Intensity.ScoreIntensity(ctx, in.InputVideo, cat.Scenes)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			log.Warn().Err(err).Msg("intensity scoring failed, scenes score zero")
			intensity = nil
		}
	}

	progress(60)
	tr, err := u.transcribe(ctx, info, in)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		log.Warn().Err(err).Msg("transcription failed, continuing without transcript")
		tr = nil
	}

	progress(70)
	res, err := u.d.Engine.Run(types.SelectionRequest{
		VideoDuration:    info.Duration,
		Scenes:           cat.Scenes,
		IntensityByScene: intensity,
		Transcript:       tr,
		TargetCount:      in.ClipsN,
		MinDuration:      in.MinClip,
		MaxDuration:      in.MaxClip,
	})
	if err != nil {
		return Result{}, err
	}
	log.Info().Int("scenes", len(cat.Scenes)).Int("highlights", len(res.Highlights)).Msg("highlights selected")

	progress(80)
	files, err := u.extractClips(ctx, in, info.HasAudio, res.Highlights, progress)
	if err != nil {
		return Result{}, err
	}

	name := in.OriginalName
	if name == "" {
		name = filepath.Base(in.InputVideo)
	}
	md := highlights.Emit(highlights.EmitInput{
		OriginalVideo: name,
		VideoDuration: info.Duration,
		HasAudio:      info.HasAudio,
		Transcript:    tr,
		Highlights:    res.Highlights,
	})

	if tr != nil {
		subs, err := writeSubtitles(in.OutDir, *tr, res.Highlights)
		if err != nil {
			return Result{}, err
		}
		files = append(files, subs...)
		if err := writeFile(filepath.Join(in.OutDir, TranscriptFile), []byte(tr.Text)); err != nil {
			return Result{}, err
		}
		files = append(files, TranscriptFile)
	}
	b, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return Result{}, fmt.Errorf("marshal metadata: %w", err)
	}
	if err := writeFile(filepath.Join(in.OutDir, MetadataFile), b); err != nil {
		return Result{}, err
	}
	files = append(files, MetadataFile)

	if u.d.Publisher != nil {
		if err := u.d.Publisher.Publish(ctx, in.JobID, md, files); err != nil {
			log.Warn().Err(err).Msg("publish failed")
		}
	}

	return Result{Metadata: md, Files: files, Scored: res.Scored, Dropped: cat.Dropped}, nil
}

// transcribe returns nil without error when the video has no audio track or
// no transcript provider is configured.
func (u Usecase) transcribe(ctx context.Context, info types.MediaInfo, in Input) (*types.Transcript, error) {
	if !info.HasAudio || u.d.ASR == nil || u.d.Audio == nil {
		return nil, nil
	}
	if err := os.MkdirAll(in.CacheDir, 0o755); err != nil {
		return nil, err
	}
	wav := filepath.Join(in.CacheDir, "audio.wav")
	if err := u.d.Audio.ExtractAudioMono16k(ctx, in.InputVideo, wav); err != nil {
		return nil, err
	}
	tr, err := u.d.ASR.Transcribe(ctx, wav, in.CacheDir)
	if err != nil {
		return nil, err
	}
	return &tr, nil
}

func (u Usecase) extractClips(ctx context.Context, in Input, withAudio bool, hs []types.Highlight, progress func(int)) ([]string, error) {
	if err := os.MkdirAll(in.OutDir, 0o755); err != nil {
		return nil, err
	}
	files := make([]string, len(hs))
	var done atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.d.ClipWorkers)
	for i, h := range hs {
		h := h
		files[i] = highlights.ClipFilename(i)
		out := filepath.Join(in.OutDir, files[i])
		g.Go(func() error {
			if err := u.d.Clips.ExtractClip(gctx, in.InputVideo, h.Start, h.End, out, withAudio); err != nil {
				return fmt.Errorf("clip %s: %w", filepath.Base(out), err)
			}
			progress(80 + int(done.Add(1))*15/len(hs))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// writeSubtitles writes a clip-local .srt next to every highlight that has
// speech in it.
func writeSubtitles(outDir string, tr types.Transcript, hs []types.Highlight) ([]string, error) {
	var files []string
	for i, h := range hs {
		srt := subtitles.RenderSRT(tr, h.Start, h.End)
		if srt == "" {
			continue
		}
		name := strings.TrimSuffix(highlights.ClipFilename(i), ".mp4") + ".srt"
		if err := writeFile(filepath.Join(outDir, name), []byte(srt)); err != nil {
			return nil, err
		}
		files = append(files, name)
	}
	return files, nil
}

func writeFile(path string, b []byte) error {
	return os.WriteFile(path, b, 0o644)
}
