package ports

import (
	"context"

	"github.com/forPelevin/hlscene/internal/types"
)

type MediaProber interface {
	Probe(ctx context.Context, inVideo string) (types.MediaInfo, error)
}

// SceneDetector returns raw boundary rows; they are normalized by the
// catalog builder, so adapters need not sort or validate them.
type SceneDetector interface {
	DetectScenes(ctx context.Context, inVideo string, duration float64) ([]types.SceneRow, error)
}

// IntensityScorer returns a non-negative activity score keyed by Scene.Index.
type IntensityScorer interface {
	ScoreIntensity(ctx context.Context, inVideo string, scenes []types.Scene) (map[int]float64, error)
}

type AudioExtractor interface {
	ExtractAudioMono16k(ctx context.Context, inVideo, outWav string) error
}

type TranscriptProvider interface {
	Transcribe(ctx context.Context, wavPath, cacheDir string) (types.Transcript, error)
}

type ClipExtractor interface {
	ExtractClip(ctx context.Context, inVideo string, start, end float64, outMP4 string, withAudio bool) error
}

// Publisher hands finished highlights to a downstream platform or reporter.
type Publisher interface {
	Publish(ctx context.Context, jobID string, md types.Metadata, files []string) error
}
