package highlights

import "github.com/forPelevin/hlscene/internal/types"

// Engine runs scoring and selection for one request. It holds no per-video
// state and may be shared between jobs.
type Engine struct {
	Weights Weights
	Overlap OverlapPolicy
}

func NewEngine(w Weights, overlap OverlapPolicy) Engine {
	return Engine{Weights: w, Overlap: overlap}
}

type Result struct {
	Highlights []types.Highlight
	Scored     []types.ScoredScene
}

// Run validates the request, scores the catalog and selects highlights.
// req.Scenes is expected to come from BuildCatalog.
func (e Engine) Run(req types.SelectionRequest) (Result, error) {
	cfg := SelectConfig{
		TargetCount: req.TargetCount,
		MinDuration: req.MinDuration,
		MaxDuration: req.MaxDuration,
		Overlap:     e.Overlap,
	}
	if err := cfg.Validate(req.VideoDuration); err != nil {
		return Result{}, err
	}

	scored := ScoreScenes(req.Scenes, req.IntensityByScene, req.Transcript, e.Weights)
	hs, err := Select(scored, req.VideoDuration, cfg)
	if err != nil {
		return Result{}, err
	}
	return Result{Highlights: hs, Scored: scored}, nil
}
