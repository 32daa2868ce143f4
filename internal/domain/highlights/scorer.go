package highlights

import (
	"math"
	"strings"

	"github.com/samber/lo"

	"github.com/forPelevin/hlscene/internal/types"
)

// Weights control how intensity and the transcript signal combine.
type Weights struct {
	Intensity float64 `yaml:"intensity"`
	Sentiment float64 `yaml:"sentiment"`
}

func DefaultWeights() Weights { return Weights{Intensity: 1, Sentiment: 1} }

// ScoreScenes assigns every scene its intensity, optional transcript signal
// and combined score. Missing intensity entries count as zero and a missing
// transcript leaves the score intensity-only.
func ScoreScenes(scenes []types.Scene, intensity map[int]float64, tr *types.Transcript, w Weights) []types.ScoredScene {
	if len(scenes) == 0 {
		return nil
	}
	w = normalizeWeights(w)

	out := make([]types.ScoredScene, len(scenes))
	for i, sc := range scenes {
		v := intensity[sc.Index]
		if !finite(v) || v < 0 {
			v = 0
		}
		out[i] = types.ScoredScene{Scene: sc, Intensity: v}

		text := alignedText(tr, sc.Start, sc.End)
		if text == "" {
			continue
		}
		if p, ok := Polarity(text); ok {
			out[i].Sentiment = lo.ToPtr(p)
		}
		out[i].Emphasis = Emphasis(text)
	}

	maxIntensity := lo.MaxBy(out, func(a, b types.ScoredScene) bool { return a.Intensity > b.Intensity }).Intensity
	maxSignal := textSignal(lo.MaxBy(out, func(a, b types.ScoredScene) bool { return textSignal(a) > textSignal(b) }))

	wI, wS := w.Intensity, w.Sentiment
	if maxSignal == 0 {
		// intensity-only run
		wS = 0
	}
	for i := range out {
		score := wI * ratio(out[i].Intensity, maxIntensity)
		score += wS * ratio(textSignal(out[i]), maxSignal)
		out[i].Score = math.Max(score, 0)
	}
	return out
}

// textSignal is the sentiment magnitude, lifted by emphasis when the text is
// neutral but attention-grabbing.
func textSignal(s types.ScoredScene) float64 {
	mag := s.Emphasis
	if s.Sentiment != nil {
		mag = math.Max(mag, math.Abs(*s.Sentiment))
	}
	return mag
}

func alignedText(tr *types.Transcript, start, end float64) string {
	if tr == nil {
		return ""
	}
	var parts []string
	for _, s := range tr.Segments {
		if s.End <= start || s.Start >= end {
			continue
		}
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func normalizeWeights(w Weights) Weights {
	if !finite(w.Intensity) || w.Intensity < 0 {
		w.Intensity = 0
	}
	if !finite(w.Sentiment) || w.Sentiment < 0 {
		w.Sentiment = 0
	}
	if w.Intensity == 0 && w.Sentiment == 0 {
		return DefaultWeights()
	}
	return w
}

func ratio(v, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return v / max
}
