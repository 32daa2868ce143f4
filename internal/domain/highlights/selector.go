package highlights

import (
	"fmt"
	"math"
	"sort"

	"github.com/samber/lo"

	"github.com/forPelevin/hlscene/internal/types"
)

// OverlapPolicy decides what happens when a lower-ranked scene's highlight
// overlaps one that was already accepted.
type OverlapPolicy string

const (
	// OverlapAllow accepts the top TargetCount scenes without checking overlap.
	OverlapAllow OverlapPolicy = "allow"
	// OverlapSkip drops an overlapping highlight and moves down the ranking.
	OverlapSkip OverlapPolicy = "skip"
	// OverlapTrim shrinks an overlapping highlight to the free gap around its
	// start, dropping it when too little is left.
	OverlapTrim OverlapPolicy = "trim"
)

func ParseOverlapPolicy(s string) (OverlapPolicy, error) {
	switch p := OverlapPolicy(s); p {
	case OverlapAllow, OverlapSkip, OverlapTrim:
		return p, nil
	case "":
		return OverlapTrim, nil
	default:
		return "", fmt.Errorf("unknown overlap policy %q", s)
	}
}

type SelectConfig struct {
	TargetCount int
	MinDuration float64
	MaxDuration float64
	Overlap     OverlapPolicy
}

func (c SelectConfig) Validate(videoDuration float64) error {
	if err := c.ValidateBounds(); err != nil {
		return err
	}
	if !finite(videoDuration) || videoDuration <= 0 {
		return configErr("video_duration", "must be > 0")
	}
	return nil
}

// ValidateBounds checks everything that does not depend on the video, so
// requests can be rejected before the video is probed.
func (c SelectConfig) ValidateBounds() error {
	if c.TargetCount < 1 {
		return configErr("target_count", "must be >= 1")
	}
	if !finite(c.MinDuration) || c.MinDuration <= 0 {
		return configErr("min_duration", "must be > 0")
	}
	if !finite(c.MaxDuration) || c.MinDuration > c.MaxDuration {
		return configErr("max_duration", "must be >= min_duration")
	}
	switch c.Overlap {
	case "", OverlapAllow, OverlapSkip, OverlapTrim:
	default:
		return configErr("overlap", fmt.Sprintf("unknown policy %q", c.Overlap))
	}
	return nil
}

// Select picks up to TargetCount highlights: best-scored scenes first, then
// uniform segments over the unused part of the video. It only fails on bad
// configuration; an empty catalog degrades to pure uniform segmentation.
func Select(scored []types.ScoredScene, videoDuration float64, cfg SelectConfig) ([]types.Highlight, error) {
	if err := cfg.Validate(videoDuration); err != nil {
		return nil, err
	}
	if cfg.Overlap == "" {
		cfg.Overlap = OverlapTrim
	}

	out := selectScenes(scored, videoDuration, cfg)
	if remaining := cfg.TargetCount - len(out); remaining > 0 {
		out = append(out, uniformFill(out, videoDuration, remaining, cfg, len(scored) == 0)...)
	}
	return out, nil
}

func rank(scored []types.ScoredScene) []types.ScoredScene {
	ranked := append([]types.ScoredScene(nil), scored...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Start < ranked[j].Start
	})
	return ranked
}

func selectScenes(scored []types.ScoredScene, videoDuration float64, cfg SelectConfig) []types.Highlight {
	if len(scored) == 0 {
		return nil
	}

	ranked := rank(scored)
	if cfg.Overlap == OverlapAllow && len(ranked) > cfg.TargetCount {
		ranked = ranked[:cfg.TargetCount]
	}

	var out []types.Highlight
	for _, sc := range ranked {
		if len(out) == cfg.TargetCount {
			break
		}
		start := sc.Start
		end := math.Min(start+math.Min(cfg.MaxDuration, sc.Length()), videoDuration)
		// Prefer reaching the minimum over respecting the scene cut. A scene
		// that runs into the end of the video stays short.
		if end-start < cfg.MinDuration {
			end = math.Min(start+cfg.MinDuration, videoDuration)
		}
		shortest := math.Min(cfg.MinDuration, end-start)

		switch cfg.Overlap {
		case OverlapSkip:
			if overlapsAny(out, start, end) {
				continue
			}
		case OverlapTrim:
			s, e := freeSpan(out, start, end)
			if e-s <= 0 || e-s < shortest {
				continue
			}
			start, end = s, e
		}

		var ok bool
		if end, ok = reserve(out, start, end, shortest, videoDuration, cfg); !ok {
			continue
		}

		idx := sc.Index
		out = append(out, types.Highlight{
			Start:            start,
			End:              end,
			Duration:         end - start,
			SourceSceneIndex: &idx,
			Origin:           types.OriginScene,
			Score:            sc.Score,
		})
	}
	return out
}

// fitEps absorbs float error when counting how many minimum-length
// segments fit into a span.
const fitEps = 1e-9

func fits(length, minDuration float64) int {
	if length <= 0 {
		return 0
	}
	return int(math.Floor((length + fitEps) / minDuration))
}

// capacity is how many disjoint minimum-length segments the unused part of
// the video can still hold.
func capacity(accepted []types.Highlight, videoDuration, minDuration float64) int {
	n := 0
	for _, g := range unused(accepted, videoDuration) {
		n += fits(g.end-g.start, minDuration)
	}
	return n
}

// reserve shortens [start, end) so the slots still open after accepting it
// can be filled with minimum-length segments. It reports false when the
// highlight cannot shrink enough without dropping under shortest. Nothing is
// reserved when the video was already too short to hold every slot.
func reserve(accepted []types.Highlight, start, end, shortest, videoDuration float64, cfg SelectConfig) (float64, bool) {
	open := cfg.TargetCount - len(accepted)
	if capacity(accepted, videoDuration, cfg.MinDuration) < open {
		return end, true
	}
	need := open - 1
	gaps := unused(accepted, videoDuration)
	for i, g := range gaps {
		if start < g.start-fitEps || end > g.end+fitEps {
			continue
		}
		others := 0
		for j, o := range gaps {
			if j != i {
				others += fits(o.end-o.start, cfg.MinDuration)
			}
		}
		k := need - others - fits(start-g.start, cfg.MinDuration)
		if k > 0 {
			end = math.Min(end, g.end-float64(k)*cfg.MinDuration)
		}
		return end, end-start > 0 && end-start >= shortest
	}
	// overlapping an accepted highlight, only possible under OverlapAllow
	with := append(append([]types.Highlight(nil), accepted...), types.Highlight{Start: start, End: end})
	return end, capacity(with, videoDuration, cfg.MinDuration) >= need
}

func overlapsAny(accepted []types.Highlight, start, end float64) bool {
	return lo.SomeBy(accepted, func(h types.Highlight) bool {
		return start < h.End && h.Start < end
	})
}

// freeSpan shrinks [start, end) so it does not intersect any accepted
// highlight: the start moves past highlights covering it and the end stops
// at the next one.
func freeSpan(accepted []types.Highlight, start, end float64) (float64, float64) {
	for _, h := range byStart(accepted) {
		if h.End <= start {
			continue
		}
		if h.Start <= start {
			start = h.End
			continue
		}
		if h.Start < end {
			end = h.Start
		}
		break
	}
	return start, end
}

func byStart(hs []types.Highlight) []types.Highlight {
	sorted := append([]types.Highlight(nil), hs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	return sorted
}

type span struct{ start, end float64 }

// unused returns the parts of [0, videoDuration] not covered by highlights.
func unused(accepted []types.Highlight, videoDuration float64) []span {
	var gaps []span
	cursor := 0.0
	for _, h := range byStart(accepted) {
		if h.Start > cursor {
			gaps = append(gaps, span{cursor, h.Start})
		}
		cursor = math.Max(cursor, h.End)
	}
	if cursor < videoDuration {
		gaps = append(gaps, span{cursor, videoDuration})
	}
	return gaps
}

// uniformFill spreads `remaining` segments over the unused portion of the
// video. Without a catalog the whole video is one gap and segments follow
// the plain uniform layout. Otherwise slots go to the gaps that can hold a
// minimum-length segment, largest share first, and are laid out per gap.
func uniformFill(accepted []types.Highlight, videoDuration float64, remaining int, cfg SelectConfig, noCatalog bool) []types.Highlight {
	gaps := unused(accepted, videoDuration)
	if len(gaps) == 0 {
		return nil
	}

	var counts []int
	if noCatalog && len(accepted) == 0 {
		counts = []int{remaining}
	} else {
		counts = allocate(gaps, remaining, cfg.MinDuration)
	}

	var out []types.Highlight
	for i, g := range gaps {
		out = append(out, spread(g, counts[i], cfg)...)
	}
	return out
}

// allocate hands out slots one at a time to the gap that would give each of
// its segments the most room, never more than a gap can hold at minDuration.
func allocate(gaps []span, slots int, minDuration float64) []int {
	counts := make([]int, len(gaps))
	for n := 0; n < slots; n++ {
		best, bestShare := -1, 0.0
		for i, g := range gaps {
			l := g.end - g.start
			if counts[i]+1 > fits(l, minDuration) {
				continue
			}
			if share := l / float64(counts[i]+1); best < 0 || share > bestShare {
				best, bestShare = i, share
			}
		}
		if best < 0 {
			break
		}
		counts[best]++
	}
	return counts
}

// spread lays n segments out in g. Starts sit on the interior boundaries of
// n+1 equal parts; when those parts are under the minimum but n equal tiles
// are not, the segments tile the gap from its start instead.
func spread(g span, n int, cfg SelectConfig) []types.Highlight {
	if n <= 0 {
		return nil
	}
	total := g.end - g.start
	step := total / float64(n+1)
	tile := total / float64(n)

	first, stride, length := step, step, math.Min(cfg.MaxDuration, step)
	if step < cfg.MinDuration && tile+fitEps >= cfg.MinDuration {
		first, stride, length = 0, tile, math.Min(cfg.MaxDuration, tile)
	}

	out := make([]types.Highlight, 0, n)
	for k := 0; k < n; k++ {
		start := g.start + first + float64(k)*stride
		end := math.Min(start+length, g.end)
		if start >= end {
			continue
		}
		out = append(out, types.Highlight{
			Start:    start,
			End:      end,
			Duration: end - start,
			Origin:   types.OriginUniform,
		})
	}
	return out
}
