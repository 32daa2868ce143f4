package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/forPelevin/hlscene/internal/types"
)

// DetectScenes runs ffmpeg's scene filter and turns the detected cuts into
// contiguous rows covering [0, duration]. A video without cuts yields no
// rows.
func (a *Adapter) DetectScenes(ctx context.Context, inVideo string, duration float64) ([]types.SceneRow, error) {
	a.log.Info().Str("input", inVideo).Float64("threshold", a.threshold).Msg("detecting scene changes")

	out, err := a.runFilter(ctx, inVideo, fmt.Sprintf("select='gt(scene,%f)',showinfo", a.threshold))
	if err != nil {
		return nil, fmt.Errorf("scene detection: %w", err)
	}
	rows := rowsFromCuts(parseCuts(out), duration)
	a.log.Info().Int("scenes", len(rows)).Msg("scene detection complete")
	return rows, nil
}

// ScoreIntensity averages ffmpeg's per-frame scene-change score over each
// scene. Scenes without sampled frames are left out of the map.
func (a *Adapter) ScoreIntensity(ctx context.Context, inVideo string, scenes []types.Scene) (map[int]float64, error) {
	if len(scenes) == 0 {
		return map[int]float64{}, nil
	}
	out, err := a.runFilter(ctx, inVideo, "select='gte(scene,0)',metadata=print")
	if err != nil {
		return nil, fmt.Errorf("intensity: %w", err)
	}
	return averagePerScene(parseFrameScores(out), scenes), nil
}

func (a *Adapter) runFilter(ctx context.Context, inVideo, filter string) (string, error) {
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-hide_banner",
		"-nostats",
		"-i", inVideo,
		"-vf", filter,
		"-an",
		"-f", "null",
		"-",
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w\n%s", err, tail(string(b), 2000))
	}
	return string(b), nil
}

// parseCuts extracts pts_time values from showinfo lines.
func parseCuts(output string) []float64 {
	var cuts []float64
	sc := bufio.NewScanner(strings.NewReader(output))
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(line, "showinfo") {
			continue
		}
		if t, ok := ptsTime(line); ok {
			cuts = append(cuts, t)
		}
	}
	return cuts
}

func rowsFromCuts(cuts []float64, duration float64) []types.SceneRow {
	if duration <= 0 {
		return nil
	}
	sort.Float64s(cuts)
	bounds := []float64{0}
	for _, c := range cuts {
		if c <= bounds[len(bounds)-1] || c >= duration {
			continue
		}
		bounds = append(bounds, c)
	}
	if len(bounds) == 1 {
		return nil
	}
	bounds = append(bounds, duration)

	rows := make([]types.SceneRow, 0, len(bounds)-1)
	for i := 1; i < len(bounds); i++ {
		rows = append(rows, types.SceneRow{Start: bounds[i-1], End: bounds[i]})
	}
	return rows
}

type frameScore struct {
	at    float64
	score float64
}

// parseFrameScores pairs each lavfi.scene_score line with the pts_time of
// the frame header printed before it.
func parseFrameScores(output string) []frameScore {
	var (
		out  []frameScore
		at   float64
		have bool
	)
	sc := bufio.NewScanner(strings.NewReader(output))
	for sc.Scan() {
		line := sc.Text()
		if t, ok := ptsTime(line); ok {
			at, have = t, true
			continue
		}
		i := strings.Index(line, "lavfi.scene_score=")
		if i < 0 || !have {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(line[i+len("lavfi.scene_score="):]), 64)
		if err != nil {
			continue
		}
		out = append(out, frameScore{at: at, score: v})
	}
	return out
}

func averagePerScene(frames []frameScore, scenes []types.Scene) map[int]float64 {
	sums := make(map[int]float64, len(scenes))
	counts := make(map[int]int, len(scenes))
	for _, f := range frames {
		i := sort.Search(len(scenes), func(i int) bool { return scenes[i].End > f.at })
		if i == len(scenes) || f.at < scenes[i].Start {
			continue
		}
		idx := scenes[i].Index
		sums[idx] += f.score
		counts[idx]++
	}
	out := make(map[int]float64, len(counts))
	for idx, n := range counts {
		out[idx] = sums[idx] / float64(n)
	}
	return out
}

func ptsTime(line string) (float64, bool) {
	_, rest, ok := strings.Cut(line, "pts_time:")
	if !ok {
		return 0, false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return 0, false
	}
	t, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return t, true
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
