package subtitles

import (
	"fmt"
	"math"
	"strings"

	"github.com/forPelevin/hlscene/internal/types"
)

const (
	charBudget = 42
	wordBudget = 9
)

type cue struct {
	Start float64
	End   float64
	Text  string
}

// RenderSRT builds a sidecar subtitle file for the clip [start, end) with
// cue times relative to the clip. It returns "" when no speech overlaps.
func RenderSRT(tr types.Transcript, start, end float64) string {
	cues := wordCues(tr, start, end)
	if len(cues) == 0 {
		cues = segmentCues(tr, start, end)
	}
	if len(cues) == 0 {
		return ""
	}

	var b strings.Builder
	for i, c := range cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, srtTime(c.Start), srtTime(c.End), c.Text)
	}
	return b.String()
}

// wordCues packs timed words into readable lines.
func wordCues(tr types.Transcript, start, end float64) []cue {
	var (
		out  []cue
		cur  cue
		n    int
		line []string
	)
	flush := func() {
		if len(line) == 0 {
			return
		}
		cur.Text = strings.Join(line, " ")
		out = append(out, cur)
		line, n = nil, 0
	}
	for _, s := range tr.Segments {
		for _, w := range s.Words {
			text := strings.TrimSpace(w.Word)
			if text == "" || w.End <= start || w.Start >= end {
				continue
			}
			ws, we := clip(w.Start, w.End, start, end)
			l := len([]rune(text))
			if len(line) > 0 && (len(line) >= wordBudget || n+1+l > charBudget) {
				flush()
			}
			if len(line) == 0 {
				cur = cue{Start: ws}
			} else {
				n++
			}
			line = append(line, text)
			n += l
			cur.End = we
		}
	}
	flush()
	return out
}

func segmentCues(tr types.Transcript, start, end float64) []cue {
	var out []cue
	for _, s := range tr.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" || s.End <= start || s.Start >= end {
			continue
		}
		ss, se := clip(s.Start, s.End, start, end)
		out = append(out, cue{Start: ss, End: se, Text: text})
	}
	return out
}

// clip bounds [a, b) to the clip window and shifts it to clip-local time.
func clip(a, b, start, end float64) (float64, float64) {
	return math.Max(a, start) - start, math.Min(b, end) - start
}

func srtTime(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	ms := int64(math.Round(sec * 1000))
	h := ms / 3_600_000
	ms -= h * 3_600_000
	m := ms / 60_000
	ms -= m * 60_000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
