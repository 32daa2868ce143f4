package highlights

import (
	"math"
	"sort"

	"github.com/forPelevin/hlscene/internal/types"
)

// Catalog is the normalized scene timeline of one video.
type Catalog struct {
	Scenes []types.Scene
	// Dropped counts detector rows that could not be turned into a scene.
	Dropped int
}

// BuildCatalog turns raw detector rows into ordered, non-overlapping scenes
// clipped to [0, videoDuration]. Bad rows are dropped and counted, never
// reported as errors; an empty result is a valid catalog.
func BuildCatalog(rows []types.SceneRow, videoDuration float64) Catalog {
	if len(rows) == 0 {
		return Catalog{}
	}
	if !finite(videoDuration) || videoDuration <= 0 {
		return Catalog{Dropped: len(rows)}
	}

	valid := make([]types.SceneRow, 0, len(rows))
	dropped := 0
	for _, r := range rows {
		if !finite(r.Start) || !finite(r.End) || r.Start >= r.End || r.Start >= videoDuration {
			dropped++
			continue
		}
		r.Start = math.Max(r.Start, 0)
		r.End = math.Min(r.End, videoDuration)
		if r.Start >= r.End {
			dropped++
			continue
		}
		valid = append(valid, r)
	}

	sort.SliceStable(valid, func(i, j int) bool {
		if valid[i].Start != valid[j].Start {
			return valid[i].Start < valid[j].Start
		}
		return valid[i].End < valid[j].End
	})

	scenes := make([]types.Scene, 0, len(valid))
	for _, r := range valid {
		if n := len(scenes); n > 0 && r.Start < scenes[n-1].End {
			r.Start = scenes[n-1].End
			if r.Start >= r.End {
				dropped++
				continue
			}
		}
		scenes = append(scenes, types.Scene{Index: len(scenes), Start: r.Start, End: r.End})
	}
	return Catalog{Scenes: scenes, Dropped: dropped}
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }
