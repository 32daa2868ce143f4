package highlights

import (
	"fmt"

	"github.com/forPelevin/hlscene/internal/types"
)

type EmitInput struct {
	OriginalVideo string
	VideoDuration float64
	HasAudio      bool
	Transcript    *types.Transcript
	Highlights    []types.Highlight
}

// ClipID numbers clips by emission order, starting at 1.
func ClipID(i int) string { return fmt.Sprintf("%03d", i+1) }

func ClipFilename(i int) string { return "highlight_" + ClipID(i) + ".mp4" }

// Emit assembles the metadata record. Highlight order is kept as given.
func Emit(in EmitInput) types.Metadata {
	m := types.Metadata{
		OriginalVideo: in.OriginalVideo,
		TotalDuration: in.VideoDuration,
		HasAudio:      in.HasAudio,
		Highlights:    make([]types.HighlightMetadata, 0, len(in.Highlights)),
	}
	if in.Transcript != nil {
		text := in.Transcript.Text
		m.Transcript = &text
	}
	for i, h := range in.Highlights {
		m.Highlights = append(m.Highlights, types.HighlightMetadata{
			ID:               ClipID(i),
			Filename:         ClipFilename(i),
			StartTime:        h.Start,
			EndTime:          h.End,
			Duration:         h.Duration,
			SourceSceneIndex: h.SourceSceneIndex,
			Origin:           h.Origin,
			Score:            h.Score,
		})
	}
	return m
}
