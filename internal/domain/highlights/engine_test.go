package highlights

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/forPelevin/hlscene/internal/types"
)

func TestEngine_DropsInvalidRowAndKeepsGoing(t *testing.T) {
	cat := BuildCatalog([]types.SceneRow{
		{Start: 0, End: 25},
		{Start: 50, End: 40},
		{Start: 60, End: 100},
	}, 100)
	if cat.Dropped != 1 {
		t.Fatalf("expected the inverted row to be dropped, got %d", cat.Dropped)
	}

	res, err := NewEngine(DefaultWeights(), OverlapTrim).Run(types.SelectionRequest{
		VideoDuration:    100,
		Scenes:           cat.Scenes,
		IntensityByScene: map[int]float64{0: 1, 1: 4},
		TargetCount:      2,
		MinDuration:      20,
		MaxDuration:      30,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Highlights) != 2 {
		t.Fatalf("expected 2 highlights, got %+v", res.Highlights)
	}
	if res.Highlights[0].Start != 60 || res.Highlights[0].End != 90 {
		t.Fatalf("expected the most intense scene first, got %+v", res.Highlights[0])
	}
	if res.Highlights[1].Start != 0 || res.Highlights[1].End != 25 {
		t.Fatalf("unexpected second highlight: %+v", res.Highlights[1])
	}
}

func TestEngine_ConfigurationError(t *testing.T) {
	_, err := NewEngine(DefaultWeights(), OverlapTrim).Run(types.SelectionRequest{
		VideoDuration: 100,
		TargetCount:   0,
		MinDuration:   20,
		MaxDuration:   30,
	})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestEmit_PreservesOrderAndNumbering(t *testing.T) {
	idx := 4
	hs := []types.Highlight{
		{Start: 80, End: 100, Duration: 20, SourceSceneIndex: &idx, Origin: types.OriginScene, Score: 1},
		{Start: 10, End: 30, Duration: 20, Origin: types.OriginUniform},
	}
	m := Emit(EmitInput{
		OriginalVideo: "match.mp4",
		VideoDuration: 120,
		HasAudio:      true,
		Transcript:    &types.Transcript{Text: "what a goal"},
		Highlights:    hs,
	})

	if m.TotalDuration != 120 || !m.HasAudio || m.OriginalVideo != "match.mp4" {
		t.Fatalf("unexpected header: %+v", m)
	}
	if m.Transcript == nil || *m.Transcript != "what a goal" {
		t.Fatalf("expected transcript text, got %v", m.Transcript)
	}
	if len(m.Highlights) != 2 {
		t.Fatalf("expected 2 highlights, got %d", len(m.Highlights))
	}
	if m.Highlights[0].StartTime != 80 || m.Highlights[1].StartTime != 10 {
		t.Fatalf("emitter must not reorder: %+v", m.Highlights)
	}
	if m.Highlights[0].Filename != "highlight_001.mp4" || m.Highlights[1].ID != "002" {
		t.Fatalf("unexpected numbering: %+v", m.Highlights)
	}

	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, k := range []string{"original_video", "total_duration", "has_audio", "highlights", "transcript"} {
		if _, ok := back[k]; !ok {
			t.Fatalf("missing key %q in %s", k, b)
		}
	}
}

func TestEmit_NoTranscript(t *testing.T) {
	m := Emit(EmitInput{VideoDuration: 10})
	if m.Transcript != nil {
		t.Fatalf("expected nil transcript")
	}
	if m.Highlights == nil {
		t.Fatalf("highlights should serialize as an empty list")
	}
}
