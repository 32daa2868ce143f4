package types

// All timestamps in this package are seconds from the start of the source video.

type Transcript struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Word  string  `json:"word"`
}

// SceneRow is one raw row from a scene-boundary detector. Rows may be
// unsorted, overlapping or inverted.
type SceneRow struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type Scene struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (s Scene) Length() float64 { return s.End - s.Start }

type ScoredScene struct {
	Scene

	Intensity float64 `json:"intensity"`
	// Sentiment is nil when no transcript text aligns with the scene.
	Sentiment *float64 `json:"sentiment,omitempty"`
	Emphasis  float64  `json:"emphasis"`
	Score     float64  `json:"score"`
}

type Origin string

const (
	OriginScene   Origin = "scene"
	OriginUniform Origin = "uniform"
)

type Highlight struct {
	Start            float64 `json:"start"`
	End              float64 `json:"end"`
	Duration         float64 `json:"duration"`
	SourceSceneIndex *int    `json:"source_scene_index"`
	Origin           Origin  `json:"origin"`
	Score            float64 `json:"score"`
}

type SelectionRequest struct {
	VideoDuration float64
	Scenes        []Scene
	// IntensityByScene is keyed by Scene.Index.
	IntensityByScene map[int]float64
	Transcript       *Transcript
	TargetCount      int
	MinDuration      float64
	MaxDuration      float64
}

type MediaInfo struct {
	Path     string
	Duration float64
	HasAudio bool
	Width    int
	Height   int
}

type Metadata struct {
	OriginalVideo string              `json:"original_video"`
	TotalDuration float64             `json:"total_duration"`
	HasAudio      bool                `json:"has_audio"`
	Highlights    []HighlightMetadata `json:"highlights"`
	Transcript    *string             `json:"transcript"`
}

type HighlightMetadata struct {
	ID               string  `json:"id"`
	Filename         string  `json:"filename"`
	StartTime        float64 `json:"start_time"`
	EndTime          float64 `json:"end_time"`
	Duration         float64 `json:"duration"`
	SourceSceneIndex *int    `json:"source_scene_index"`
	Origin           Origin  `json:"origin"`
	Score            float64 `json:"score"`
}
