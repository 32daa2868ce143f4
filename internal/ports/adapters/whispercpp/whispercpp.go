package whispercpp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/forPelevin/hlscene/internal/types"
)

type Adapter struct {
	bin   string
	model string
}

func New(binPath, modelPath string) *Adapter {
	return &Adapter{bin: binPath, model: modelPath}
}

func (a *Adapter) Transcribe(ctx context.Context, wavPath, cacheDir string) (types.Transcript, error) {
	outPrefix := filepath.Join(cacheDir, "whisper")
	args := []string{
		"-m", a.model,
		"-f", wavPath,
		"-oj",
		"-of", outPrefix,
	}
	cmd := exec.CommandContext(ctx, a.bin, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper.cpp failed: %w\n%s", err, string(b))
	}

	jb, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return types.Transcript{}, err
	}
	return parseOutput(jb)
}

// output covers both the native whisper.cpp layout (transcription entries
// with millisecond offsets) and a pre-segmented layout in seconds.
type output struct {
	Transcription []struct {
		Offsets struct {
			From float64 `json:"from"`
			To   float64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
	Segments []types.Segment `json:"segments"`
}

func parseOutput(b []byte) (types.Transcript, error) {
	var o output
	if err := json.Unmarshal(b, &o); err != nil {
		return types.Transcript{}, fmt.Errorf("parse whisper output: %w", err)
	}

	tr := types.Transcript{Segments: o.Segments}
	for _, e := range o.Transcription {
		tr.Segments = append(tr.Segments, types.Segment{
			Start: e.Offsets.From / 1000,
			End:   e.Offsets.To / 1000,
			Text:  e.Text,
		})
	}

	texts := make([]string, 0, len(tr.Segments))
	for i := range tr.Segments {
		tr.Segments[i].Text = strings.TrimSpace(tr.Segments[i].Text)
		for j := range tr.Segments[i].Words {
			tr.Segments[i].Words[j].Word = strings.TrimSpace(tr.Segments[i].Words[j].Word)
		}
		if tr.Segments[i].Text != "" {
			texts = append(texts, tr.Segments[i].Text)
		}
	}
	tr.Text = strings.Join(texts, " ")
	return tr, nil
}
