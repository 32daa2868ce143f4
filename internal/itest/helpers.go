//go:build integration

package itest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/forPelevin/hlscene/internal/types"
	"github.com/forPelevin/hlscene/internal/usecase"
)

// moduleRoot walks up from the test's working directory until it finds go.mod,
// so `go run ./cmd/hlscene` resolves no matter which package dir runs the test.
func moduleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("go.mod not found above " + dir)
		}
		dir = parent
	}
}

// clipSeconds reads the container duration of a rendered highlight.
func clipSeconds(clip string) (float64, error) {
	out, err := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		clip,
	).CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w\n%s", filepath.Base(clip), err, out)
	}
	raw := strings.TrimSpace(string(out))
	sec, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("clip duration %q: %w", raw, err)
	}
	return sec, nil
}

func readMetadata(t *testing.T, runDir string) types.Metadata {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(runDir, usecase.MetadataFile))
	if err != nil {
		t.Fatalf("missing metadata: %v", err)
	}
	var md types.Metadata
	if err := json.Unmarshal(b, &md); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	return md
}
