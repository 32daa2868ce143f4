package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/forPelevin/hlscene/internal/types"
)

const defaultSceneThreshold = 0.3

type Adapter struct {
	ffmpeg    string
	ffprobe   string
	threshold float64
	log       zerolog.Logger
}

func New(ffmpegPath, ffprobePath string, sceneThreshold float64, log zerolog.Logger) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if sceneThreshold <= 0 || sceneThreshold >= 1 {
		sceneThreshold = defaultSceneThreshold
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath, threshold: sceneThreshold, log: log}
}

func (a *Adapter) Probe(ctx context.Context, inVideo string) (types.MediaInfo, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inVideo,
	)
	b, err := cmd.Output()
	if err != nil {
		return types.MediaInfo{}, fmt.Errorf("ffprobe: %w", err)
	}
	info, err := parseProbe(b)
	if err != nil {
		return types.MediaInfo{}, err
	}
	info.Path = inVideo
	return info, nil
}

type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

func parseProbe(b []byte) (types.MediaInfo, error) {
	var p probeResult
	if err := json.Unmarshal(b, &p); err != nil {
		return types.MediaInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	sec, err := strconv.ParseFloat(p.Format.Duration, 64)
	if err != nil {
		return types.MediaInfo{}, fmt.Errorf("parse duration %q: %w", p.Format.Duration, err)
	}
	info := types.MediaInfo{Duration: sec}
	for _, s := range p.Streams {
		switch s.CodecType {
		case "video":
			if info.Width == 0 {
				info.Width, info.Height = s.Width, s.Height
			}
		case "audio":
			info.HasAudio = true
		}
	}
	return info, nil
}

func (a *Adapter) ExtractAudioMono16k(ctx context.Context, inVideo, outWav string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-i", inVideo,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		outWav,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w\n%s", err, string(b))
	}
	return nil
}

func (a *Adapter) ExtractClip(ctx context.Context, inVideo string, start, end float64, outMP4 string, withAudio bool) error {
	args := []string{
		"-y",
		"-ss", fmtSeconds(start),
		"-to", fmtSeconds(end),
		"-i", inVideo,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "18",
	}
	if withAudio {
		args = append(args, "-c:a", "aac", "-b:a", "192k")
	} else {
		args = append(args, "-an")
	}
	args = append(args, outMP4)

	a.log.Debug().Str("out", outMP4).Float64("start", start).Float64("end", end).Msg("extracting clip")
	cmd := exec.CommandContext(ctx, a.ffmpeg, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg extract clip: %w\n%s", err, string(b))
	}
	return nil
}

func fmtSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}
