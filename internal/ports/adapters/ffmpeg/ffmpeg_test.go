package ffmpeg

import (
	"reflect"
	"testing"

	"github.com/forPelevin/hlscene/internal/types"
)

func TestParseProbe(t *testing.T) {
	out := []byte(`{
  "streams": [
    {"codec_type": "video", "width": 1920, "height": 1080},
    {"codec_type": "audio"}
  ],
  "format": {"duration": "123.456000"}
}`)
	info, err := parseProbe(out)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if info.Duration != 123.456 || !info.HasAudio || info.Width != 1920 || info.Height != 1080 {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestParseProbe_NoAudio(t *testing.T) {
	info, err := parseProbe([]byte(`{"streams":[{"codec_type":"video"}],"format":{"duration":"10"}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if info.HasAudio {
		t.Fatalf("expected no audio")
	}
}

func TestParseProbe_BadDuration(t *testing.T) {
	if _, err := parseProbe([]byte(`{"format":{"duration":"N/A"}}`)); err == nil {
		t.Fatalf("expected error")
	}
}

const showinfoOut = `Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'in.mp4':
[Parsed_showinfo_1 @ 0x600000f0c000] n:   0 pts:  62976 pts_time:4.1     duration:    512 fmt:yuv420p
[Parsed_showinfo_1 @ 0x600000f0c000] n:   1 pts: 153600 pts_time:10      duration:    512 fmt:yuv420p
[Parsed_showinfo_1 @ 0x600000f0c000] n:   2 pts: 307200 pts_time:20.5    duration:    512 fmt:yuv420p
frame=    3 fps=0.0 q=-0.0 Lsize=N/A time=00:00:30.00 bitrate=N/A speed= 120x
`

func TestParseCutsAndRows(t *testing.T) {
	cuts := parseCuts(showinfoOut)
	if !reflect.DeepEqual(cuts, []float64{4.1, 10, 20.5}) {
		t.Fatalf("unexpected cuts: %v", cuts)
	}
	rows := rowsFromCuts(cuts, 30)
	want := []types.SceneRow{{Start: 0, End: 4.1}, {Start: 4.1, End: 10}, {Start: 10, End: 20.5}, {Start: 20.5, End: 30}}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestRowsFromCuts_Edges(t *testing.T) {
	if rows := rowsFromCuts(nil, 30); rows != nil {
		t.Fatalf("no cuts should give no rows, got %+v", rows)
	}
	rows := rowsFromCuts([]float64{0, 15, 15, 40}, 30)
	want := []types.SceneRow{{Start: 0, End: 15}, {Start: 15, End: 30}}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if rows := rowsFromCuts([]float64{5}, 0); rows != nil {
		t.Fatalf("zero duration should give no rows")
	}
}

const metadataOut = `[Parsed_metadata_1 @ 0x1] frame:0    pts:0       pts_time:0
[Parsed_metadata_1 @ 0x1] lavfi.scene_score=0.000000
[Parsed_metadata_1 @ 0x1] frame:1    pts:512     pts_time:1
[Parsed_metadata_1 @ 0x1] lavfi.scene_score=0.200000
[Parsed_metadata_1 @ 0x1] frame:2    pts:1024    pts_time:6
[Parsed_metadata_1 @ 0x1] lavfi.scene_score=0.500000
[Parsed_metadata_1 @ 0x1] frame:3    pts:1536    pts_time:7
[Parsed_metadata_1 @ 0x1] lavfi.scene_score=0.300000
`

func TestParseFrameScoresAndAverage(t *testing.T) {
	frames := parseFrameScores(metadataOut)
	if len(frames) != 4 {
		t.Fatalf("expected 4 frames, got %+v", frames)
	}
	scenes := []types.Scene{
		{Index: 0, Start: 0, End: 5},
		{Index: 1, Start: 5, End: 10},
		{Index: 2, Start: 10, End: 20},
	}
	got := averagePerScene(frames, scenes)
	if got[0] != 0.1 || got[1] != 0.4 {
		t.Fatalf("unexpected averages: %v", got)
	}
	if _, ok := got[2]; ok {
		t.Fatalf("scene without frames must be absent: %v", got)
	}
}

func TestFmtSeconds(t *testing.T) {
	if got := fmtSeconds(12.5); got != "12.500" {
		t.Fatalf("got %q", got)
	}
}
