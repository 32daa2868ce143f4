package highlights

import (
	"math"
	"testing"

	"github.com/forPelevin/hlscene/internal/types"
)

func TestBuildCatalog_EmptyInput(t *testing.T) {
	cat := BuildCatalog(nil, 120)
	if len(cat.Scenes) != 0 || cat.Dropped != 0 {
		t.Fatalf("expected empty catalog, got %+v", cat)
	}
}

func TestBuildCatalog_DropsMalformedRows(t *testing.T) {
	rows := []types.SceneRow{
		{Start: 50, End: 40},
		{Start: 10, End: 20},
		{Start: 130, End: 140},
		{Start: math.NaN(), End: 5},
		{Start: 30, End: 30},
	}
	cat := BuildCatalog(rows, 120)
	if len(cat.Scenes) != 1 {
		t.Fatalf("expected 1 scene, got %d", len(cat.Scenes))
	}
	if cat.Dropped != 4 {
		t.Fatalf("expected 4 dropped rows, got %d", cat.Dropped)
	}
	if got := cat.Scenes[0]; got.Start != 10 || got.End != 20 || got.Index != 0 {
		t.Fatalf("unexpected scene: %+v", got)
	}
}

func TestBuildCatalog_SortsClipsAndTrimsOverlaps(t *testing.T) {
	rows := []types.SceneRow{
		{Start: 60, End: 150},
		{Start: -5, End: 20},
		{Start: 15, End: 60},
		{Start: 20, End: 25},
	}
	cat := BuildCatalog(rows, 100)

	want := []types.Scene{
		{Index: 0, Start: 0, End: 20},
		{Index: 1, Start: 20, End: 60},
		{Index: 2, Start: 60, End: 100},
	}
	if len(cat.Scenes) != len(want) {
		t.Fatalf("expected %d scenes, got %+v", len(want), cat.Scenes)
	}
	for i := range want {
		if cat.Scenes[i] != want[i] {
			t.Fatalf("scene %d: got %+v, want %+v", i, cat.Scenes[i], want[i])
		}
	}
	if cat.Dropped != 1 {
		t.Fatalf("expected the swallowed row to be dropped, got %d", cat.Dropped)
	}
	for i := 1; i < len(cat.Scenes); i++ {
		if cat.Scenes[i].Start < cat.Scenes[i-1].End {
			t.Fatalf("scenes overlap: %+v", cat.Scenes)
		}
	}
}

func TestBuildCatalog_InvalidDuration(t *testing.T) {
	cat := BuildCatalog([]types.SceneRow{{Start: 0, End: 5}}, 0)
	if len(cat.Scenes) != 0 || cat.Dropped != 1 {
		t.Fatalf("unexpected catalog: %+v", cat)
	}
}
