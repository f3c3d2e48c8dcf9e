package draft

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"vidbatch/internal/services"
)

func TestAddTrackIsIdempotentForSameKind(t *testing.T) {
	script := NewScript("demo")
	first, err := script.AddTrack("subtitles", TrackText)
	if err != nil {
		t.Fatalf("AddTrack: %v", err)
	}
	second, err := script.AddTrack("subtitles", TrackText)
	if err != nil {
		t.Fatalf("AddTrack repeat: %v", err)
	}
	if first != second {
		t.Fatal("repeated AddTrack must return the same track instance")
	}
	if names := script.TrackNames(); len(names) != 1 {
		t.Fatalf("track names = %v, want one entry", names)
	}
	if !script.HasTrack("subtitles") {
		t.Fatal("HasTrack must report the created track")
	}
	if script.HasTrack("main") {
		t.Fatal("HasTrack must not report a track that was never created")
	}
}

func TestAddTrackRejectsKindMismatch(t *testing.T) {
	script := NewScript("demo")
	if _, err := script.AddTrack("main", TrackVideo); err != nil {
		t.Fatalf("AddTrack: %v", err)
	}
	_, err := script.AddTrack("main", TrackAudio)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error on kind mismatch, got %v", err)
	}
}

func TestAddSegmentRejectsOverlap(t *testing.T) {
	script := NewScript("demo")
	if _, err := script.AddTrack("main", TrackVideo); err != nil {
		t.Fatalf("AddTrack: %v", err)
	}
	if err := script.AddSegment("main", Segment{MaterialPath: "a.mp4", Range: Timerange{Start: 0, Duration: 1_000_000}}); err != nil {
		t.Fatalf("first segment: %v", err)
	}
	err := script.AddSegment("main", Segment{MaterialPath: "b.mp4", Range: Timerange{Start: 500_000, Duration: 1_000_000}})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected overlap rejection, got %v", err)
	}
	if err := script.AddSegment("main", Segment{MaterialPath: "b.mp4", Range: Timerange{Start: 1_000_000, Duration: 1_000_000}}); err != nil {
		t.Fatalf("abutting segment: %v", err)
	}
}

func TestAddSegmentRequiresTrack(t *testing.T) {
	script := NewScript("demo")
	err := script.AddSegment("missing", Segment{Range: Timerange{Duration: 1}})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestDurationSpansAllTracks(t *testing.T) {
	script := NewScript("demo")
	script.AddTrack("video", TrackVideo)
	script.AddTrack("audio", TrackAudio)
	script.AddSegment("video", Segment{Range: Timerange{Start: 0, Duration: 2_000_000}})
	script.AddSegment("audio", Segment{Range: Timerange{Start: 1_000_000, Duration: 5_000_000}})
	if d := script.Duration(); d != 6_000_000 {
		t.Fatalf("duration = %d, want 6000000", d)
	}
}

func TestSaveWritesDraftFile(t *testing.T) {
	script := NewScript("my_project")
	script.AddTrack("subtitles", TrackText)
	script.AddSegment("subtitles", Segment{Text: "hello", Range: Timerange{Duration: 3_000_000}})

	dir := t.TempDir()
	path, err := script.Save(dir)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if path != filepath.Join(dir, "my_project", "draft_content.json") {
		t.Fatalf("unexpected draft path %s", path)
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read draft: %v", err)
	}
	var doc struct {
		ProjectName string `json:"project_name"`
		Duration    int64  `json:"duration"`
		Tracks      []struct {
			Name     string `json:"name"`
			Type     string `json:"type"`
			Segments []struct {
				ID   string `json:"id"`
				Text string `json:"text"`
			} `json:"segments"`
		} `json:"tracks"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		t.Fatalf("decode draft: %v", err)
	}
	if doc.ProjectName != "my_project" || doc.Duration != 3_000_000 {
		t.Fatalf("unexpected document header: %+v", doc)
	}
	if len(doc.Tracks) != 1 || doc.Tracks[0].Type != "text" || len(doc.Tracks[0].Segments) != 1 {
		t.Fatalf("unexpected tracks: %+v", doc.Tracks)
	}
	if doc.Tracks[0].Segments[0].ID == "" {
		t.Fatal("segment was saved without a generated id")
	}
}
