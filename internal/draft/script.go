package draft

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"vidbatch/internal/services"
)

// TrackKind enumerates the track types a script supports.
type TrackKind string

const (
	TrackVideo TrackKind = "video"
	TrackAudio TrackKind = "audio"
	TrackText  TrackKind = "text"
)

func (k TrackKind) valid() bool {
	switch k {
	case TrackVideo, TrackAudio, TrackText:
		return true
	default:
		return false
	}
}

// Timerange positions a segment on its track. Values are microseconds,
// matching the draft file format.
type Timerange struct {
	Start    int64 `json:"start"`
	Duration int64 `json:"duration"`
}

// End returns the exclusive end of the range.
func (t Timerange) End() int64 {
	return t.Start + t.Duration
}

// Segment is one clip on a track. MaterialPath carries the media file for
// video and audio segments; Text carries the content for text segments.
type Segment struct {
	ID           string    `json:"id"`
	MaterialPath string    `json:"material_path,omitempty"`
	Text         string    `json:"text,omitempty"`
	Range        Timerange `json:"target_timerange"`
}

// Track is an ordered list of segments of one kind. All mutation goes
// through Script methods, which the SafeScript facade serializes per track
// name.
type Track struct {
	Name     string    `json:"name"`
	Kind     TrackKind `json:"type"`
	Segments []Segment `json:"segments"`
}

// appendSegment places the segment after the track's current tail,
// rejecting overlaps.
func (t *Track) appendSegment(seg Segment) error {
	if len(t.Segments) > 0 {
		tail := t.Segments[len(t.Segments)-1]
		if seg.Range.Start < tail.Range.End() {
			return services.Wrap(services.ErrValidation, "draft", "add-segment",
				fmt.Sprintf("segment overlaps tail of track %s (start %d < end %d)", t.Name, seg.Range.Start, tail.Range.End()), nil)
		}
	}
	t.Segments = append(t.Segments, seg)
	return nil
}

// Script is the in-memory draft document: a named project holding named
// typed tracks. Track creation, lookup, segment insertion, and export are
// all synchronized on one internal mutex. Compound operations that read
// the timeline before writing (append at the current tail) additionally
// need the track's named lock, which SafeScript holds.
type Script struct {
	ProjectName string
	Width       int
	Height      int
	FPS         int
	CreatedAt   time.Time

	mu         sync.Mutex
	tracks     map[string]*Track
	trackOrder []string
}

// NewScript constructs an empty 1080p script.
func NewScript(projectName string) *Script {
	return &Script{
		ProjectName: projectName,
		Width:       1080,
		Height:      1920,
		FPS:         30,
		CreatedAt:   time.Now(),
		tracks:      make(map[string]*Track),
	}
}

// HasTrack reports whether a track with the given name exists.
func (s *Script) HasTrack(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tracks[name]
	return ok
}

// Track returns the named track, or nil.
func (s *Script) Track(name string) *Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracks[name]
}

// TrackNames returns the track names in creation order.
func (s *Script) TrackNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.trackOrder))
	copy(out, s.trackOrder)
	return out
}

// AddTrack creates a named track. Adding a name that already exists with
// the same kind is a no-op; a kind mismatch is an error.
func (s *Script) AddTrack(name string, kind TrackKind) (*Track, error) {
	if strings.TrimSpace(name) == "" {
		return nil, services.Wrap(services.ErrValidation, "draft", "add-track", "empty track name", nil)
	}
	if !kind.valid() {
		return nil, services.Wrap(services.ErrValidation, "draft", "add-track", fmt.Sprintf("unknown track kind %q", kind), nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.tracks[name]; ok {
		if existing.Kind != kind {
			return nil, services.Wrap(services.ErrValidation, "draft", "add-track",
				fmt.Sprintf("track %s already exists with kind %s", name, existing.Kind), nil)
		}
		return existing, nil
	}
	track := &Track{Name: name, Kind: kind}
	s.tracks[name] = track
	s.trackOrder = append(s.trackOrder, name)
	return track, nil
}

// AddSegment appends a segment to the named track, which must exist. The
// append happens under the script mutex so a concurrent export never
// observes a half-applied mutation; placing a segment relative to the
// current tail still needs the track's named lock, which SafeScript holds.
func (s *Script) AddSegment(trackName string, seg Segment) error {
	if seg.ID == "" {
		seg.ID = uuid.NewString()
	}
	if seg.Range.Duration <= 0 {
		return services.Wrap(services.ErrValidation, "draft", "add-segment", "segment duration must be positive", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	track, ok := s.tracks[trackName]
	if !ok {
		return services.Wrap(services.ErrNotFound, "draft", "add-segment", fmt.Sprintf("track %s does not exist", trackName), nil)
	}
	return track.appendSegment(seg)
}

// Duration returns the microsecond timeline length: the latest segment end
// across all tracks.
func (s *Script) Duration() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.durationLocked()
}

func (s *Script) durationLocked() int64 {
	var max int64
	for _, track := range s.tracks {
		for _, seg := range track.Segments {
			if end := seg.Range.End(); end > max {
				max = end
			}
		}
	}
	return max
}

type scriptJSON struct {
	ProjectName string    `json:"project_name"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	FPS         int       `json:"fps"`
	Duration    int64     `json:"duration"`
	CreatedAt   time.Time `json:"created_at"`
	Tracks      []*Track  `json:"tracks"`
}

// MarshalJSON exports the script in the draft file layout, tracks in
// creation order. The export runs under the script mutex, so it sees
// every fully-applied mutation and never a partial one.
func (s *Script) MarshalJSON() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tracks := make([]*Track, 0, len(s.trackOrder))
	for _, name := range s.trackOrder {
		tracks = append(tracks, s.tracks[name])
	}
	doc := scriptJSON{
		ProjectName: s.ProjectName,
		Width:       s.Width,
		Height:      s.Height,
		FPS:         s.FPS,
		Duration:    s.durationLocked(),
		CreatedAt:   s.CreatedAt,
		Tracks:      tracks,
	}
	return json.Marshal(doc)
}

// Save writes the exported draft under dir, one directory per project,
// creating directories as needed.
func (s *Script) Save(dir string) (string, error) {
	payload, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", services.Wrap(services.ErrFatal, "draft", "save", "encode draft", err)
	}
	projectDir := filepath.Join(dir, s.ProjectName)
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrFatal, "draft", "save", "create draft directory", err)
	}
	path := filepath.Join(projectDir, "draft_content.json")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", services.Wrap(services.ErrFatal, "draft", "save", "write draft file", err)
	}
	return path, nil
}
