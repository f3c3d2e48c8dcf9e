package draft

import (
	"vidbatch/internal/locks"
)

// SafeScript wraps a Script so concurrent workers can mutate it without
// racing on track creation or segment insertion. Each track name maps to
// one named lock; mutations for distinct tracks never contend.
type SafeScript struct {
	script   *Script
	registry *locks.Registry
	saveLock string
}

// NewSafeScript wraps script with the given lock registry. Passing a nil
// registry allocates a private one.
func NewSafeScript(script *Script, registry *locks.Registry) *SafeScript {
	if registry == nil {
		registry = locks.NewRegistry()
	}
	return &SafeScript{
		script:   script,
		registry: registry,
		saveLock: "draft:save:" + script.ProjectName,
	}
}

// WithTrack ensures the named track exists, then runs fn against the script
// while holding that track's lock. Existence check and creation happen
// under the same lock, so K concurrent callers create the track exactly
// once. The lock is released on every exit path.
func (s *SafeScript) WithTrack(name string, kind TrackKind, fn func(*Script, *Track) error) error {
	var outErr error
	s.registry.WithLock(trackLockName(s.script.ProjectName, name), func() {
		track, err := s.script.AddTrack(name, kind)
		if err != nil {
			outErr = err
			return
		}
		if fn != nil {
			outErr = fn(s.script, track)
		}
	})
	return outErr
}

// AddSegment ensures the track exists and appends the segment under the
// track's lock.
func (s *SafeScript) AddSegment(trackName string, kind TrackKind, seg Segment) error {
	return s.WithTrack(trackName, kind, func(script *Script, _ *Track) error {
		return script.AddSegment(trackName, seg)
	})
}

// Save serializes the draft to dir. The export itself synchronizes with
// writers on the script mutex; the dedicated save lock keeps two saves of
// the same project from interleaving their file writes.
func (s *SafeScript) Save(dir string) (string, error) {
	var path string
	var err error
	s.registry.WithLock(s.saveLock, func() {
		path, err = s.script.Save(dir)
	})
	return path, err
}

func trackLockName(project, track string) string {
	return "draft:track:" + project + ":" + track
}
