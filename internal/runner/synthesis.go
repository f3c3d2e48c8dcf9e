package runner

import (
	"encoding/json"
	"log/slog"
	"strings"

	"vidbatch/internal/batch"
	"vidbatch/internal/config"
	"vidbatch/internal/draft"
	"vidbatch/internal/locks"
	"vidbatch/internal/logging"
	"vidbatch/internal/naming"
	"vidbatch/internal/services"
	"vidbatch/internal/services/feishu"
)

const defaultSegmentDuration = 10_000_000 // microseconds

// synthesizer turns a successful workflow output into a saved draft
// project. One instance serves all workers in a batch; the shared lock
// registry serializes mutations per track so colliding project names
// cannot corrupt each other.
type synthesizer struct {
	cfg      *config.Config
	registry *locks.Registry
	snapshot *feishu.Snapshot
	names    *naming.Generator
	logger   *slog.Logger
}

func newSynthesizer(cfg *config.Config, registry *locks.Registry, snapshot *feishu.Snapshot, logger *slog.Logger) *synthesizer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &synthesizer{
		cfg:      cfg,
		registry: registry,
		snapshot: snapshot,
		names:    naming.NewGenerator(),
		logger:   logging.NewComponentLogger(logger, "synthesis"),
	}
}

// workflowOutput is the shape the synthesis workflow returns. Field
// spellings have drifted over time, so both casings are accepted.
type workflowOutput struct {
	VideoURL     string  `json:"videoUrl"`
	VideoURLAlt  string  `json:"video_url"`
	AudioURL     string  `json:"audioUrl"`
	AudioURLAlt  string  `json:"audio_url"`
	DurationSecs float64 `json:"duration"`
}

func (o workflowOutput) video() string {
	if o.VideoURL != "" {
		return o.VideoURL
	}
	return o.VideoURLAlt
}

func (o workflowOutput) audio() string {
	if o.AudioURL != "" {
		return o.AudioURL
	}
	return o.AudioURLAlt
}

func (o workflowOutput) durationMicros() int64 {
	if o.DurationSecs > 0 {
		return int64(o.DurationSecs * 1_000_000)
	}
	return defaultSegmentDuration
}

// Build assembles and saves the draft for one completed item. In
// synthesis-only mode the remote output is the deliverable and no draft is
// written.
func (s *synthesizer) Build(item batch.WorkItem, raw json.RawMessage) error {
	if s.cfg.Batch.SynthesisOnly {
		return nil
	}

	var output workflowOutput
	if err := json.Unmarshal(raw, &output); err != nil {
		return services.Wrap(services.ErrFatal, "synthesis", "decode", "workflow output is not an object", err)
	}
	if output.video() == "" {
		return services.Wrap(services.ErrFatal, "synthesis", "decode", "workflow output has no video url", nil)
	}

	s.warnUnknownReferences(item)

	projectName := item.ProjectName
	if projectName == "" {
		projectName = s.names.ProjectName(item.Title)
	}

	script := draft.NewScript(projectName)
	safe := draft.NewSafeScript(script, s.registry)

	duration := output.durationMicros()
	if err := safe.AddSegment("main_video", draft.TrackVideo, draft.Segment{
		MaterialPath: output.video(),
		Range:        draft.Timerange{Start: 0, Duration: duration},
	}); err != nil {
		return err
	}
	if audio := output.audio(); audio != "" {
		if err := safe.AddSegment("voiceover", draft.TrackAudio, draft.Segment{
			MaterialPath: audio,
			Range:        draft.Timerange{Start: 0, Duration: duration},
		}); err != nil {
			return err
		}
	}
	if text := strings.TrimSpace(item.Content); text != "" {
		if err := safe.AddSegment("subtitles", draft.TrackText, draft.Segment{
			Text:  text,
			Range: draft.Timerange{Start: 0, Duration: duration},
		}); err != nil {
			return err
		}
	}

	path, err := safe.Save(s.cfg.Paths.DraftDir)
	if err != nil {
		return err
	}
	s.logger.Info("draft saved",
		logging.String(logging.FieldItemID, item.ID),
		logging.String("path", path),
		logging.Int64("timeline_us", duration),
		logging.Float64("media_duration_secs", output.DurationSecs),
	)
	return nil
}

// warnUnknownReferences flags items whose avatar or voice references are
// absent from the reference tables. The workflow may still accept them, so
// this is advisory only.
func (s *synthesizer) warnUnknownReferences(item batch.WorkItem) {
	if s.snapshot == nil {
		return
	}
	if item.DigitalNo != "" {
		if _, ok := s.snapshot.DigitalHuman(item.DigitalNo); !ok && len(s.snapshot.DigitalHumans) > 0 {
			s.logger.Warn("digital human not found in reference table",
				logging.String(logging.FieldItemID, item.ID),
				logging.String("digital_no", item.DigitalNo),
			)
		}
	}
	if item.VoiceID != "" {
		if _, ok := s.snapshot.Voice(item.VoiceID); !ok && len(s.snapshot.Voices) > 0 {
			s.logger.Warn("voice not found in reference table",
				logging.String(logging.FieldItemID, item.ID),
				logging.String("voice_id", item.VoiceID),
			)
		}
	}
}
