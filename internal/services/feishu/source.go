package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"vidbatch/internal/batch"
	"vidbatch/internal/config"
	"vidbatch/internal/jobs"
	"vidbatch/internal/logging"
	"vidbatch/internal/naming"
	"vidbatch/internal/services"
)

// Default field names in the content table. Any of them can be overridden
// per table through the field mapping in the configuration.
var defaultFieldNames = map[string]string{
	"title":        "仿写标题",
	"content":      "仿写文案",
	"digital_no":   "数字人编号",
	"voice_id":     "声音ID",
	"project_name": "项目名称",
	"account":      "关联账号",
	"status":       "状态",
	"video_path":   "视频草稿",
	"error":        "失败原因",
	"name":         "名称",
	"value":        "值",
}

// fieldName resolves a logical field key to the table's column name.
func fieldName(mapping map[string]string, key string) string {
	if mapping != nil {
		if name := strings.TrimSpace(mapping[key]); name != "" {
			return name
		}
	}
	return defaultFieldNames[key]
}

// Source adapts the bitable content table into batch work items and writes
// per-item status back after completion.
type Source struct {
	client *Client
	cfg    config.Feishu
	logger *slog.Logger
	names  *naming.Generator
}

// NewSource constructs a work-item source over the given client.
func NewSource(client *Client, cfg config.Feishu, logger *slog.Logger) *Source {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Source{client: client, cfg: cfg, logger: logger, names: naming.NewGenerator()}
}

// ListPending fetches the rows awaiting synthesis and converts them into
// work items. Rows without title or content are skipped here with a log
// line; validation of submission fields is the coordinator's job.
func (s *Source) ListPending(ctx context.Context) ([]batch.WorkItem, error) {
	mapping := s.cfg.ContentTable.FieldMapping
	filter := StatusFilter(fieldName(mapping, "status"), s.cfg.PendingStatus)

	records, err := s.client.SearchRecords(ctx, s.cfg.ContentTable.TableID, filter)
	if err != nil {
		// Some tables reject filters on select-type columns; fall back to a
		// full scan and filter locally.
		s.logger.Warn("filtered search failed, scanning full table", logging.Error(err))
		records, err = s.client.SearchRecords(ctx, s.cfg.ContentTable.TableID, nil)
		if err != nil {
			return nil, err
		}
		records = filterByStatus(records, fieldName(mapping, "status"), s.cfg.PendingStatus)
	}

	items := make([]batch.WorkItem, 0, len(records))
	for i, record := range records {
		item := batch.WorkItem{
			ID:          fmt.Sprintf("feishu_%d", i+1),
			RecordRef:   record.RecordID,
			Title:       record.FieldString(fieldName(mapping, "title")),
			Content:     record.FieldString(fieldName(mapping, "content")),
			DigitalNo:   record.FieldString(fieldName(mapping, "digital_no")),
			VoiceID:     record.FieldString(fieldName(mapping, "voice_id")),
			ProjectName: record.FieldString(fieldName(mapping, "project_name")),
			Account:     record.FieldString(fieldName(mapping, "account")),
		}
		if item.Title == "" || item.Content == "" {
			s.logger.Warn("skipping row without title or content",
				logging.String("record_id", record.RecordID))
			continue
		}
		if item.ProjectName == "" {
			item.ProjectName = s.names.ProjectName(item.Title)
		}
		items = append(items, item)
	}
	s.logger.Info("pending work items listed",
		logging.Int("rows", len(records)),
		logging.Int("items", len(items)),
	)
	return items, nil
}

func filterByStatus(records []Record, statusField, status string) []Record {
	out := records[:0]
	for _, record := range records {
		if record.FieldString(statusField) == status {
			out = append(out, record)
		}
	}
	return out
}

// UpdateStatus writes the item's terminal outcome back onto its source
// row: the done or failed status, plus the draft path on success and the
// failure reason otherwise.
func (s *Source) UpdateStatus(ctx context.Context, result batch.ItemResult) error {
	if result.Item.RecordRef == "" {
		return services.Wrap(services.ErrValidation, "feishu", "update", "item has no source record reference", nil)
	}
	mapping := s.cfg.ContentTable.FieldMapping
	fields := map[string]any{}
	if result.Succeeded() {
		fields[fieldName(mapping, "status")] = s.cfg.DoneStatus
		if path := extractVideoPath(result.Output); path != "" {
			fields[fieldName(mapping, "video_path")] = path
		}
	} else {
		fields[fieldName(mapping, "status")] = s.cfg.FailedStatus
		fields[fieldName(mapping, "error")] = truncate(describeFailure(result), 500)
	}
	return s.client.UpdateRecord(ctx, s.cfg.ContentTable.TableID, result.Item.RecordRef, fields)
}

func describeFailure(result batch.ItemResult) string {
	if result.Err != nil {
		return result.Err.Error()
	}
	if result.State == jobs.StateTimedOut {
		return "synthesis did not finish within the attempt budget"
	}
	return string(result.State)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// extractVideoPath pulls the generated artifact location out of the
// workflow output, tolerating the field spellings the workflow has used.
func extractVideoPath(output json.RawMessage) string {
	if len(output) == 0 {
		return ""
	}
	var fields map[string]any
	if err := json.Unmarshal(output, &fields); err != nil {
		return ""
	}
	for _, key := range []string{"videoUrl", "video_url", "draft_path", "draftPath", "url"} {
		if v, ok := fields[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

var _ batch.SourceUpdater = (*Source)(nil)
