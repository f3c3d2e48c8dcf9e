package feishu

import (
	"context"

	"vidbatch/internal/config"
	"vidbatch/internal/logging"
)

// LookupEntry is one row of a reference table keyed by its lookup value.
type LookupEntry struct {
	RecordID string
	Name     string
	Value    string
}

// Snapshot holds the reference tables (accounts, voices, digital humans)
// loaded once before a batch starts. It is read-only afterwards, so workers
// can share it without locking.
type Snapshot struct {
	Accounts      map[string]LookupEntry
	Voices        map[string]LookupEntry
	DigitalHumans map[string]LookupEntry
}

// Account returns the account entry for the given key.
func (s *Snapshot) Account(key string) (LookupEntry, bool) {
	if s == nil {
		return LookupEntry{}, false
	}
	entry, ok := s.Accounts[key]
	return entry, ok
}

// Voice returns the voice entry for the given key.
func (s *Snapshot) Voice(key string) (LookupEntry, bool) {
	if s == nil {
		return LookupEntry{}, false
	}
	entry, ok := s.Voices[key]
	return entry, ok
}

// DigitalHuman returns the digital-human entry for the given key.
func (s *Snapshot) DigitalHuman(key string) (LookupEntry, bool) {
	if s == nil {
		return LookupEntry{}, false
	}
	entry, ok := s.DigitalHumans[key]
	return entry, ok
}

// BuildSnapshot loads each configured reference table in full. Tables
// without a configured id are left empty rather than treated as errors.
func (s *Source) BuildSnapshot(ctx context.Context) (*Snapshot, error) {
	snapshot := &Snapshot{
		Accounts:      map[string]LookupEntry{},
		Voices:        map[string]LookupEntry{},
		DigitalHumans: map[string]LookupEntry{},
	}

	load := func(table config.FeishuTable, keyField, dest string, into map[string]LookupEntry) error {
		if table.TableID == "" {
			return nil
		}
		records, err := s.client.SearchRecords(ctx, table.TableID, nil)
		if err != nil {
			return err
		}
		key := fieldName(table.FieldMapping, keyField)
		name := fieldName(table.FieldMapping, "name")
		value := fieldName(table.FieldMapping, "value")
		for _, record := range records {
			k := record.FieldString(key)
			if k == "" {
				continue
			}
			into[k] = LookupEntry{
				RecordID: record.RecordID,
				Name:     record.FieldString(name),
				Value:    record.FieldString(value),
			}
		}
		s.logger.Info("reference table loaded",
			logging.String("table", dest),
			logging.Int("entries", len(into)),
		)
		return nil
	}

	if err := load(s.cfg.AccountTable, "account", "accounts", snapshot.Accounts); err != nil {
		return nil, err
	}
	if err := load(s.cfg.VoiceTable, "voice_id", "voices", snapshot.Voices); err != nil {
		return nil, err
	}
	if err := load(s.cfg.DigitalHumanTable, "digital_no", "digital_humans", snapshot.DigitalHumans); err != nil {
		return nil, err
	}
	return snapshot, nil
}
