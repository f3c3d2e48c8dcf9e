package testsupport

import (
	"path/filepath"
	"testing"

	"vidbatch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories and dummy
// credentials per test. It defaults common fields and applies any provided
// options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DraftDir = filepath.Join(base, "drafts")
	cfg.Paths.MaterialsDir = filepath.Join(base, "materials")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Coze.Token = "test-token"
	cfg.Coze.WorkflowID = "wf-test"
	cfg.Feishu.AppID = "test-app"
	cfg.Feishu.AppSecret = "test-secret"
	cfg.Feishu.AppToken = "test-base"
	cfg.Feishu.ContentTable.TableID = "tbltest"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithImmediatePolling removes the wait between poll attempts and caps the
// attempt budget, which keeps poll-loop tests fast.
func WithImmediatePolling(maxAttempts int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Coze.PollInterval = 0
		cfg.Coze.MaxAttempts = maxAttempts
	}
}

// WithMaxWorkers overrides the worker count on the test config.
func WithMaxWorkers(workers int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Batch.MaxWorkers = workers
	}
}

// WithSourceUpdates enables write-back of item outcomes to the work-item
// source.
func WithSourceUpdates() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Batch.UpdateSource = true
	}
}
