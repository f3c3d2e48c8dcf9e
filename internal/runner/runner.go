package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"vidbatch/internal/batch"
	"vidbatch/internal/config"
	"vidbatch/internal/jobs"
	"vidbatch/internal/locks"
	"vidbatch/internal/logging"
	"vidbatch/internal/poller"
	"vidbatch/internal/preflight"
	"vidbatch/internal/services"
	"vidbatch/internal/services/coze"
	"vidbatch/internal/services/feishu"
	"vidbatch/internal/store"
)

// Options configures one batch run beyond what the config file carries.
type Options struct {
	// Workers overrides batch.max_workers when positive.
	Workers int
	// Progress receives per-item completion callbacks.
	Progress batch.ProgressFunc
	// SkipPreflight bypasses the readiness checks (used by tests).
	SkipPreflight bool
}

// Runner owns the moving parts of a batch run. Construct one with New and
// call Run once; the instance holds no state between runs beyond the
// history store.
type Runner struct {
	cfg    *config.Config
	logger *slog.Logger
	client jobs.Client
	source Source
}

// Source is the work-item side of the bitable service, split out so tests
// can substitute a fake.
type Source interface {
	ListPending(ctx context.Context) ([]batch.WorkItem, error)
	BuildSnapshot(ctx context.Context) (*feishu.Snapshot, error)
	UpdateStatus(ctx context.Context, result batch.ItemResult) error
}

// New wires a runner from configuration: the bitable source and the
// workflow client.
func New(cfg *config.Config, logger *slog.Logger) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	feishuClient := feishu.NewClient(feishu.Config{
		AppID:          cfg.Feishu.AppID,
		AppSecret:      cfg.Feishu.AppSecret,
		AppToken:       cfg.Feishu.AppToken,
		BaseURL:        cfg.Feishu.BaseURL,
		TimeoutSeconds: cfg.Feishu.RequestTimeout,
	})
	source := feishu.NewSource(feishuClient, cfg.Feishu, logging.NewComponentLogger(logger, "feishu"))

	cozeClient := coze.NewClient(coze.Config{
		Token:          cfg.Coze.Token,
		WorkflowID:     cfg.Coze.WorkflowID,
		BaseURL:        cfg.Coze.BaseURL,
		TimeoutSeconds: cfg.Coze.RequestTimeout,
	})

	return &Runner{cfg: cfg, logger: logger, client: cozeClient, source: source}, nil
}

// NewWithDependencies constructs a runner with explicit collaborators
// (used in tests).
func NewWithDependencies(cfg *config.Config, logger *slog.Logger, client jobs.Client, source Source) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{cfg: cfg, logger: logger, client: client, source: source}
}

// Run executes one full batch: preflight, listing, fan-out, aggregation,
// history. SIGINT and SIGTERM stop the feed; items already polling run to
// their attempt ceiling. Only one runner may execute per state directory,
// enforced with a file lock.
func (r *Runner) Run(cmdCtx context.Context, opts Options) (batch.Report, error) {
	var empty batch.Report

	ctx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := r.cfg.EnsureDirectories(); err != nil {
		return empty, fmt.Errorf("ensure directories: %w", err)
	}

	lockPath := filepath.Join(r.cfg.Paths.StateDir, "vidbatch.lock")
	runLock := flock.New(lockPath)
	ok, err := runLock.TryLock()
	if err != nil {
		return empty, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return empty, fmt.Errorf("another batch run holds %s", lockPath)
	}
	defer func() { _ = runLock.Unlock() }()

	if !opts.SkipPreflight {
		results := preflight.RunAll(ctx, r.cfg)
		if !preflight.AllPassed(results) {
			for _, f := range preflight.Failures(results) {
				r.logger.Error("preflight check failed",
					logging.String("check", f.Name),
					logging.String("detail", f.Detail),
					logging.String(logging.FieldErrorHint, "run 'vidbatch check' to inspect the environment"),
				)
			}
			return empty, errors.New("preflight checks failed")
		}
	}

	history, err := store.Open(r.cfg)
	if err != nil {
		return empty, fmt.Errorf("open history store: %w", err)
	}
	defer func() { _ = history.Close() }()
	r.logger.Debug("history store open", logging.String("path", history.Path()))

	items, err := r.source.ListPending(ctx)
	if err != nil {
		return empty, fmt.Errorf("list pending items: %w", err)
	}
	batchID := newBatchID()
	if len(items) == 0 {
		r.logger.Info("no pending work items", logging.String(logging.FieldBatchID, batchID))
		now := time.Now()
		return batch.Report{BatchID: batchID, StartedAt: now, FinishedAt: now}, nil
	}

	snapshot, err := r.source.BuildSnapshot(ctx)
	if err != nil {
		return empty, fmt.Errorf("build lookup snapshot: %w", err)
	}

	workers := r.cfg.Batch.MaxWorkers
	if opts.Workers > 0 {
		workers = opts.Workers
	}

	classifier := jobs.NewFatalClassifier(r.cfg.Coze.FatalKeywords, r.cfg.Coze.FatalCodes)
	synth := newSynthesizer(r.cfg, locks.NewRegistry(), snapshot, r.logger)
	processor := r.makeProcessor(classifier, synth)

	pool := batch.NewPool(workers, processor, batch.WithPoolLogger(logging.NewComponentLogger(r.logger, "pool")))
	coordinatorOpts := []batch.CoordinatorOption{
		batch.WithRecorder(history),
		batch.WithLogger(logging.NewComponentLogger(r.logger, "batch")),
	}
	if r.cfg.Batch.UpdateSource {
		coordinatorOpts = append(coordinatorOpts, batch.WithSourceUpdater(r.source))
	}
	if opts.Progress != nil {
		coordinatorOpts = append(coordinatorOpts, batch.WithProgress(opts.Progress))
	}
	coordinator := batch.NewCoordinator(pool, coordinatorOpts...)

	if err := history.BeginRun(ctx, batchID, len(items), time.Now()); err != nil {
		return empty, fmt.Errorf("begin run: %w", err)
	}

	report := coordinator.Execute(services.WithBatchID(ctx, batchID), batchID, items)
	r.logger.Info("batch finished",
		logging.String(logging.FieldBatchID, batchID),
		logging.String(logging.FieldEventType, "batch_finished"),
		logging.Bool("all_succeeded", report.AllSucceeded()),
		logging.Duration("elapsed", report.Duration()),
		logging.Int("succeeded", report.Succeeded),
		logging.Int("failed", report.Failed),
		logging.Int("invalid", report.Invalid),
	)

	if err := history.FinishRun(context.Background(), report); err != nil {
		r.logger.Warn("finish run record failed", logging.Error(err))
	}
	if keep := r.cfg.Batch.KeepHistory; keep > 0 {
		if err := history.Prune(context.Background(), keep); err != nil {
			r.logger.Warn("history prune failed", logging.Error(err))
		}
	}
	return report, nil
}

// makeProcessor builds the per-item worker body: drive the remote job to a
// terminal state, then hand successful output to the synthesizer.
func (r *Runner) makeProcessor(classifier *jobs.FatalClassifier, synth *synthesizer) batch.Processor {
	interval := time.Duration(r.cfg.Coze.PollInterval) * time.Second
	maxAttempts := r.cfg.Coze.MaxAttempts

	return func(ctx context.Context, worker string, item batch.WorkItem) batch.ItemResult {
		itemCtx := services.WithItemID(ctx, item.ID)
		itemCtx = services.WithRequestID(itemCtx, uuid.NewString())
		itemLogger := logging.WithContext(itemCtx, r.logger).With(
			logging.String("worker", worker),
		)
		p := poller.New(r.client, classifier, interval, maxAttempts,
			poller.WithLogger(itemLogger))
		outcome := p.Run(itemCtx, item.SubmitParams())

		result := batch.ItemResult{
			State:    outcome.State,
			Output:   outcome.Output,
			Handle:   outcome.Handle,
			Err:      outcome.Err,
			Attempts: outcome.Attempts,
		}
		if result.State == jobs.StateSucceeded && synth != nil {
			if err := synth.Build(item, outcome.Output); err != nil {
				itemLogger.Warn("draft assembly failed", logging.Error(err))
				result.State = jobs.StateFailed
				result.Err = err
			}
		}
		return result
	}
}

func newBatchID() string {
	ts := time.Now().UTC().Format("20060102T150405")
	return ts + "-" + strings.Split(uuid.NewString(), "-")[0]
}
