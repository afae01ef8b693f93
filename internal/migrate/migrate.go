package migrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"surveybox/internal/docstore"
	"surveybox/internal/ledger"
	"surveybox/internal/legacy"
	"surveybox/internal/metrics"
	"surveybox/internal/order"
	"surveybox/internal/window"
)

type Options struct {
	Conflict order.ConflictPolicy
	// DryRun resolves every window and consults the ledger but writes nothing.
	DryRun bool
}

// WindowResult reports what happened to one configured window.
type WindowResult struct {
	Key      string
	StreamID string
	Start    int
	End      int
	Events   int
	Written  int
	Skipped  bool
}

type Result struct {
	Windows []WindowResult
	Written int
	Skipped int
}

// Migrator drives read -> merge -> order -> resolve -> write for one run.
type Migrator struct {
	source  legacy.Source
	writer  *Writer
	ledger  ledger.Ledger
	metrics *metrics.Registry
	log     *zap.Logger
	opts    Options
}

func NewMigrator(src legacy.Source, store docstore.Store, led ledger.Ledger, reg *metrics.Registry, log *zap.Logger, opts Options) *Migrator {
	if led == nil {
		led = ledger.Nop{}
	}
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	if opts.Conflict == "" {
		opts.Conflict = order.Reject
	}
	return &Migrator{
		source:  src,
		writer:  NewWriter(store, log),
		ledger:  led,
		metrics: reg,
		log:     log,
		opts:    opts,
	}
}

// Run migrates every window in configuration order. Every window is resolved
// before the first write, so a ConfigurationError leaves the store untouched.
// A WriteError stops the run; windows after it are not attempted.
func (m *Migrator) Run(ctx context.Context, windows []window.DeploymentWindow) (Result, error) {
	began := time.Now()
	defer func() { m.metrics.RunDurationSec.Set(time.Since(began).Seconds()) }()

	tables, err := m.source.Read(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read legacy events: %w", err)
	}
	m.log.Info("legacy events read", zap.Int("prod", len(tables.Prod)), zap.Int("test", len(tables.Test)))

	merged, err := order.Merge(tables.Prod, tables.Test, m.opts.Conflict)
	if err != nil {
		return Result{}, fmt.Errorf("merge legacy tables: %w", err)
	}
	ordered := order.Order(merged)

	resolved, err := window.ResolveAll(windows, ordered)
	if err != nil {
		return Result{}, err
	}
	for _, r := range resolved {
		m.log.Info("window resolved",
			zap.Int("window", r.Position),
			zap.String("stream", r.Window.StreamID),
			zap.Int("start", r.Start),
			zap.Int("end", r.End),
			zap.Int("events", len(r.Events)))
	}

	var res Result
	for _, r := range resolved {
		wr, err := m.migrateWindow(ctx, r)
		res.Windows = append(res.Windows, wr)
		res.Written += wr.Written
		if wr.Skipped {
			res.Skipped++
		}
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

func (m *Migrator) migrateWindow(ctx context.Context, r window.Resolved) (WindowResult, error) {
	key := r.Key()
	wr := WindowResult{Key: key, StreamID: r.Window.StreamID, Start: r.Start, End: r.End, Events: len(r.Events)}

	done, err := m.ledger.Has(ctx, key)
	if err != nil {
		return wr, fmt.Errorf("ledger lookup %s: %w", key, err)
	}
	if done {
		wr.Skipped = true
		m.metrics.WindowsSkipped.Inc()
		m.log.Info("window skipped", zap.String("key", key), zap.String("reason", "already migrated"))
		return wr, nil
	}
	if m.opts.DryRun {
		m.log.Info("window dry run", zap.String("key", key), zap.Int("events", len(r.Events)))
		return wr, nil
	}

	n, err := m.writer.Append(ctx, r.Window.StreamID, r.Events)
	wr.Written = n
	m.metrics.EventsWritten.Add(float64(n))
	if err != nil {
		m.metrics.WindowsFailed.Inc()
		var we *WriteError
		if errors.As(err, &we) {
			m.log.Error("window failed", zap.String("key", key), zap.Int("written", we.Written), zap.Int("events", len(r.Events)), zap.Error(we.Err))
		}
		return wr, err
	}

	entry := ledger.Entry{Key: key, StreamID: r.Window.StreamID, Events: n, MigratedAt: ledger.NowUnix()}
	if err := m.ledger.Mark(ctx, entry); err != nil {
		return wr, fmt.Errorf("ledger mark %s: %w", key, err)
	}
	m.metrics.WindowsMigrated.Inc()
	m.log.Info("window migrated", zap.String("key", key), zap.String("stream", r.Window.StreamID), zap.Int("events", n))
	return wr, nil
}
