package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"surveybox/internal/config"
	"surveybox/internal/docstore"
	"surveybox/internal/metrics"
	"surveybox/internal/migrate"
	"surveybox/internal/order"
	"surveybox/internal/window"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	flags := []cli.Flag{
		&cli.StringFlag{Name: "windows", Usage: "YAML or JSON deployment window table", Required: true, EnvVars: []string{"SURVEYBOX_WINDOWS"}},
		&cli.StringFlag{Name: "conflict", Usage: "id present in both legacy tables: reject|first-wins|last-wins", Value: string(order.Reject), EnvVars: []string{"SURVEYBOX_CONFLICT"}},
		&cli.BoolFlag{Name: "dry-run", Usage: "resolve windows and report without writing"},
	}
	flags = append(flags, config.LogFlags()...)
	flags = append(flags, config.StoreFlags()...)
	flags = append(flags, config.SourceFlags()...)
	flags = append(flags, config.LedgerFlags()...)
	flags = append(flags, config.MetricsFlags()...)

	app := &cli.App{
		Name:   "migrate",
		Usage:  "copy legacy events into stream event collections, one deployment window at a time",
		Flags:  flags,
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log, err := config.Logger(c)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	windows, err := window.LoadFile(c.String("windows"))
	if err != nil {
		return err
	}
	policy, err := order.ParseConflictPolicy(c.String("conflict"))
	if err != nil {
		return err
	}
	src, err := config.Source(c, log)
	if err != nil {
		return err
	}
	led, err := config.Ledger(c)
	if err != nil {
		return err
	}
	st, err := docstore.Open(c.Context, config.StoreOptions(c), log)
	if err != nil {
		return err
	}
	defer st.Close()

	reg := metrics.NewRegistry()
	stopMetrics := config.ServeMetrics(c, reg, log)
	defer stopMetrics()

	m := migrate.NewMigrator(src, st, led, reg, log, migrate.Options{Conflict: policy, DryRun: c.Bool("dry-run")})
	res, err := m.Run(c.Context, windows)
	config.PushMetrics(c, reg, "surveybox_migrate", log)

	var we *migrate.WriteError
	if errors.As(err, &we) {
		log.Error("migration stopped; remaining windows not attempted",
			zap.String("stream", we.StreamID),
			zap.Int("written", we.Written),
			zap.Int("windows_done", len(res.Windows)-1),
			zap.Int("windows_total", len(windows)))
	}
	if err != nil {
		return err
	}
	log.Info("migration complete",
		zap.Int("windows", len(res.Windows)),
		zap.Int("written", res.Written),
		zap.Int("skipped", res.Skipped),
		zap.Bool("dry_run", c.Bool("dry-run")))
	return nil
}
