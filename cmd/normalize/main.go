package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"surveybox/internal/config"
	"surveybox/internal/docstore"
	"surveybox/internal/metrics"
	"surveybox/internal/normalize"
	"surveybox/internal/snapshot"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	flags := []cli.Flag{
		&cli.StringSliceFlag{Name: "stream", Usage: "stream id to normalize (repeatable)", Required: true, EnvVars: []string{"SURVEYBOX_STREAMS"}},
		&cli.StringFlag{Name: "field", Value: "timestamp", EnvVars: []string{"SURVEYBOX_FIELD"}},
		&cli.StringFlag{Name: "on-parse-error", Usage: "skip|abort", Value: string(normalize.Skip), EnvVars: []string{"SURVEYBOX_ON_PARSE_ERROR"}},
		&cli.IntFlag{Name: "workers", Usage: "documents processed concurrently per stream", Value: 1, EnvVars: []string{"SURVEYBOX_WORKERS"}},
		&cli.StringFlag{Name: "backup-dir", Usage: "write a streams.json snapshot here before rewriting", EnvVars: []string{"SURVEYBOX_BACKUP_DIR"}},
	}
	flags = append(flags, config.LogFlags()...)
	flags = append(flags, config.StoreFlags()...)
	flags = append(flags, config.MetricsFlags()...)

	app := &cli.App{
		Name:   "normalize",
		Usage:  "rewrite textual event timestamps as structured timestamps",
		Flags:  flags,
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "normalize:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log, err := config.Logger(c)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	policy, err := normalize.ParseParsePolicy(c.String("on-parse-error"))
	if err != nil {
		return err
	}
	streams := c.StringSlice("stream")

	st, err := docstore.Open(c.Context, config.StoreOptions(c), log)
	if err != nil {
		return err
	}
	defer st.Close()

	if dir := c.String("backup-dir"); dir != "" {
		id := time.Now().UTC().Format("20060102T150405Z")
		path, err := snapshot.NewFilesystemSnapshotter(dir).WriteStreams(c.Context, st, streams, id)
		if err != nil {
			return fmt.Errorf("backup: %w", err)
		}
		log.Info("backup written", zap.String("path", path))
	}

	reg := metrics.NewRegistry()
	stopMetrics := config.ServeMetrics(c, reg, log)
	defer stopMetrics()

	n := normalize.New(st, reg, log, normalize.Options{
		Field:   c.String("field"),
		Policy:  policy,
		Workers: c.Int("workers"),
	})
	rep, err := n.Run(c.Context, streams)
	config.PushMetrics(c, reg, "surveybox_normalize", log)
	if err != nil {
		return err
	}
	log.Info("normalization complete", zap.Int("streams", len(rep.Streams)), zap.Int("updated", rep.Updates()))
	return nil
}
