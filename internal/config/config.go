// Package config holds the command-line flags shared by the binaries and
// builds components from them. Every flag can also be set through a
// SURVEYBOX_* environment variable, and LoadEnv fills the environment from a
// .env file first.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"surveybox/internal/docstore"
	"surveybox/internal/ledger"
	"surveybox/internal/legacy"
	"surveybox/internal/logger"
	"surveybox/internal/metrics"
)

const EnvPrefix = "SURVEYBOX_"

func envVars(name string) []string {
	return []string{EnvPrefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))}
}

// LoadEnv loads the file named by SURVEYBOX_ENV_FILE (default .env) into the
// environment. Variables already set win. A missing file is not an error.
func LoadEnv() error {
	path := os.Getenv(EnvPrefix + "ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func LogFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "environment", Usage: "development|production", Value: "development", EnvVars: envVars("environment")},
	}
}

func Logger(c *cli.Context) (*zap.Logger, error) {
	return logger.New(c.String("environment"))
}

func StoreFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "backend", Usage: "memory|pebble|badger|firestore|mongo", Value: "firestore", EnvVars: envVars("backend")},
		&cli.StringFlag{Name: "data-dir", Usage: "directory for the pebble and badger backends", Value: "./data", EnvVars: envVars("data-dir")},
		&cli.StringFlag{Name: "project", Usage: "Firestore project id", EnvVars: envVars("project")},
		&cli.StringFlag{Name: "credentials", Usage: "service account credentials file", EnvVars: envVars("credentials")},
		&cli.StringFlag{Name: "mongo-uri", Value: "mongodb://localhost:27017", EnvVars: envVars("mongo-uri")},
		&cli.StringFlag{Name: "mongo-db", Value: "surveybox", EnvVars: envVars("mongo-db")},
		&cli.Uint64Flag{Name: "retries", Usage: "retries per store call, 0 disables", Value: 3, EnvVars: envVars("retries")},
		&cli.DurationFlag{Name: "retry-initial", Usage: "initial retry backoff", Value: 200 * time.Millisecond, EnvVars: envVars("retry-initial")},
	}
}

func StoreOptions(c *cli.Context) docstore.Options {
	return docstore.Options{
		Backend:         c.String("backend"),
		DataDir:         c.String("data-dir"),
		Project:         c.String("project"),
		CredentialsFile: c.String("credentials"),
		MongoURI:        c.String("mongo-uri"),
		MongoDB:         c.String("mongo-db"),
		Retries:         c.Uint64("retries"),
		RetryInitial:    c.Duration("retry-initial"),
	}
}

func SourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "source", Usage: "export|firebase|kafka", Value: "export", EnvVars: envVars("source")},
		&cli.StringFlag{Name: "export-file", Usage: "Firebase realtime database JSON export", EnvVars: envVars("export-file")},
		&cli.StringFlag{Name: "firebase-url", Usage: "database base URL, e.g. https://<project>.firebaseio.com", EnvVars: envVars("firebase-url")},
		&cli.StringFlag{Name: "firebase-project", Usage: "derive --firebase-url from a project name", EnvVars: envVars("firebase-project")},
		&cli.StringFlag{Name: "firebase-auth", Usage: "database secret or id token", EnvVars: envVars("firebase-auth")},
		&cli.StringFlag{Name: "kafka-brokers", Usage: "comma separated host:port list", Value: "localhost:19092", EnvVars: envVars("kafka-brokers")},
		&cli.StringFlag{Name: "topic-prod", Value: "surveybox.events", EnvVars: envVars("topic-prod")},
		&cli.StringFlag{Name: "topic-test", Value: "surveybox.events-test", EnvVars: envVars("topic-test")},
		&cli.DurationFlag{Name: "kafka-idle", Usage: "stop reading a topic after this long without records", Value: 10 * time.Second, EnvVars: envVars("kafka-idle")},
	}
}

func Source(c *cli.Context, log *zap.Logger) (legacy.Source, error) {
	switch s := c.String("source"); s {
	case "export":
		path := c.String("export-file")
		if path == "" {
			return nil, errors.New("--export-file is required for --source export")
		}
		return legacy.NewExportSource(path), nil
	case "firebase":
		url := c.String("firebase-url")
		if url == "" && c.String("firebase-project") != "" {
			url = legacy.ProjectURL(c.String("firebase-project"))
		}
		if url == "" {
			return nil, errors.New("--firebase-url or --firebase-project is required for --source firebase")
		}
		return legacy.NewFirebaseSource(url, c.String("firebase-auth"), log), nil
	case "kafka":
		brokers := SplitBrokers(c.String("kafka-brokers"))
		if len(brokers) == 0 {
			return nil, errors.New("--kafka-brokers is required for --source kafka")
		}
		return legacy.NewKafkaSource(brokers, c.String("topic-prod"), c.String("topic-test"), c.Duration("kafka-idle")), nil
	default:
		return nil, fmt.Errorf("unknown source %q (want export|firebase|kafka)", s)
	}
}

func LedgerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "ledger", Usage: "file|kafka|both|none", Value: "file", EnvVars: envVars("ledger")},
		&cli.StringFlag{Name: "ledger-dir", Value: "./ledger", EnvVars: envVars("ledger-dir")},
		&cli.StringFlag{Name: "ledger-topic", Value: "surveybox.migrated-windows", EnvVars: envVars("ledger-topic")},
	}
}

// Ledger builds the processed-window set. The kafka variant reuses
// --kafka-brokers.
func Ledger(c *cli.Context) (ledger.Ledger, error) {
	file := func() (ledger.Ledger, error) { return ledger.NewFileLedger(c.String("ledger-dir")) }
	kafka := func() ledger.Ledger { return ledger.NewKafkaLedger(c.String("kafka-brokers"), c.String("ledger-topic")) }

	switch l := c.String("ledger"); l {
	case "file":
		return file()
	case "kafka":
		return kafka(), nil
	case "both":
		f, err := file()
		if err != nil {
			return nil, err
		}
		return ledger.Multi(f, kafka()), nil
	case "none":
		return ledger.Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown ledger %q (want file|kafka|both|none)", l)
	}
}

func MetricsFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "metrics-addr", Usage: "serve /metrics on this address while running", EnvVars: envVars("metrics-addr")},
		&cli.StringFlag{Name: "pushgateway", Usage: "push metrics to this pushgateway URL when done", EnvVars: envVars("pushgateway")},
	}
}

// ServeMetrics starts the /metrics endpoint when --metrics-addr is set. The
// returned func shuts it down.
func ServeMetrics(c *cli.Context, reg *metrics.Registry, log *zap.Logger) func() {
	addr := c.String("metrics-addr")
	if addr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", addr))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// PushMetrics pushes to --pushgateway when set. Failures are logged only.
func PushMetrics(c *cli.Context, reg *metrics.Registry, job string, log *zap.Logger) {
	url := c.String("pushgateway")
	if url == "" {
		return
	}
	if err := reg.Push(c.Context, url, job); err != nil {
		log.Warn("push metrics", zap.String("url", url), zap.Error(err))
	}
}

// SplitBrokers turns a comma separated host:port list into a slice.
func SplitBrokers(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
