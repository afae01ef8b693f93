package docstore

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Options selects and configures a backend.
type Options struct {
	Backend         string // memory|pebble|badger|firestore|mongo
	DataDir         string
	Project         string
	CredentialsFile string
	MongoURI        string
	MongoDB         string
	Retries         uint64
	RetryInitial    time.Duration
}

// Open builds the configured backend, wrapped with retries when Retries > 0.
func Open(ctx context.Context, opts Options, log *zap.Logger) (Store, error) {
	var (
		st  Store
		err error
	)
	switch opts.Backend {
	case "memory", "":
		st = NewMemStore()
	case "pebble":
		st, err = NewPebbleStore(opts.DataDir)
	case "badger":
		st, err = NewBadgerStore(opts.DataDir)
	case "firestore":
		if opts.Project == "" {
			return nil, fmt.Errorf("firestore backend requires a project")
		}
		st, err = NewFirestoreStore(ctx, opts.Project, opts.CredentialsFile)
	case "mongo":
		st, err = NewMongoStore(ctx, opts.MongoURI, opts.MongoDB)
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	log.Info("document store opened", zap.String("backend", opts.Backend), zap.Uint64("retries", opts.Retries))
	if opts.Retries > 0 {
		return WithRetry(st, opts.Retries, opts.RetryInitial, log), nil
	}
	return st, nil
}
