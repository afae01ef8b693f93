package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Retrying wraps a Store and retries failed calls with exponential backoff.
// ErrNotFound is never retried. A retried Create whose first attempt reached
// the store but lost its response produces a duplicate document.
type Retrying struct {
	next    Store
	retries uint64
	initial time.Duration
	log     *zap.Logger
}

func WithRetry(next Store, retries uint64, initial time.Duration, log *zap.Logger) *Retrying {
	if initial <= 0 {
		initial = 200 * time.Millisecond
	}
	return &Retrying{next: next, retries: retries, initial: initial, log: log}
}

func (r *Retrying) do(ctx context.Context, op string, target string, fn func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.initial
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, r.retries), ctx)
	return backoff.RetryNotify(func() error {
		err := fn()
		if errors.Is(err, ErrNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, wait time.Duration) {
		r.log.Warn("store call failed, retrying",
			zap.String("op", op),
			zap.String("path", target),
			zap.Duration("wait", wait),
			zap.Error(err))
	})
}

func (r *Retrying) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	var id string
	err := r.do(ctx, "create", collection, func() error {
		var e error
		id, e = r.next.Create(ctx, collection, fields)
		return e
	})
	return id, err
}

func (r *Retrying) Get(ctx context.Context, doc string) (map[string]any, error) {
	var out map[string]any
	err := r.do(ctx, "get", doc, func() error {
		var e error
		out, e = r.next.Get(ctx, doc)
		return e
	})
	return out, err
}

func (r *Retrying) GetField(ctx context.Context, doc string, name string) (any, bool, error) {
	var (
		v  any
		ok bool
	)
	err := r.do(ctx, "get_field", doc, func() error {
		var e error
		v, ok, e = r.next.GetField(ctx, doc, name)
		return e
	})
	return v, ok, err
}

func (r *Retrying) UpdateField(ctx context.Context, doc string, name string, value any) error {
	return r.do(ctx, "update_field", doc, func() error {
		return r.next.UpdateField(ctx, doc, name, value)
	})
}

func (r *Retrying) ListChildDocuments(ctx context.Context, collection string) ([]string, error) {
	var out []string
	err := r.do(ctx, "list", collection, func() error {
		var e error
		out, e = r.next.ListChildDocuments(ctx, collection)
		return e
	})
	return out, err
}

func (r *Retrying) Close() error { return r.next.Close() }
