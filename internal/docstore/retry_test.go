package docstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// flakyStore fails the first n UpdateField calls.
type flakyStore struct {
	*MemStore
	failures int
	calls    int
}

func (f *flakyStore) UpdateField(ctx context.Context, doc string, name string, value any) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("unavailable")
	}
	return f.MemStore.UpdateField(ctx, doc, name, value)
}

func TestRetrying_RecoversFromTransientFailures(t *testing.T) {
	ctx := context.Background()
	fs := &flakyStore{MemStore: NewMemStore(), failures: 2}
	id, err := fs.Create(ctx, "streams/s/events", map[string]any{"timestamp": "1"})
	require.NoError(t, err)

	r := WithRetry(fs, 3, time.Millisecond, zap.NewNop())
	require.NoError(t, r.UpdateField(ctx, Join("streams/s/events", id), "timestamp", "2"))
	assert.Equal(t, 3, fs.calls)
}

func TestRetrying_GivesUp(t *testing.T) {
	ctx := context.Background()
	fs := &flakyStore{MemStore: NewMemStore(), failures: 10}
	id, err := fs.Create(ctx, "streams/s/events", map[string]any{})
	require.NoError(t, err)

	r := WithRetry(fs, 2, time.Millisecond, zap.NewNop())
	err = r.UpdateField(ctx, Join("streams/s/events", id), "timestamp", "2")
	require.Error(t, err)
	assert.Equal(t, 3, fs.calls)
}

func TestRetrying_NotFoundIsPermanent(t *testing.T) {
	fs := &flakyStore{MemStore: NewMemStore()}
	r := WithRetry(fs, 5, time.Millisecond, zap.NewNop())
	err := r.UpdateField(context.Background(), "streams/s/events/missing", "timestamp", "2")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, fs.calls)
}

func TestOpen_Backends(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, Options{Backend: "pebble", DataDir: t.TempDir(), Retries: 1}, zap.NewNop())
	require.NoError(t, err)
	_, isRetrying := st.(*Retrying)
	assert.True(t, isRetrying)
	require.NoError(t, st.Close())

	_, err = Open(ctx, Options{Backend: "firestore"}, zap.NewNop())
	assert.Error(t, err)
	_, err = Open(ctx, Options{Backend: "sqlite"}, zap.NewNop())
	assert.Error(t, err)
}
