package docstore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rawReader exposes persisted field bytes for the byte-for-byte checks.
type rawReader func(t *testing.T, doc, name string) []byte

func embeddedStores(t *testing.T) map[string]Store {
	t.Helper()
	ps, err := NewPebbleStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ps.Close() })
	bs, err := NewBadgerStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = bs.Close() })
	return map[string]Store{
		"memory": NewMemStore(),
		"pebble": ps,
		"badger": bs,
	}
}

func TestStore_CreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	for name, st := range embeddedStores(t) {
		t.Run(name, func(t *testing.T) {
			id, err := st.Create(ctx, "streams/s1/events", map[string]any{
				"timestamp": "1609459200",
				"response":  map[string]any{"answer": int64(3), "tags": []any{"a", "b"}},
			})
			require.NoError(t, err)
			doc := Join("streams/s1/events", id)

			v, ok, err := st.GetField(ctx, doc, "timestamp")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "1609459200", v)

			_, ok, err = st.GetField(ctx, doc, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			want := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
			require.NoError(t, st.UpdateField(ctx, doc, "timestamp", want))

			v, ok, err = st.GetField(ctx, doc, "timestamp")
			require.NoError(t, err)
			require.True(t, ok)
			got, isTime := v.(time.Time)
			require.True(t, isTime, "timestamp should be structured, got %T", v)
			assert.True(t, want.Equal(got))

			all, err := st.Get(ctx, doc)
			require.NoError(t, err)
			assert.Equal(t, map[string]any{"answer": int64(3), "tags": []any{"a", "b"}}, all["response"])
		})
	}
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	for name, st := range embeddedStores(t) {
		t.Run(name, func(t *testing.T) {
			_, _, err := st.GetField(ctx, "streams/nope/events/nope", "timestamp")
			assert.ErrorIs(t, err, ErrNotFound)
			err = st.UpdateField(ctx, "streams/nope/events/nope", "timestamp", "x")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = st.Get(ctx, "streams/nope")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_ListChildDocumentsInCreationOrder(t *testing.T) {
	ctx := context.Background()
	for name, st := range embeddedStores(t) {
		t.Run(name, func(t *testing.T) {
			var want []string
			for i := 0; i < 20; i++ {
				id, err := st.Create(ctx, "streams/s1/events", map[string]any{"n": int64(i)})
				require.NoError(t, err)
				want = append(want, Join("streams/s1/events", id))
			}
			// siblings and nested documents must not leak into the listing
			_, err := st.Create(ctx, "streams/s2/events", map[string]any{"n": int64(99)})
			require.NoError(t, err)
			_, err = st.Create(ctx, "streams", map[string]any{"name": "s3"})
			require.NoError(t, err)

			got, err := st.ListChildDocuments(ctx, "streams/s1/events")
			require.NoError(t, err)
			assert.Equal(t, want, got)

			empty, err := st.ListChildDocuments(ctx, "streams/none/events")
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestStore_UpdateLeavesOtherFieldsByteIdentical(t *testing.T) {
	ctx := context.Background()
	ms := NewMemStore()
	id, err := ms.Create(ctx, "streams/s1/events", map[string]any{
		"timestamp": "1609459200",
		"response":  json.RawMessage(`{"q1":"yes","q2":[1,2,3]}`),
	})
	require.NoError(t, err)
	doc := Join("streams/s1/events", id)

	before, ok := ms.Raw(doc, "response")
	require.True(t, ok)
	require.NoError(t, ms.UpdateField(ctx, doc, "timestamp", time.Unix(1609459200, 0).UTC()))
	after, ok := ms.Raw(doc, "response")
	require.True(t, ok)
	assert.Equal(t, before, after)
}

func TestStore_InvalidPaths(t *testing.T) {
	ctx := context.Background()
	ms := NewMemStore()
	_, err := ms.Create(ctx, "streams/s1", map[string]any{})
	assert.Error(t, err)
	_, err = ms.ListChildDocuments(ctx, "streams//events")
	assert.Error(t, err)
}
