package normalize

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"surveybox/internal/docstore"
	"surveybox/internal/metrics"
)

// countingStore counts UpdateField calls.
type countingStore struct {
	docstore.Store
	updates atomic.Int64
}

func (c *countingStore) UpdateField(ctx context.Context, doc string, name string, value any) error {
	c.updates.Add(1)
	return c.Store.UpdateField(ctx, doc, name, value)
}

func seed(t *testing.T, st docstore.Store, stream string, docs ...map[string]any) []string {
	t.Helper()
	var paths []string
	for _, fields := range docs {
		id, err := st.Create(context.Background(), docstore.StreamEvents(stream), fields)
		require.NoError(t, err)
		paths = append(paths, docstore.Join(docstore.StreamEvents(stream), id))
	}
	return paths
}

func TestParseTimestamp(t *testing.T) {
	got, err := ParseTimestamp("1609459200")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseTimestamp(" 1609459200.25\n")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 250000000, time.UTC), got)
	assert.Equal(t, time.UTC, got.Location())

	got, err = ParseTimestamp("-1.5")
	require.NoError(t, err)
	assert.Equal(t, time.Date(1969, 12, 31, 23, 59, 58, 500000000, time.UTC), got)

	for _, bad := range []string{"", "abc", "12:30", "NaN", "Inf", "-inf", "1e300"} {
		_, err := ParseTimestamp(bad)
		assert.Error(t, err, bad)
	}
}

func TestNormalizer_RewritesTextAndKeepsResponse(t *testing.T) {
	ctx := context.Background()
	mem := docstore.NewMemStore()
	docs := seed(t, mem, "s1", map[string]any{
		"timestamp": "1609459200",
		"response":  map[string]any{"button": int64(2), "note": "ok"},
	})
	before, ok := mem.Raw(docs[0], "response")
	require.True(t, ok)

	n := New(mem, nil, zap.NewNop(), Options{})
	rep, err := n.Run(ctx, []string{"s1"})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Updates())

	v, ok, err := mem.GetField(ctx, docs[0], "timestamp")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), v)

	after, ok := mem.Raw(docs[0], "response")
	require.True(t, ok)
	assert.Equal(t, before, after)
}

func TestNormalizer_SecondRunWritesNothing(t *testing.T) {
	for _, workers := range []int{1, 4} {
		st := &countingStore{Store: docstore.NewMemStore()}
		seed(t, st, "s1",
			map[string]any{"timestamp": "1580000000"},
			map[string]any{"timestamp": "1580000001.5"},
			map[string]any{"timestamp": int64(1580000002)},
			map[string]any{"type": "press"},
		)
		n := New(st, nil, zap.NewNop(), Options{Workers: workers})

		first, err := n.Run(context.Background(), []string{"s1"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), st.updates.Load())
		assert.Equal(t, StreamReport{StreamID: "s1", Converted: 2, AlreadyTyped: 1, Missing: 1}, first.Streams[0])

		second, err := n.Run(context.Background(), []string{"s1"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), st.updates.Load(), "workers=%d", workers)
		assert.Equal(t, StreamReport{StreamID: "s1", AlreadyTyped: 3, Missing: 1}, second.Streams[0])
	}
}

func TestNormalizer_ParsePolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("skip", func(t *testing.T) {
		mem := docstore.NewMemStore()
		docs := seed(t, mem, "s1",
			map[string]any{"timestamp": "not a number"},
			map[string]any{"timestamp": "1609459200"},
		)
		reg := metrics.NewRegistry()
		rep, err := New(mem, reg, zap.NewNop(), Options{Policy: Skip}).Run(ctx, []string{"s1"})
		require.NoError(t, err)
		assert.Equal(t, 1, rep.Streams[0].ParseFailed)
		assert.Equal(t, 1, rep.Streams[0].Converted)
		assert.Equal(t, 1.0, testutil.ToFloat64(reg.Documents.WithLabelValues(metrics.OutcomeParseFailed)))

		v, _, _ := mem.GetField(ctx, docs[0], "timestamp")
		assert.Equal(t, "not a number", v)
	})

	t.Run("abort", func(t *testing.T) {
		st := &countingStore{Store: docstore.NewMemStore()}
		seed(t, st, "s1",
			map[string]any{"timestamp": "not a number"},
			map[string]any{"timestamp": "1609459200"},
		)
		_, err := New(st, nil, zap.NewNop(), Options{Policy: Abort}).Run(ctx, []string{"s1", "s2"})
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "not a number", pe.Value)
		assert.Equal(t, int64(0), st.updates.Load())
	})
}

func TestNormalizer_CustomFieldAndStructuredInput(t *testing.T) {
	ctx := context.Background()
	mem := docstore.NewMemStore()
	already := time.Date(2020, 2, 1, 12, 0, 0, 0, time.UTC)
	docs := seed(t, mem, "s1",
		map[string]any{"createdAt": "1609459200", "timestamp": "keep"},
		map[string]any{"createdAt": already},
	)

	rep, err := New(mem, nil, zap.NewNop(), Options{Field: "createdAt"}).Run(ctx, []string{"s1"})
	require.NoError(t, err)
	assert.Equal(t, StreamReport{StreamID: "s1", Converted: 1, AlreadyTyped: 1}, rep.Streams[0])

	v, _, _ := mem.GetField(ctx, docs[0], "timestamp")
	assert.Equal(t, "keep", v)
	v, _, _ = mem.GetField(ctx, docs[1], "createdAt")
	assert.Equal(t, already, v)
}

func TestNormalizer_DocumentOutcomes(t *testing.T) {
	ctx := context.Background()
	mem := docstore.NewMemStore()
	docs := seed(t, mem, "s1", map[string]any{"type": "press"})
	n := New(mem, nil, zap.NewNop(), Options{})

	o, err := n.Document(ctx, docs[0])
	assert.Equal(t, Missing, o)
	assert.ErrorIs(t, err, ErrFieldMissing)

	_, err = n.Document(ctx, "streams/s1/events/nope")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestParseParsePolicy(t *testing.T) {
	p, err := ParseParsePolicy("abort")
	require.NoError(t, err)
	assert.Equal(t, Abort, p)
	_, err = ParseParsePolicy("ignore")
	assert.Error(t, err)
}
