package order

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveybox/internal/model"
)

func table(evs ...model.LegacyEvent) map[string]model.LegacyEvent {
	out := make(map[string]model.LegacyEvent, len(evs))
	for _, ev := range evs {
		out[ev.ID] = ev
	}
	return out
}

func TestMerge_Disjoint(t *testing.T) {
	prod := table(model.LegacyEvent{ID: "a", Timestamp: 1}, model.LegacyEvent{ID: "b", Timestamp: 2})
	test := table(model.LegacyEvent{ID: "c", Timestamp: 3})
	merged, err := Merge(prod, test, Reject)
	require.NoError(t, err)
	assert.Len(t, merged, 3)
}

func TestMerge_ConflictPolicies(t *testing.T) {
	prod := table(model.LegacyEvent{ID: "a", Timestamp: 1, Type: "prod"})
	test := table(model.LegacyEvent{ID: "a", Timestamp: 9, Type: "test"})

	_, err := Merge(prod, test, Reject)
	var dup *DuplicateIDError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "a", dup.ID)

	first, err := Merge(prod, test, FirstWins)
	require.NoError(t, err)
	assert.Equal(t, "prod", first["a"].Type)

	last, err := Merge(prod, test, LastWins)
	require.NoError(t, err)
	assert.Equal(t, "test", last["a"].Type)
}

func TestParseConflictPolicy(t *testing.T) {
	p, err := ParseConflictPolicy("last-wins")
	require.NoError(t, err)
	assert.Equal(t, LastWins, p)
	_, err = ParseConflictPolicy("newest")
	assert.Error(t, err)
}

// For any disjoint input the index is a bijection onto 0..n-1 and the order
// is non-decreasing in timestamp.
func TestOrder_IndexIsBijectionAndSorted(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		prod := map[string]model.LegacyEvent{}
		test := map[string]model.LegacyEvent{}
		n := rng.Intn(200)
		for i := 0; i < n; i++ {
			ev := model.LegacyEvent{ID: fmt.Sprintf("-id%04d", i), Timestamp: float64(rng.Intn(20))}
			if rng.Intn(2) == 0 {
				prod[ev.ID] = ev
			} else {
				test[ev.ID] = ev
			}
		}
		merged, err := Merge(prod, test, Reject)
		require.NoError(t, err)
		o := Order(merged)

		require.Equal(t, n, o.Len())
		require.Len(t, o.Index, n)
		seen := make([]bool, n)
		for id, idx := range o.Index {
			require.True(t, idx >= 0 && idx < n)
			require.False(t, seen[idx], "index %d assigned twice", idx)
			seen[idx] = true
			assert.Equal(t, id, o.Events[idx].ID)
			assert.Equal(t, idx, o.Events[idx].Index)
		}
		for i := 1; i < n; i++ {
			require.LessOrEqual(t, o.Events[i-1].Timestamp, o.Events[i].Timestamp)
		}
	}
}

func TestOrder_TieBreakByID(t *testing.T) {
	events := table(
		model.LegacyEvent{ID: "-c", Timestamp: 10},
		model.LegacyEvent{ID: "-a", Timestamp: 10},
		model.LegacyEvent{ID: "-b", Timestamp: 5},
	)
	for i := 0; i < 20; i++ {
		o := Order(events)
		assert.Equal(t, map[string]int{"-b": 0, "-a": 1, "-c": 2}, o.Index)
	}
	idx, ok := Order(events).Lookup("-c")
	assert.True(t, ok)
	assert.Equal(t, 2, idx)
	_, ok = Order(events).Lookup("-z")
	assert.False(t, ok)
}
