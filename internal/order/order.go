// Package order merges the two legacy tables and ranks every event in a
// single timestamp-ascending total order.
package order

import (
	"fmt"
	"sort"

	"surveybox/internal/model"
)

// ConflictPolicy decides what happens when both tables hold the same id.
type ConflictPolicy string

const (
	// Reject fails the merge on the first shared id.
	Reject ConflictPolicy = "reject"
	// FirstWins keeps the production record.
	FirstWins ConflictPolicy = "first-wins"
	// LastWins keeps the test record, silently shadowing production.
	LastWins ConflictPolicy = "last-wins"
)

// ParseConflictPolicy validates a policy name.
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch p := ConflictPolicy(s); p {
	case Reject, FirstWins, LastWins:
		return p, nil
	}
	return "", fmt.Errorf("unknown conflict policy %q (want reject|first-wins|last-wins)", s)
}

// DuplicateIDError reports an id present in both tables under Reject.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("event id %s present in both legacy tables", e.ID)
}

// Merge combines the production and test tables into one id-keyed mapping.
// Duplicate detection visits ids in sorted order so Reject always reports
// the same id for the same input.
func Merge(prod, test map[string]model.LegacyEvent, policy ConflictPolicy) (map[string]model.LegacyEvent, error) {
	out := make(map[string]model.LegacyEvent, len(prod)+len(test))
	for id, ev := range prod {
		ev.ID = id
		out[id] = ev
	}
	ids := make([]string, 0, len(test))
	for id := range test {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		ev := test[id]
		ev.ID = id
		if _, dup := out[id]; dup {
			switch policy {
			case FirstWins:
				continue
			case LastWins:
				// replaced below
			default:
				return nil, &DuplicateIDError{ID: id}
			}
		}
		out[id] = ev
	}
	return out, nil
}

// Ordered is the merged sequence plus the id -> order index lookup.
type Ordered struct {
	Events []model.OrderedEvent
	Index  map[string]int
}

// Len is the number of ordered events.
func (o Ordered) Len() int { return len(o.Events) }

// Lookup returns the order index of id.
func (o Ordered) Lookup(id string) (int, bool) {
	i, ok := o.Index[id]
	return i, ok
}

// Order sorts events ascending by timestamp. Equal timestamps are ordered by
// id (byte-wise), so the index mapping is identical across runs.
func Order(events map[string]model.LegacyEvent) Ordered {
	list := make([]model.LegacyEvent, 0, len(events))
	for id, ev := range events {
		ev.ID = id
		list = append(list, ev)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Timestamp != list[j].Timestamp {
			return list[i].Timestamp < list[j].Timestamp
		}
		return list[i].ID < list[j].ID
	})
	o := Ordered{
		Events: make([]model.OrderedEvent, len(list)),
		Index:  make(map[string]int, len(list)),
	}
	for i, ev := range list {
		o.Events[i] = model.OrderedEvent{LegacyEvent: ev, Index: i}
		o.Index[ev.ID] = i
	}
	return o
}
