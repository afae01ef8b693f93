package window

import (
	"fmt"

	"github.com/samber/lo"

	"surveybox/internal/model"
	"surveybox/internal/order"
)

// ConfigurationError means the window table does not match the legacy data.
// It aborts the whole run.
type ConfigurationError struct {
	Window int // position in the table
	Field  string
	ID     string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("window %d: %s", e.Window, e.Reason)
	}
	return fmt.Sprintf("window %d: %s id %s %s", e.Window, e.Field, e.ID, e.Reason)
}

// Resolved is a window mapped onto the order, after tie expansion.
type Resolved struct {
	Window   DeploymentWindow
	Position int
	Start    int
	End      int
	Events   []model.SimplifiedEvent
}

// Key identifies the window in the migration ledger.
func (r Resolved) Key() string {
	return fmt.Sprintf("%s..%s@%s", r.Window.StartID, r.Window.EndID, r.Window.StreamID)
}

// Expand widens [start, end] outward across neighbours that share the
// boundary timestamp. Re-expanding an expanded range returns it unchanged.
func Expand(events []model.OrderedEvent, start, end int) (int, int) {
	for start > 0 && events[start-1].Timestamp == events[start].Timestamp {
		start--
	}
	for end < len(events)-1 && events[end+1].Timestamp == events[end].Timestamp {
		end++
	}
	return start, end
}

// Resolve looks up both endpoints, expands boundary ties and projects the
// inclusive slice down to simplified events.
func Resolve(pos int, w DeploymentWindow, o order.Ordered) (Resolved, error) {
	start, ok := o.Lookup(w.StartID)
	if !ok {
		return Resolved{}, &ConfigurationError{Window: pos, Field: "start", ID: w.StartID, Reason: "not found in merged legacy events"}
	}
	end, ok := o.Lookup(w.EndID)
	if !ok {
		return Resolved{}, &ConfigurationError{Window: pos, Field: "end", ID: w.EndID, Reason: "not found in merged legacy events"}
	}
	if start > end {
		return Resolved{}, &ConfigurationError{
			Window: pos,
			Reason: fmt.Sprintf("start %s (index %d) is after end %s (index %d)", w.StartID, start, w.EndID, end),
		}
	}
	start, end = Expand(o.Events, start, end)
	return Resolved{
		Window:   w,
		Position: pos,
		Start:    start,
		End:      end,
		Events: lo.Map(o.Events[start:end+1], func(e model.OrderedEvent, _ int) model.SimplifiedEvent {
			return model.Simplify(e.LegacyEvent)
		}),
	}, nil
}

// ResolveAll resolves every window in table order. Any ConfigurationError is
// returned before the caller has a chance to write anything.
func ResolveAll(ws []DeploymentWindow, o order.Ordered) ([]Resolved, error) {
	out := make([]Resolved, 0, len(ws))
	for i, w := range ws {
		r, err := Resolve(i, w, o)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
