// Package legacy reads the two flat legacy event tables (production and
// test) that predate the per-stream schema.
package legacy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"surveybox/internal/model"
)

// Default table names in the legacy realtime database.
const (
	ProdTable = "events"
	TestTable = "events-test"
)

// Tables holds both legacy tables keyed by event id.
type Tables struct {
	Prod map[string]model.LegacyEvent
	Test map[string]model.LegacyEvent
}

// Len is the total number of records across both tables.
func (t Tables) Len() int { return len(t.Prod) + len(t.Test) }

// Source returns the legacy tables.
type Source interface {
	Read(ctx context.Context) (Tables, error)
}

// parseTable decodes an {eventId: {timestamp, type, response}} object. A
// missing or null table is empty.
func parseTable(name string, r gjson.Result) (map[string]model.LegacyEvent, error) {
	out := make(map[string]model.LegacyEvent)
	if !r.Exists() || r.Type == gjson.Null {
		return out, nil
	}
	if !r.IsObject() {
		return nil, fmt.Errorf("table %s: expected object, got %s", name, r.Type)
	}
	var perr error
	r.ForEach(func(key, value gjson.Result) bool {
		ev, err := parseEvent(key.String(), value)
		if err != nil {
			perr = fmt.Errorf("table %s: %w", name, err)
			return false
		}
		out[ev.ID] = ev
		return true
	})
	if perr != nil {
		return nil, perr
	}
	return out, nil
}

func parseEvent(id string, r gjson.Result) (model.LegacyEvent, error) {
	if !r.IsObject() {
		return model.LegacyEvent{}, fmt.Errorf("event %s: expected object", id)
	}
	ts := r.Get("timestamp")
	var (
		sec  float64
		text string
	)
	switch ts.Type {
	case gjson.Number:
		f, err := model.ParseEpochSeconds(ts.Raw)
		if err != nil {
			return model.LegacyEvent{}, fmt.Errorf("event %s: timestamp: %w", id, err)
		}
		sec = f
	case gjson.String:
		f, err := model.ParseEpochSeconds(ts.Str)
		if err != nil {
			return model.LegacyEvent{}, fmt.Errorf("event %s: timestamp: %w", id, err)
		}
		sec, text = f, ts.Str
	default:
		return model.LegacyEvent{}, fmt.Errorf("event %s: missing numeric timestamp", id)
	}
	ev := model.LegacyEvent{
		ID:        id,
		Timestamp:     sec,
		Type:          r.Get("type").String(),
		TimestampText: text,
	}
	if resp := r.Get("response"); resp.Exists() {
		ev.Response = json.RawMessage(resp.Raw)
	}
	return ev, nil
}
