package model

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// LegacyEvent is one record of the flat legacy event tables.
type LegacyEvent struct {
	ID        string          `json:"-"`
	Timestamp float64         `json:"timestamp"`
	Type      string          `json:"type"`
	Response  json.RawMessage `json:"response,omitempty"`
	// TimestampText is the original text when the table stored the
	// timestamp as a string, empty otherwise.
	TimestampText string `json:"-"`
}

// OrderedEvent is a LegacyEvent with its rank in the merged timestamp order.
type OrderedEvent struct {
	LegacyEvent
	Index int
}

// SimplifiedEvent is the subset of a legacy event persisted under a stream.
type SimplifiedEvent struct {
	Type          string  `json:"type"`
	Timestamp     float64 `json:"timestamp"`
	TimestampText string  `json:"-"`
}

// Simplify drops every legacy field except type and timestamp.
func Simplify(e LegacyEvent) SimplifiedEvent {
	return SimplifiedEvent{Type: e.Type, Timestamp: e.Timestamp, TimestampText: e.TimestampText}
}

// Fields returns the document payload written for the event. The timestamp
// keeps its legacy representation: text stays text (the normalization pass
// converts it later), whole numbers are integers and the rest are doubles.
func (e SimplifiedEvent) Fields() map[string]any {
	var ts any = e.Timestamp
	switch {
	case e.TimestampText != "":
		ts = e.TimestampText
	case e.Timestamp == float64(int64(e.Timestamp)):
		ts = int64(e.Timestamp)
	}
	return map[string]any{
		"type":      e.Type,
		"timestamp": ts,
	}
}

// Account corresponds to a business or organization.
type Account struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Location is a physical site owned by an account.
type Location struct {
	ID        string  `json:"id"`
	AccountID string  `json:"accountId"`
	Name      string  `json:"name"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
}

// Stream is one survey box deployment at a location.
type Stream struct {
	ID         string `json:"id"`
	AccountID  string `json:"accountId"`
	LocationID string `json:"locationId"`
	Name       string `json:"name"`
}

var decimal = regexp.MustCompile(`^[+-]?([0-9]+\.?[0-9]*|\.[0-9]+)([eE][+-]?[0-9]+)?$`)

// ParseEpochSeconds parses a textual epoch-seconds value. Only plain decimal
// notation is accepted, surrounding whitespace aside: no hex, no digit
// separators, no NaN or Inf, nothing that overflows a float64.
func ParseEpochSeconds(s string) (float64, error) {
	t := strings.TrimSpace(s)
	if !decimal.MatchString(t) {
		return 0, fmt.Errorf("%q is not a decimal number", s)
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return f, nil
}
