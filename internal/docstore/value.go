package docstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// document is the persisted form used by the embedded backends: each field
// holds a typed value envelope, so a textual timestamp and a structured one
// never collapse into the same JSON.
type document map[string]json.RawMessage

func newDocument(fields map[string]any) (document, error) {
	d := make(document, len(fields))
	for k, v := range fields {
		raw, err := EncodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		d[k] = raw
	}
	return d, nil
}

func decodeDocument(b []byte) (document, error) {
	var d document
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if d == nil {
		d = document{}
	}
	return d, nil
}

func (d document) encode() ([]byte, error) { return json.Marshal(d) }

func (d document) field(name string) (any, bool, error) {
	raw, ok := d[name]
	if !ok {
		return nil, false, nil
	}
	v, err := DecodeValue(raw)
	if err != nil {
		return nil, false, fmt.Errorf("field %s: %w", name, err)
	}
	return v, true, nil
}

func (d document) fields() (map[string]any, error) {
	out := make(map[string]any, len(d))
	for k := range d {
		v, _, err := d.field(k)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

type geoPointValue struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type mapValue struct {
	Fields map[string]json.RawMessage `json:"fields"`
}

type arrayValue struct {
	Values []json.RawMessage `json:"values"`
}

// EncodeValue converts a Go value into its typed JSON envelope.
func EncodeValue(v any) (json.RawMessage, error) {
	var (
		key string
		val any
	)
	switch x := v.(type) {
	case nil:
		key, val = "nullValue", nil
	case string:
		key, val = "stringValue", x
	case bool:
		key, val = "booleanValue", x
	case int:
		key, val = "integerValue", strconv.FormatInt(int64(x), 10)
	case int32:
		key, val = "integerValue", strconv.FormatInt(int64(x), 10)
	case int64:
		key, val = "integerValue", strconv.FormatInt(x, 10)
	case float32:
		key, val = "doubleValue", float64(x)
	case float64:
		key, val = "doubleValue", x
	case time.Time:
		key, val = "timestampValue", x.UTC().Format(time.RFC3339Nano)
	case GeoPoint:
		key, val = "geoPointValue", geoPointValue{Latitude: x.Lat, Longitude: x.Lng}
	case Ref:
		key, val = "referenceValue", x.Path
	case json.RawMessage:
		var decoded any
		if err := json.Unmarshal(x, &decoded); err != nil {
			return nil, fmt.Errorf("raw json: %w", err)
		}
		return EncodeValue(decoded)
	case map[string]any:
		m := mapValue{Fields: make(map[string]json.RawMessage, len(x))}
		for k, e := range x {
			raw, err := EncodeValue(e)
			if err != nil {
				return nil, fmt.Errorf("map key %s: %w", k, err)
			}
			m.Fields[k] = raw
		}
		key, val = "mapValue", m
	case []any:
		a := arrayValue{Values: make([]json.RawMessage, 0, len(x))}
		for i, e := range x {
			raw, err := EncodeValue(e)
			if err != nil {
				return nil, fmt.Errorf("array index %d: %w", i, err)
			}
			a.Values = append(a.Values, raw)
		}
		key, val = "arrayValue", a
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
	return json.Marshal(map[string]any{key: val})
}

// DecodeValue is the inverse of EncodeValue.
func DecodeValue(raw json.RawMessage) (any, error) {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	if len(env) != 1 {
		keys := make([]string, 0, len(env))
		for k := range env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("value envelope must have exactly one key, got %v", keys)
	}
	for key, body := range env {
		switch key {
		case "nullValue":
			return nil, nil
		case "stringValue":
			var s string
			err := json.Unmarshal(body, &s)
			return s, err
		case "booleanValue":
			var b bool
			err := json.Unmarshal(body, &b)
			return b, err
		case "integerValue":
			var s string
			if err := json.Unmarshal(body, &s); err != nil {
				return nil, err
			}
			return strconv.ParseInt(s, 10, 64)
		case "doubleValue":
			var f float64
			err := json.Unmarshal(body, &f)
			return f, err
		case "timestampValue":
			var s string
			if err := json.Unmarshal(body, &s); err != nil {
				return nil, err
			}
			return time.Parse(time.RFC3339Nano, s)
		case "geoPointValue":
			var g geoPointValue
			err := json.Unmarshal(body, &g)
			return GeoPoint{Lat: g.Latitude, Lng: g.Longitude}, err
		case "referenceValue":
			var s string
			err := json.Unmarshal(body, &s)
			return Ref{Path: s}, err
		case "mapValue":
			var m mapValue
			if err := json.Unmarshal(body, &m); err != nil {
				return nil, err
			}
			out := make(map[string]any, len(m.Fields))
			for k, e := range m.Fields {
				v, err := DecodeValue(e)
				if err != nil {
					return nil, fmt.Errorf("map key %s: %w", k, err)
				}
				out[k] = v
			}
			return out, nil
		case "arrayValue":
			var a arrayValue
			if err := json.Unmarshal(body, &a); err != nil {
				return nil, err
			}
			out := make([]any, 0, len(a.Values))
			for i, e := range a.Values {
				v, err := DecodeValue(e)
				if err != nil {
					return nil, fmt.Errorf("array index %d: %w", i, err)
				}
				out = append(out, v)
			}
			return out, nil
		default:
			return nil, fmt.Errorf("unknown value type %q", key)
		}
	}
	return nil, nil
}
