// Package docstore is the hierarchical document store used by the migration
// and normalization pipelines. Documents live at slash-joined paths with an
// even number of segments (streams/{id}); collections have an odd number
// (streams/{id}/events).
package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when the addressed document does not exist.
var ErrNotFound = errors.New("document not found")

// Store abstracts the document store backend.
type Store interface {
	// Create adds a document with a store-assigned id under collection.
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)
	// Get returns every field of a document.
	Get(ctx context.Context, doc string) (map[string]any, error)
	// GetField reads one field. ok is false when the field is absent.
	GetField(ctx context.Context, doc string, name string) (value any, ok bool, err error)
	// UpdateField overwrites one field, leaving every other field untouched.
	UpdateField(ctx context.Context, doc string, name string, value any) error
	// ListChildDocuments returns the paths of the documents directly under
	// collection, in creation order.
	ListChildDocuments(ctx context.Context, collection string) ([]string, error)
	Close() error
}

// GeoPoint is a latitude/longitude pair.
type GeoPoint struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// Ref is a reference to another document.
type Ref struct {
	Path string
}

// NewID returns a store-assigned document id. UUIDv7 strings sort by
// creation time, which keeps key order equal to insertion order.
var NewID = func() string { return uuid.Must(uuid.NewV7()).String() }

// Join concatenates path segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Collection validates and normalizes a collection path.
func Collection(path string) (string, error) {
	segs, err := split(path)
	if err != nil {
		return "", err
	}
	if len(segs)%2 != 1 {
		return "", fmt.Errorf("%q is not a collection path", path)
	}
	return Join(segs...), nil
}

// Doc validates and normalizes a document path.
func Doc(path string) (string, error) {
	segs, err := split(path)
	if err != nil {
		return "", err
	}
	if len(segs)%2 != 0 {
		return "", fmt.Errorf("%q is not a document path", path)
	}
	return Join(segs...), nil
}

// Base returns the last segment of a path, i.e. a document's id.
func Base(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

func split(path string) ([]string, error) {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	for _, s := range segs {
		if s == "" {
			return nil, fmt.Errorf("empty segment in path %q", path)
		}
	}
	return segs, nil
}

// StreamDoc is the path of a stream document.
func StreamDoc(streamID string) string { return Join("streams", streamID) }

// StreamEvents is the path of a stream's event collection.
func StreamEvents(streamID string) string { return Join("streams", streamID, "events") }
