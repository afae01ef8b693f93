package migrate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"surveybox/internal/docstore"
	"surveybox/internal/model"
)

// WriteError means the store rejected a create partway through a window.
// The first Written events stay in the stream.
type WriteError struct {
	StreamID string
	Written  int
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("stream %s: write failed after %d events: %v", e.StreamID, e.Written, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Writer appends simplified events to a stream's event collection. It is
// append-only: writing the same slice twice stores every event twice.
type Writer struct {
	store docstore.Store
	log   *zap.Logger
}

func NewWriter(store docstore.Store, log *zap.Logger) *Writer {
	return &Writer{store: store, log: log}
}

// Append creates one document per event, in slice order, and returns how
// many were written.
func (w *Writer) Append(ctx context.Context, streamID string, events []model.SimplifiedEvent) (int, error) {
	collection := docstore.StreamEvents(streamID)
	for i, ev := range events {
		id, err := w.store.Create(ctx, collection, ev.Fields())
		if err != nil {
			return i, &WriteError{StreamID: streamID, Written: i, Err: err}
		}
		w.log.Debug("event written", zap.String("stream", streamID), zap.String("doc", id), zap.Float64("timestamp", ev.Timestamp))
	}
	return len(events), nil
}
