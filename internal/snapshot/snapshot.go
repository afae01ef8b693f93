package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"surveybox/internal/docstore"
)

// Event is one stored event document. Fields use the typed value envelope
// so a textual timestamp stays distinguishable from a structured one.
type Event struct {
	Doc    string                     `json:"doc"`
	Fields map[string]json.RawMessage `json:"fields"`
}

// Dump is the content of streams.json.
type Dump struct {
	Streams map[string][]Event `json:"streams"`
}

type Snapshotter interface {
	WriteStreams(ctx context.Context, store docstore.Store, streamIDs []string, snapshotID string) (string, error)
}

type FilesystemSnapshotter struct {
	baseDir string
}

func NewFilesystemSnapshotter(baseDir string) *FilesystemSnapshotter {
	return &FilesystemSnapshotter{baseDir: baseDir}
}

// WriteStreams copies every event document of the streams into
// {baseDir}/{snapshotID}/streams.json and returns the file path.
func (f *FilesystemSnapshotter) WriteStreams(ctx context.Context, store docstore.Store, streamIDs []string, snapshotID string) (string, error) {
	dump := Dump{Streams: make(map[string][]Event, len(streamIDs))}
	for _, id := range streamIDs {
		events, err := readStream(ctx, store, id)
		if err != nil {
			return "", err
		}
		dump.Streams[id] = events
	}

	if err := os.MkdirAll(filepath.Join(f.baseDir, snapshotID), 0o755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}
	file := filepath.Join(f.baseDir, snapshotID, "streams.json")
	tmp := file + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create: %w", err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dump); err != nil {
		out.Close()
		return "", fmt.Errorf("encode: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmp, file); err != nil {
		return "", fmt.Errorf("rename: %w", err)
	}
	return file, nil
}

func readStream(ctx context.Context, store docstore.Store, streamID string) ([]Event, error) {
	docs, err := store.ListChildDocuments(ctx, docstore.StreamEvents(streamID))
	if err != nil {
		return nil, fmt.Errorf("list stream %s: %w", streamID, err)
	}
	events := make([]Event, 0, len(docs))
	for _, doc := range docs {
		fields, err := store.Get(ctx, doc)
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", doc, err)
		}
		ev := Event{Doc: doc, Fields: make(map[string]json.RawMessage, len(fields))}
		for name, v := range fields {
			raw, err := docstore.EncodeValue(v)
			if err != nil {
				return nil, fmt.Errorf("%s field %s: %w", doc, name, err)
			}
			ev.Fields[name] = raw
		}
		events = append(events, ev)
	}
	return events, nil
}

// Read loads a streams.json written by WriteStreams.
func Read(path string) (Dump, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Dump{}, fmt.Errorf("read snapshot: %w", err)
	}
	var d Dump
	if err := json.Unmarshal(data, &d); err != nil {
		return Dump{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return d, nil
}
