// Package ledger records which deployment windows have already been
// migrated, so a repeated run does not append their events a second time.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Entry is one migrated window.
type Entry struct {
	Key        string `json:"key"`
	StreamID   string `json:"streamId"`
	Events     int    `json:"events"`
	MigratedAt int64  `json:"migratedAt"`
}

// Ledger is the processed-window set.
type Ledger interface {
	Has(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, e Entry) error
}

// NowUnix returns current time in epoch seconds. Split for testability.
var NowUnix = func() int64 { return time.Now().UTC().Unix() }

type multi struct {
	ledgers []Ledger
}

// Multi reports a key as migrated when any ledger has it and marks all.
func Multi(ls ...Ledger) Ledger {
	return &multi{ledgers: ls}
}

func (m *multi) Has(ctx context.Context, key string) (bool, error) {
	for _, l := range m.ledgers {
		ok, err := l.Has(ctx, key)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (m *multi) Mark(ctx context.Context, e Entry) error {
	for _, l := range m.ledgers {
		if err := l.Mark(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// Nop never remembers anything.
type Nop struct{}

func (Nop) Has(context.Context, string) (bool, error) { return false, nil }
func (Nop) Mark(context.Context, Entry) error         { return nil }

// FileLedger keeps entries in {dir}/ledger.json.
type FileLedger struct {
	path    string
	mu      sync.Mutex
	entries map[string]Entry
}

func NewFileLedger(dir string) (*FileLedger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	f := &FileLedger{path: filepath.Join(dir, "ledger.json"), entries: make(map[string]Entry)}
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	var list []Entry
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("unmarshal ledger: %w", err)
	}
	f.entries = lo.KeyBy(list, func(e Entry) string { return e.Key })
	return f, nil
}

func (f *FileLedger) Has(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[key]
	return ok, nil
}

func (f *FileLedger) Mark(ctx context.Context, e Entry) error {
	if e.MigratedAt == 0 {
		e.MigratedAt = NowUnix()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[e.Key] = e
	return f.save()
}

// Entries returns all entries sorted by key.
func (f *FileLedger) Entries() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := lo.Values(f.entries)
	sort.Slice(list, func(i, j int) bool { return list[i].Key < list[j].Key })
	return list
}

// save writes the whole ledger to a temp file and renames it into place.
// Must be called with f.mu held.
func (f *FileLedger) save() error {
	list := lo.Values(f.entries)
	sort.Slice(list, func(i, j int) bool { return list[i].Key < list[j].Key })
	b, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("rename ledger: %w", err)
	}
	return nil
}
