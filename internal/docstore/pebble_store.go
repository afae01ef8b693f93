package docstore

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
)

// PebbleStore implements Store using PebbleDB. Keys are document paths, so a
// collection's children are a contiguous key range.
type PebbleStore struct {
	db *pebble.DB
	mu sync.Mutex // serializes read-modify-write in UpdateField
}

func NewPebbleStore(dir string) (*PebbleStore, error) {
	opts := &pebble.Options{
		MemTableSize:             64 << 20,
		MaxConcurrentCompactions: func() int { return 2 },
		L0CompactionThreshold:    4,
		L0StopWritesThreshold:    8,
		WALBytesPerSync:          1 << 20,
		WALMinSyncInterval:       func() time.Duration { return 0 },
	}
	d, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleStore{db: d}, nil
}

func (p *PebbleStore) Close() error { return p.db.Close() }

func (p *PebbleStore) load(doc string) (document, error) {
	v, closer, err := p.db.Get([]byte(doc))
	if err == pebble.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return decodeDocument(v)
}

func (p *PebbleStore) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	coll, err := Collection(collection)
	if err != nil {
		return "", err
	}
	d, err := newDocument(fields)
	if err != nil {
		return "", err
	}
	b, err := d.encode()
	if err != nil {
		return "", err
	}
	id := NewID()
	// Each created event is its own durable unit.
	if err := p.db.Set([]byte(Join(coll, id)), b, pebble.Sync); err != nil {
		return "", fmt.Errorf("pebble set: %w", err)
	}
	return id, nil
}

func (p *PebbleStore) Get(ctx context.Context, doc string) (map[string]any, error) {
	d, err := p.load(doc)
	if err != nil {
		return nil, err
	}
	return d.fields()
}

func (p *PebbleStore) GetField(ctx context.Context, doc string, name string) (any, bool, error) {
	d, err := p.load(doc)
	if err != nil {
		return nil, false, err
	}
	return d.field(name)
}

func (p *PebbleStore) UpdateField(ctx context.Context, doc string, name string, value any) error {
	raw, err := EncodeValue(value)
	if err != nil {
		return fmt.Errorf("field %s: %w", name, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	d, err := p.load(doc)
	if err != nil {
		return err
	}
	d[name] = raw
	b, err := d.encode()
	if err != nil {
		return err
	}
	if err := p.db.Set([]byte(doc), b, pebble.Sync); err != nil {
		return fmt.Errorf("pebble set: %w", err)
	}
	return nil
}

func (p *PebbleStore) ListChildDocuments(ctx context.Context, collection string) ([]string, error) {
	coll, err := Collection(collection)
	if err != nil {
		return nil, err
	}
	prefix := coll + "/"
	it, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("pebble iter: %w", err)
	}
	defer it.Close()
	var out []string
	for it.First(); it.Valid(); it.Next() {
		k := string(it.Key())
		if strings.Contains(k[len(prefix):], "/") {
			continue // nested subcollection document
		}
		out = append(out, k)
	}
	return out, it.Error()
}

// prefixUpperBound returns the smallest key greater than every key with prefix.
func prefixUpperBound(prefix string) []byte {
	end := []byte(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
