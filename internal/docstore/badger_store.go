package docstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerStore implements Store using BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(filepath.Clean(dir)).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger open: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (b *BadgerStore) Close() error { return b.db.Close() }

func loadTxn(txn *badger.Txn, doc string) (document, error) {
	item, err := txn.Get([]byte(doc))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	v, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return decodeDocument(v)
}

func (b *BadgerStore) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	coll, err := Collection(collection)
	if err != nil {
		return "", err
	}
	d, err := newDocument(fields)
	if err != nil {
		return "", err
	}
	bytes, err := d.encode()
	if err != nil {
		return "", err
	}
	id := NewID()
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(Join(coll, id)), bytes)
	})
	if err != nil {
		return "", fmt.Errorf("badger set: %w", err)
	}
	return id, nil
}

func (b *BadgerStore) Get(ctx context.Context, doc string) (map[string]any, error) {
	var d document
	err := b.db.View(func(txn *badger.Txn) error {
		var e error
		d, e = loadTxn(txn, doc)
		return e
	})
	if err != nil {
		return nil, err
	}
	return d.fields()
}

func (b *BadgerStore) GetField(ctx context.Context, doc string, name string) (any, bool, error) {
	var d document
	err := b.db.View(func(txn *badger.Txn) error {
		var e error
		d, e = loadTxn(txn, doc)
		return e
	})
	if err != nil {
		return nil, false, err
	}
	return d.field(name)
}

func (b *BadgerStore) UpdateField(ctx context.Context, doc string, name string, value any) error {
	raw, err := EncodeValue(value)
	if err != nil {
		return fmt.Errorf("field %s: %w", name, err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		d, err := loadTxn(txn, doc)
		if err != nil {
			return err
		}
		d[name] = raw
		bytes, err := d.encode()
		if err != nil {
			return err
		}
		return txn.Set([]byte(doc), bytes)
	})
}

func (b *BadgerStore) ListChildDocuments(ctx context.Context, collection string) ([]string, error) {
	coll, err := Collection(collection)
	if err != nil {
		return nil, err
	}
	prefix := []byte(coll + "/")
	var out []string
	err = b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k := string(it.Item().KeyCopy(nil))
			if strings.Contains(k[len(prefix):], "/") {
				continue
			}
			out = append(out, k)
		}
		return nil
	})
	return out, err
}
