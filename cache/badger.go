package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Badger persists records on disk so they survive restarts.
type Badger struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenBadger opens a badger-backed store in dir. An empty dir keeps the
// database in memory.
func OpenBadger(dir string, ttl time.Duration) (*Badger, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultExpiration
	}
	return &Badger{db: db, ttl: ttl}, nil
}

func (b *Badger) Get(ctx context.Context, key Key) (Record, bool, error) {
	var raw []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key.String()))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("read %s: %w", key, err)
	}

	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return Record{}, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return record, true, nil
}

func (b *Badger) Set(ctx context.Context, key Key, record Record) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key.String()), raw).WithTTL(b.ttl)
		return txn.SetEntry(entry)
	})
}

func (b *Badger) Purge(ctx context.Context) error {
	return b.db.DropAll()
}

// Close releases the database.
func (b *Badger) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}
