package storage

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/KilimcininKorOglu/obastore/internal/logging"
	"github.com/KilimcininKorOglu/obastore/internal/ref"
)

// objectPrefix prefixes every object key.
var objectPrefix = []byte("o/")

// Badger is a Backend stored in a badger directory.
type Badger struct {
	db  *badger.DB
	log logging.Logger
}

// OpenBadger opens or creates the badger directory at opts.Path.
func OpenBadger(opts Options) (*Badger, error) {
	if opts.Path == "" {
		return nil, ErrNoPath
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	bopts := badger.DefaultOptions(opts.Path).
		WithSyncWrites(opts.SyncWrites).
		WithLogger(badgerLogger{opts.Logger.WithFields("component", "badger")})
	if opts.CacheBytes > 0 {
		bopts = bopts.WithIndexCacheSize(opts.CacheBytes)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("storage: opening badger at %s: %w", opts.Path, err)
	}

	return &Badger{db: db, log: opts.Logger}, nil
}

func objectKey(r ref.Ref) []byte {
	return append(append([]byte(nil), objectPrefix...), r.Bytes()...)
}

func (b *Badger) Load(ctx context.Context, fn func(Record) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: objectPrefix, PrefetchValues: true, PrefetchSize: 100})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			r, err := ref.FromBytes(item.KeyCopy(nil)[len(objectPrefix):])
			if err != nil {
				return fmt.Errorf("%w: key %x: %v", ErrCorrupt, item.Key(), err)
			}
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(Record{Ref: r, Data: data}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Badger) Apply(ctx context.Context, puts []Record, deletes []ref.Ref) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		for _, rec := range puts {
			if err := txn.Set(objectKey(rec.Ref), rec.Data); err != nil {
				return err
			}
		}
		for _, r := range deletes {
			if err := txn.Delete(objectKey(r)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		b.log.Error("badger commit failed", "puts", len(puts), "deletes", len(deletes), "error", err)
	}
	return err
}

func (b *Badger) Close() error {
	return b.db.Close()
}

// badgerLogger routes badger's printf-style logging to a Logger.
type badgerLogger struct {
	log logging.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}
