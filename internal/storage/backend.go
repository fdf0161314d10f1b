package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/KilimcininKorOglu/obastore/internal/logging"
	"github.com/KilimcininKorOglu/obastore/internal/ref"
)

// Storage errors.
var (
	ErrClosed         = errors.New("storage: backend closed")
	ErrUnknownBackend = errors.New("storage: unknown backend")
	ErrNoPath         = errors.New("storage: path is required")
	ErrCorrupt        = errors.New("storage: corrupt record")
)

// Record is one persisted object.
type Record struct {
	Ref  ref.Ref
	Data []byte
}

// Backend persists encoded objects.
type Backend interface {
	// Load calls fn for every stored record, in no particular order.
	Load(ctx context.Context, fn func(Record) error) error
	// Apply atomically writes puts and removes deletes.
	Apply(ctx context.Context, puts []Record, deletes []ref.Ref) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	// Kind is "memory", "badger" or "sqlite".
	Kind string
	// Path is the badger directory or the sqlite file.
	Path       string
	SyncWrites bool
	// CacheBytes bounds the badger index cache. Zero keeps the default.
	CacheBytes int64
	Logger     logging.Logger
}

// Open creates the backend named by opts.Kind.
func Open(opts Options) (Backend, error) {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	switch strings.ToLower(opts.Kind) {
	case "", "memory":
		return NewMemory(), nil
	case "badger":
		return OpenBadger(opts)
	case "sqlite":
		return OpenSQLite(opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Kind)
	}
}
