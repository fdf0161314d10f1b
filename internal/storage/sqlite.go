package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/KilimcininKorOglu/obastore/internal/logging"
	"github.com/KilimcininKorOglu/obastore/internal/ref"
)

//go:embed schema.sql
var schemaSQL string

// SQLite is a Backend stored in a single SQLite file.
type SQLite struct {
	db  *sql.DB
	log logging.Logger
}

// OpenSQLite opens or creates the database file at opts.Path.
func OpenSQLite(opts Options) (*SQLite, error) {
	if opts.Path == "" {
		return nil, ErrNoPath
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("storage: opening sqlite at %s: %w", opts.Path, err)
	}
	db.SetMaxOpenConns(1)

	syncMode := "NORMAL"
	if opts.SyncWrites {
		syncMode = "FULL"
	}
	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=" + syncMode,
		schemaSQL,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("storage: initializing sqlite: %w", err)
		}
	}

	return &SQLite{db: db, log: opts.Logger}, nil
}

func (s *SQLite) Load(ctx context.Context, fn func(Record) error) error {
	rows, err := s.db.QueryContext(ctx, "SELECT type, num, data FROM objects")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			typeID int64
			num    int64
			data   []byte
		)
		if err := rows.Scan(&typeID, &num, &data); err != nil {
			return err
		}
		if typeID <= 0 || typeID > 0xFFFF || num <= 0 || num > 0xFFFFFFFF {
			return fmt.Errorf("%w: ref %d:%d", ErrCorrupt, typeID, num)
		}
		if err := fn(Record{Ref: ref.New(uint16(typeID), uint32(num)), Data: data}); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *SQLite) Apply(ctx context.Context, puts []Record, deletes []ref.Ref) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, rec := range puts {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO objects (type, num, data) VALUES (?, ?, ?)
			 ON CONFLICT (type, num) DO UPDATE SET data = excluded.data`,
			rec.Ref.Type, rec.Ref.Num, rec.Data)
		if err != nil {
			return err
		}
	}
	for _, r := range deletes {
		if _, err := tx.ExecContext(ctx, "DELETE FROM objects WHERE type = ? AND num = ?", r.Type, r.Num); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		s.log.Error("sqlite commit failed", "puts", len(puts), "deletes", len(deletes), "error", err)
		return err
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
