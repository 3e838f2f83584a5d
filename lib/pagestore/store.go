// Package pagestore persists fetched wiki markup across runs so repeated
// extractions of the same competition don't hit the network again. Entries
// record their retrieval time; readers decide how much staleness they
// tolerate. "Not found" outcomes are stored too, since re-requesting pages
// known to be missing is the most common source of wasted requests.
package pagestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

var ErrNotCached = errors.New("page is not cached")

type Outcome string

const (
	OutcomeOk       Outcome = "ok"
	OutcomeNotFound Outcome = "not_found"
)

type Entry struct {
	Key       string
	Outcome   Outcome
	Body      []byte
	FetchedAt time.Time
}

type Store struct {
	db *sql.DB
}

// New wraps an already-open database, applying the schema if needed.
func New(db *sql.DB) (Store, error) {
	_, err := db.Exec(Schema)
	if err != nil {
		return Store{}, fmt.Errorf("apply page store schema: %w", err)
	}
	return Store{db: db}, nil
}

// Open opens (or creates) a page store at the given path. ":memory:" is
// accepted for tests.
func Open(path string) (Store, error) {
	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0750)
		if err != nil {
			return Store{}, fmt.Errorf("create page store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return Store{}, err
	}
	// sqlite only supports one writer
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		_, err = db.Exec("PRAGMA journal_mode=WAL")
		if err != nil {
			db.Close()
			return Store{}, fmt.Errorf("enable WAL: %w", err)
		}
	}

	store, err := New(db)
	if err != nil {
		db.Close()
		return Store{}, err
	}
	return store, nil
}

func (s Store) Close() error {
	return s.db.Close()
}

func (s Store) Get(ctx context.Context, key string) (Entry, error) {
	row := s.db.QueryRowContext(
		ctx,
		"SELECT outcome, body, fetched_at FROM pages WHERE key = ?",
		key,
	)

	var outcome string
	var body []byte
	var fetchedAt int64
	err := row.Scan(&outcome, &body, &fetchedAt)
	if err == sql.ErrNoRows {
		return Entry{}, ErrNotCached
	}
	if err != nil {
		return Entry{}, err
	}

	return Entry{
		Key:       key,
		Outcome:   Outcome(outcome),
		Body:      body,
		FetchedAt: time.Unix(fetchedAt, 0),
	}, nil
}

// Put stores an entry, replacing any previous one under the same key. The
// previous entry is replaced wholesale rather than mutated, a re-fetch is
// a new entry.
func (s Store) Put(ctx context.Context, entry Entry) error {
	_, err := s.db.ExecContext(
		ctx,
		"INSERT OR REPLACE INTO pages (key, outcome, body, fetched_at) VALUES (?, ?, ?, ?)",
		entry.Key,
		string(entry.Outcome),
		entry.Body,
		entry.FetchedAt.Unix(),
	)
	return err
}

// Purge drops entries fetched before the cutoff.
func (s Store) Purge(ctx context.Context, cutoff time.Time) error {
	_, err := s.db.ExecContext(
		ctx,
		"DELETE FROM pages WHERE fetched_at < ?",
		cutoff.Unix(),
	)
	return err
}
