package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/zjrosen/ledgerkit/internal/cachemanager"
	"github.com/zjrosen/ledgerkit/internal/log"
	"github.com/zjrosen/ledgerkit/internal/store"
)

// revisionKey names one saved revision of one document in the read cache.
type revisionKey string

// RepositoryOption configures a RecordRepository.
type RepositoryOption func(*repositoryConfig)

type repositoryConfig struct {
	expiration      time.Duration
	cleanupInterval time.Duration
	skipCache       bool
}

// WithCache sets the read cache lifetimes.
func WithCache(expiration, cleanupInterval time.Duration) RepositoryOption {
	return func(c *repositoryConfig) {
		c.expiration = expiration
		c.cleanupInterval = cleanupInterval
	}
}

// WithoutCache makes every Load read the file.
func WithoutCache() RepositoryOption {
	return func(c *repositoryConfig) { c.skipCache = true }
}

// RecordRepository saves and loads the flattened graph of a store. Loads go
// through a cache keyed by document revision, so a save from any process
// makes the next Load read again.
type RecordRepository struct {
	db    *DB
	cache *cachemanager.ReadThroughCache[revisionKey, []store.Record, int64]
	ttl   time.Duration
}

var _ store.Persister = (*RecordRepository)(nil)

// RecordRepository returns the repository of the document.
func (db *DB) RecordRepository(opts ...RepositoryOption) *RecordRepository {
	cfg := repositoryConfig{
		expiration:      cachemanager.DefaultExpiration,
		cleanupInterval: cachemanager.DefaultCleanupInterval,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	r := &RecordRepository{db: db, ttl: cfg.expiration}
	cache := cachemanager.NewInMemoryCacheManager[revisionKey, []store.Record]("document", cfg.expiration, cfg.cleanupInterval)
	r.cache = cachemanager.NewReadThroughCache[revisionKey, []store.Record, int64](cache, r.read, cfg.skipCache)
	return r
}

func (r *RecordRepository) key(revision int64) revisionKey {
	return revisionKey(fmt.Sprintf("%s@%d", r.db.path, revision))
}

// Revision returns the number of saves so far; 0 for a document never saved.
func (r *RecordRepository) Revision(ctx context.Context) (int64, error) {
	var revision int64
	err := r.db.conn.QueryRowContext(ctx, `SELECT revision FROM document WHERE id = 1`).Scan(&revision)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading revision: %w", err)
	}
	return revision, nil
}

// Save implements store.Persister. The whole graph replaces the stored one
// in a single transaction.
func (r *RecordRepository) Save(ctx context.Context, records []store.Record) error {
	tx, err := r.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("clearing records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (id, type, parent_id, list, position, vals) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range records {
		m, err := toRecordModel(rec)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, m.ID, m.Type, m.ParentID, m.List, m.Position, m.Values); err != nil {
			return fmt.Errorf("inserting record %s: %w", m.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO document (id, revision, saved_at) VALUES (1, 1, ?)
		 ON CONFLICT(id) DO UPDATE SET revision = revision + 1, saved_at = excluded.saved_at`,
		time.Now().Unix())
	if err != nil {
		return fmt.Errorf("bumping revision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing save: %w", err)
	}
	log.Debug(log.CatDB, "saved records", "count", len(records), "path", r.db.path)
	return nil
}

// Load returns the records of the latest revision. A document never saved
// yields no records.
func (r *RecordRepository) Load(ctx context.Context) ([]store.Record, error) {
	revision, err := r.Revision(ctx)
	if err != nil {
		return nil, err
	}
	if revision == 0 {
		return nil, nil
	}
	return r.cache.Get(ctx, r.key(revision), revision, r.ttl)
}

func (r *RecordRepository) read(ctx context.Context, revision int64) ([]store.Record, error) {
	rows, err := r.db.conn.QueryContext(ctx,
		`SELECT id, type, parent_id, list, position, vals FROM records ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []store.Record
	for rows.Next() {
		var m RecordModel
		if err := rows.Scan(&m.ID, &m.Type, &m.ParentID, &m.List, &m.Position, &m.Values); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		rec, err := m.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}
	log.Debug(log.CatDB, "loaded records", "count", len(out), "revision", revision)
	return out, nil
}
