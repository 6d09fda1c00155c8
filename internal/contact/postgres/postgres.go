// Package postgres is a [contact.Store] backed by PostgreSQL via pgx.
//
// Sessions live in contact_sessions (one row per contact, upserted) and the
// translation log in translation_records (insert only).
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/voxbridge/internal/contact"
)

// Schema is the DDL for both tables. Execute it via [Store.Migrate] or apply
// it during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS contact_sessions (
    contact_id       TEXT PRIMARY KEY,
    step             TEXT NOT NULL DEFAULT 'AWAITING_SOURCE_LANG',
    source_lang      TEXT NOT NULL DEFAULT '',
    target_lang      TEXT NOT NULL DEFAULT '',
    voice_preference TEXT NOT NULL DEFAULT '',
    usage_counter    BIGINT NOT NULL DEFAULT 0,
    plan_tier        TEXT NOT NULL DEFAULT 'free',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS translation_records (
    id              TEXT PRIMARY KEY,
    contact_id      TEXT NOT NULL,
    original_text   TEXT NOT NULL,
    translated_text TEXT NOT NULL,
    source_lang     TEXT NOT NULL DEFAULT '',
    dest_lang       TEXT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_translation_records_contact ON translation_records(contact_id, created_at);
`

// DB is the subset of pgx used by [Store]. *pgxpool.Pool and *pgx.Conn
// satisfy it.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

// Store implements [contact.Store] and [contact.Pinger].
type Store struct {
	db DB
}

var (
	_ contact.Store  = (*Store)(nil)
	_ contact.Pinger = (*Store)(nil)
)

// New wraps db. Call [Store.Migrate] before first use unless the schema is
// managed elsewhere.
func New(db DB) *Store {
	return &Store{db: db}
}

// Open connects a pool to dsn and verifies it with a ping. The returned close
// function releases the pool.
func Open(ctx context.Context, dsn string) (*Store, func(), error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return New(pool), pool.Close, nil
}

// Migrate executes [Schema].
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// Load implements [contact.Store]. It returns (nil, nil) if the contact has
// no row.
func (s *Store) Load(ctx context.Context, contactID string) (*contact.Session, error) {
	const query = `
		SELECT contact_id, step, source_lang, target_lang, voice_preference,
		       usage_counter, plan_tier, created_at, updated_at
		FROM contact_sessions
		WHERE contact_id = $1`

	var (
		sess       contact.Session
		step, pref string
	)
	err := s.db.QueryRow(ctx, query, contactID).Scan(
		&sess.ContactID, &step, &sess.SourceLang, &sess.TargetLang, &pref,
		&sess.UsageCounter, &sess.PlanTier, &sess.CreatedAt, &sess.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, &contact.PersistenceError{Op: "load", Err: err}
	}
	sess.Step = contact.Step(step)
	if !sess.Step.Valid() {
		return nil, &contact.PersistenceError{Op: "load", Err: fmt.Errorf("unknown step %q", step)}
	}
	sess.VoicePreference = contact.VoicePreference(pref)
	return &sess, nil
}

// Upsert implements [contact.Store]. The row is written whole; created_at is
// kept on conflict and updated_at is set by the database.
func (s *Store) Upsert(ctx context.Context, sess *contact.Session) error {
	const query = `
		INSERT INTO contact_sessions (
			contact_id, step, source_lang, target_lang, voice_preference,
			usage_counter, plan_tier
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (contact_id) DO UPDATE SET
			step = EXCLUDED.step,
			source_lang = EXCLUDED.source_lang,
			target_lang = EXCLUDED.target_lang,
			voice_preference = EXCLUDED.voice_preference,
			usage_counter = EXCLUDED.usage_counter,
			plan_tier = EXCLUDED.plan_tier,
			updated_at = now()
		RETURNING created_at, updated_at`

	err := s.db.QueryRow(ctx, query,
		sess.ContactID, string(sess.Step), sess.SourceLang, sess.TargetLang, string(sess.VoicePreference),
		sess.UsageCounter, planOrFree(sess.PlanTier),
	).Scan(&sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return &contact.PersistenceError{Op: "upsert", Err: err}
	}
	return nil
}

// InsertRecord implements [contact.Store]. A duplicate id is an error; the
// log is never updated in place.
func (s *Store) InsertRecord(ctx context.Context, r *contact.Record) error {
	const query = `
		INSERT INTO translation_records (
			id, contact_id, original_text, translated_text, source_lang, dest_lang
		) VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`

	err := s.db.QueryRow(ctx, query,
		r.ID, r.ContactID, r.OriginalText, r.TranslatedText, r.SourceLang, r.DestLang,
	).Scan(&r.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			err = fmt.Errorf("record %q already exists: %w", r.ID, err)
		}
		return &contact.PersistenceError{Op: "insert_record", Err: err}
	}
	return nil
}

// Ping implements [contact.Pinger].
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

func planOrFree(p string) string {
	if p == "" {
		return contact.PlanFree
	}
	return p
}

// isDuplicateKeyError reports a unique violation (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
