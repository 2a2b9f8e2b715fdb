package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"tripmate/internal/trip/models"
	id "tripmate/pkg/domain"
)

// PostgresStore persists trips and users as jsonb documents and share tokens
// as a dedicated uniqueness table. This store is pure I/O; validation,
// authorization, and the dual-write choreography belong in the service.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed trip store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the tables and indexes the store needs. Safe to call on
// every startup.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS trips (
			id  UUID PRIMARY KEY,
			doc JSONB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS users (
			id  UUID PRIMARY KEY,
			doc JSONB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS share_tokens (
			token   TEXT PRIMARY KEY,
			trip_id UUID NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_share_tokens_trip_id ON share_tokens (trip_id);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure trip schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTrip(ctx context.Context, tripID id.TripID) (*models.Trip, error) {
	return scanTrip(s.db.QueryRowContext(ctx, `SELECT doc FROM trips WHERE id = $1`, tripID.String()))
}

func (s *PostgresStore) GetUser(ctx context.Context, userID id.UserID) (*models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT doc FROM users WHERE id = $1`, userID.String()))
}

func (s *PostgresStore) FindTripByShareToken(ctx context.Context, token string) (*models.Trip, error) {
	query := `
		SELECT t.doc
		FROM share_tokens st
		JOIN trips t ON t.id = st.trip_id
		WHERE st.token = $1
	`
	return scanTrip(s.db.QueryRowContext(ctx, query, token))
}

// RunInTx runs fn inside a single database transaction. Unique-violation and
// serialization errors roll the transaction back and surface as ErrConflict so
// the caller can retry the whole unit with fresh reads.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin trip tx: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(&pgTx{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit trip tx: %w", asConflict(err))
	}
	return nil
}

type pgTx struct {
	tx *sql.Tx
}

// GetTrip locks the trip row for the remainder of the transaction so
// concurrent read-modify-write cycles serialize instead of clobbering each
// other.
func (t *pgTx) GetTrip(ctx context.Context, tripID id.TripID) (*models.Trip, error) {
	return scanTrip(t.tx.QueryRowContext(ctx, `SELECT doc FROM trips WHERE id = $1 FOR UPDATE`, tripID.String()))
}

func (t *pgTx) PutTrip(ctx context.Context, trip *models.Trip) error {
	doc, err := json.Marshal(trip)
	if err != nil {
		return fmt.Errorf("marshal trip doc: %w", err)
	}
	query := `
		INSERT INTO trips (id, doc) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc
	`
	if _, err := t.tx.ExecContext(ctx, query, trip.ID.String(), doc); err != nil {
		return fmt.Errorf("put trip: %w", asConflict(err))
	}
	return nil
}

func (t *pgTx) DeleteTrip(ctx context.Context, tripID id.TripID) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM trips WHERE id = $1`, tripID.String()); err != nil {
		return fmt.Errorf("delete trip: %w", err)
	}
	return nil
}

func (t *pgTx) GetUser(ctx context.Context, userID id.UserID) (*models.User, error) {
	return scanUser(t.tx.QueryRowContext(ctx, `SELECT doc FROM users WHERE id = $1 FOR UPDATE`, userID.String()))
}

func (t *pgTx) PutUser(ctx context.Context, user *models.User) error {
	doc, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user doc: %w", err)
	}
	query := `
		INSERT INTO users (id, doc) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc
	`
	if _, err := t.tx.ExecContext(ctx, query, user.ID.String(), doc); err != nil {
		return fmt.Errorf("put user: %w", asConflict(err))
	}
	return nil
}

// ReserveShareToken claims the token via the primary-key constraint: a losing
// insert fails with a unique violation, which aborts the transaction, so the
// caller must retry the whole RunInTx with a fresh token.
func (t *pgTx) ReserveShareToken(ctx context.Context, token string, tripID id.TripID) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO share_tokens (token, trip_id) VALUES ($1, $2)`,
		token, tripID.String())
	if err != nil {
		return fmt.Errorf("reserve share token: %w", asConflict(err))
	}
	return nil
}

func (t *pgTx) ReleaseShareToken(ctx context.Context, token string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM share_tokens WHERE token = $1`, token); err != nil {
		return fmt.Errorf("release share token: %w", err)
	}
	return nil
}

// asConflict maps Postgres contention errors (unique violation, serialization
// failure, deadlock) onto ErrConflict; everything else passes through.
func asConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "40001", "40P01":
			return fmt.Errorf("%v: %w", pgErr.Code, ErrConflict)
		}
	}
	return err
}

type docRow interface {
	Scan(dest ...any) error
}

func scanTrip(row docRow) (*models.Trip, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("trip: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("scan trip doc: %w", err)
	}
	var trip models.Trip
	if err := json.Unmarshal(doc, &trip); err != nil {
		return nil, fmt.Errorf("unmarshal trip doc: %w", err)
	}
	return &trip, nil
}

func scanUser(row docRow) (*models.User, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("scan user doc: %w", err)
	}
	var user models.User
	if err := json.Unmarshal(doc, &user); err != nil {
		return nil, fmt.Errorf("unmarshal user doc: %w", err)
	}
	return &user, nil
}
