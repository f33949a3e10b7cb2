// Package postgres implements bets.Store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/R3E-Network/lotterybets/services/bets"
)

const betColumns = `id, owner_id, modality_id, contest_number, numbers, clovers, repetition,
	batch_id, group_spec, status, consulted, cached_result, created_at, verified_at`

// Store implements bets.Store backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ bets.Store = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres DSN is required")
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

type betRow struct {
	ID            string         `db:"id"`
	OwnerID       string         `db:"owner_id"`
	ModalityID    string         `db:"modality_id"`
	ContestNumber int            `db:"contest_number"`
	Numbers       pq.Int64Array  `db:"numbers"`
	Clovers       pq.Int64Array  `db:"clovers"`
	Repetition    []byte         `db:"repetition"`
	BatchID       sql.NullString `db:"batch_id"`
	GroupSpec     []byte         `db:"group_spec"`
	Status        string         `db:"status"`
	Consulted     bool           `db:"consulted"`
	CachedResult  []byte         `db:"cached_result"`
	CreatedAt     time.Time      `db:"created_at"`
	VerifiedAt    sql.NullTime   `db:"verified_at"`
}

func (r betRow) toBet() (bets.BetSpec, error) {
	bet := bets.BetSpec{
		ID:            r.ID,
		OwnerID:       r.OwnerID,
		ModalityID:    r.ModalityID,
		ContestNumber: r.ContestNumber,
		Numbers:       fromInt64s(r.Numbers),
		Clovers:       fromInt64s(r.Clovers),
		Status:        bets.Status(r.Status),
		Consulted:     r.Consulted,
		CreatedAt:     r.CreatedAt.UTC(),
	}
	if r.VerifiedAt.Valid {
		bet.VerifiedAt = r.VerifiedAt.Time.UTC()
	}
	if len(r.Repetition) > 0 {
		if err := json.Unmarshal(r.Repetition, &bet.Repetition); err != nil {
			return bets.BetSpec{}, fmt.Errorf("decode repetition of %s: %w", r.ID, err)
		}
	}
	if len(r.GroupSpec) > 0 {
		var group bets.GroupSpec
		if err := json.Unmarshal(r.GroupSpec, &group); err != nil {
			return bets.BetSpec{}, fmt.Errorf("decode group of %s: %w", r.ID, err)
		}
		bet.Group = &group
	}
	if len(r.CachedResult) > 0 {
		var result bets.DrawResult
		if err := json.Unmarshal(r.CachedResult, &result); err != nil {
			return bets.BetSpec{}, fmt.Errorf("decode cached result of %s: %w", r.ID, err)
		}
		bet.CachedResult = &result
	}
	return bet, nil
}

func toBets(rows []betRow) ([]bets.BetSpec, error) {
	out := make([]bets.BetSpec, 0, len(rows))
	for _, row := range rows {
		bet, err := row.toBet()
		if err != nil {
			return nil, err
		}
		out = append(out, bet)
	}
	return out, nil
}

func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]bets.BetSpec, error) {
	var rows []betRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+betColumns+`
		FROM bets
		WHERE owner_id = $1
		ORDER BY created_at DESC, contest_number
	`, ownerID)
	if err != nil {
		return nil, err
	}
	return toBets(rows)
}

func (s *Store) GetByID(ctx context.Context, id string) (bets.BetSpec, error) {
	var row betRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+betColumns+`
		FROM bets
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return bets.BetSpec{}, fmt.Errorf("%w: %s", bets.ErrBetNotFound, id)
	}
	if err != nil {
		return bets.BetSpec{}, err
	}
	return row.toBet()
}

func (s *Store) Create(ctx context.Context, bet bets.BetSpec) (bets.BetSpec, error) {
	if bet.ID == "" {
		bet.ID = uuid.NewString()
	}
	if bet.CreatedAt.IsZero() {
		bet.CreatedAt = time.Now().UTC()
	}
	if bet.Status == "" {
		bet.Status = bets.StatusPending
	}

	repetition, err := json.Marshal(bet.Repetition)
	if err != nil {
		return bets.BetSpec{}, err
	}
	group, err := nullableJSON(bet.Group)
	if err != nil {
		return bets.BetSpec{}, err
	}
	cached, err := nullableJSON(bet.CachedResult)
	if err != nil {
		return bets.BetSpec{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bets (id, owner_id, modality_id, contest_number, numbers, clovers, repetition,
			batch_id, group_spec, status, consulted, cached_result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, bet.ID, bet.OwnerID, bet.ModalityID, bet.ContestNumber,
		toInt64s(bet.Numbers), toInt64s(bet.Clovers), repetition,
		nullString(bet.Repetition.BatchID), group, string(bet.Status), bet.Consulted, cached, bet.CreatedAt)
	if err != nil {
		return bets.BetSpec{}, err
	}
	return bet, nil
}

// UpdateStatusAndCache only touches a bet that is still pending and unconsulted, so two
// writers racing on the same bet cannot both succeed.
func (s *Store) UpdateStatusAndCache(ctx context.Context, id string, consulted bool, cached *bets.DrawResult, status bets.Status) (bets.BetSpec, error) {
	payload, err := nullableJSON(cached)
	if err != nil {
		return bets.BetSpec{}, err
	}

	var row betRow
	err = s.db.GetContext(ctx, &row, `
		UPDATE bets
		SET consulted = $2, cached_result = $3, status = $4, verified_at = $5
		WHERE id = $1 AND consulted = FALSE AND status = 'pending'
		RETURNING `+betColumns, id, consulted, payload, string(status), time.Now().UTC())
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if qerr := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM bets WHERE id = $1)`, id); qerr != nil {
			return bets.BetSpec{}, qerr
		}
		if !exists {
			return bets.BetSpec{}, fmt.Errorf("%w: %s", bets.ErrBetNotFound, id)
		}
		return bets.BetSpec{}, fmt.Errorf("%w: %s", bets.ErrAlreadyReconciled, id)
	}
	if err != nil {
		return bets.BetSpec{}, err
	}
	return row.toBet()
}

func (s *Store) ListUnconsulted(ctx context.Context, limit int) ([]bets.BetSpec, error) {
	query := `
		SELECT ` + betColumns + `
		FROM bets
		WHERE consulted = FALSE AND status = 'pending'
		ORDER BY last_attempt_at NULLS FIRST, created_at, id`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	var rows []betRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return toBets(rows)
}

// MarkAttempted stamps still-unconsulted bets with the time a reconciliation last failed,
// moving them behind bets that have never been tried.
func (s *Store) MarkAttempted(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE bets
		SET last_attempt_at = $2
		WHERE id = ANY($1) AND consulted = FALSE`, pq.Array(ids), at.UTC())
	return err
}

func nullableJSON(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case *bets.GroupSpec:
		if t == nil {
			return nil, nil
		}
	case *bets.DrawResult:
		if t == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func toInt64s(in []int) pq.Int64Array {
	out := make(pq.Int64Array, len(in))
	for i, n := range in {
		out[i] = int64(n)
	}
	return out
}

func fromInt64s(in pq.Int64Array) []int {
	if len(in) == 0 {
		return nil
	}
	out := make([]int, len(in))
	for i, n := range in {
		out[i] = int(n)
	}
	return out
}
