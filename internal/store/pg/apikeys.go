package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/nextlevelbuilder/wagate/internal/store"
)

// pgUniqueViolation is the SQLSTATE for a duplicate primary key.
const pgUniqueViolation = "23505"

const apiKeyColumns = "key_hash, prefix, active, created_at, last_used_at, revoked_at"

// PGAPIKeyStore implements store.APIKeyStore backed by Postgres.
type PGAPIKeyStore struct {
	db *sqlx.DB
}

func NewPGAPIKeyStore(db *sqlx.DB) *PGAPIKeyStore {
	return &PGAPIKeyStore{db: db}
}

func (s *PGAPIKeyStore) Insert(ctx context.Context, rec store.APIKeyData) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO api_keys (key_hash, prefix, active, created_at, last_used_at)
		 VALUES (:key_hash, :prefix, :active, :created_at, :last_used_at)`, rec)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return store.ErrAPIKeyExists
		}
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

func (s *PGAPIKeyStore) Get(ctx context.Context, hash string) (*store.APIKeyData, error) {
	var rec store.APIKeyData
	err := s.db.GetContext(ctx, &rec, "SELECT "+apiKeyColumns+" FROM api_keys WHERE key_hash = $1", hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrAPIKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return &rec, nil
}

func (s *PGAPIKeyStore) FindByID(ctx context.Context, id string) (*store.APIKeyData, error) {
	if !store.IsAPIKeyID(id) {
		return nil, store.ErrAPIKeyNotFound
	}
	var recs []store.APIKeyData
	err := s.db.SelectContext(ctx, &recs,
		"SELECT "+apiKeyColumns+" FROM api_keys WHERE key_hash LIKE $1 LIMIT 2", strings.ToLower(id)+"%")
	if err != nil {
		return nil, fmt.Errorf("find api key: %w", err)
	}
	switch len(recs) {
	case 0:
		return nil, store.ErrAPIKeyNotFound
	case 1:
		return &recs[0], nil
	default:
		return nil, fmt.Errorf("api key id %q is ambiguous", id)
	}
}

func (s *PGAPIKeyStore) SetLastUsed(ctx context.Context, hash string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, "UPDATE api_keys SET last_used_at = $1 WHERE key_hash = $2", at.UTC(), hash)
	if err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return expectOne(res)
}

func (s *PGAPIKeyStore) SetActive(ctx context.Context, hash string, active bool, at time.Time) error {
	var revokedAt *time.Time
	if !active {
		t := at.UTC()
		revokedAt = &t
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE api_keys SET active = $1, revoked_at = $2 WHERE key_hash = $3", active, revokedAt, hash)
	if err != nil {
		return fmt.Errorf("update api key: %w", err)
	}
	return expectOne(res)
}

func (s *PGAPIKeyStore) List(ctx context.Context) ([]store.APIKeyData, error) {
	var recs []store.APIKeyData
	if err := s.db.SelectContext(ctx, &recs, "SELECT "+apiKeyColumns+" FROM api_keys ORDER BY created_at"); err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return recs, nil
}

func expectOne(res sql.Result) error {
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.ErrAPIKeyNotFound
	}
	return nil
}
