package repository

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"iotdash-server/internal/modules/auth/types"
)

//go:embed sql/put-token.sql
var putTokenSQL string

//go:embed sql/get-token.sql
var getTokenSQL string

//go:embed sql/remove-token.sql
var removeTokenSQL string

//go:embed sql/remove-tokens-by-subject.sql
var removeTokensBySubjectSQL string

//go:embed sql/remove-expired-tokens.sql
var removeExpiredTokensSQL string

//go:embed sql/list-tokens-by-subject.sql
var listTokensBySubjectSQL string

// Expiry is stored as TEXT and compared with <= in SQL. The fixed nine-digit
// fraction keeps lexical order identical to chronological order.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// TokenRepository is the durable session-token store.
type TokenRepository interface {
	Put(t types.Token) error
	// Get reports ok=false when the value is unknown.
	Get(value string) (types.Token, bool, error)
	Remove(value string) error
	RemoveBySubject(userID int64) (int64, error)
	// RemoveExpiredBefore deletes every token whose expiry is at or before
	// cutoff and returns the count. Tokens issued after cutoff always have a
	// later expiry, so a sweep can never remove them.
	RemoveExpiredBefore(cutoff time.Time) (int64, error)
	ListBySubject(userID int64) ([]types.Token, error)
}

type tokenRepositoryImpl struct {
	db *sql.DB
}

func NewTokenRepository(db *sql.DB) TokenRepository {
	return &tokenRepositoryImpl{db: db}
}

func (r *tokenRepositoryImpl) Put(t types.Token) error {
	_, err := r.db.Exec(putTokenSQL,
		t.Value, t.UserID, string(t.Role),
		t.IssuedAt.UTC().Format(tsLayout),
		t.ExpiresAt.UTC().Format(tsLayout))
	if err != nil {
		return fmt.Errorf("put token: %w", err)
	}
	return nil
}

func (r *tokenRepositoryImpl) Get(value string) (types.Token, bool, error) {
	row := r.db.QueryRow(getTokenSQL, value)
	t, err := scanToken(row.Scan)
	if err == sql.ErrNoRows {
		return types.Token{}, false, nil
	}
	if err != nil {
		return types.Token{}, false, err
	}
	return t, true, nil
}

func (r *tokenRepositoryImpl) Remove(value string) error {
	_, err := r.db.Exec(removeTokenSQL, value)
	return err
}

func (r *tokenRepositoryImpl) RemoveBySubject(userID int64) (int64, error) {
	res, err := r.db.Exec(removeTokensBySubjectSQL, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *tokenRepositoryImpl) RemoveExpiredBefore(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec(removeExpiredTokensSQL, cutoff.UTC().Format(tsLayout))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *tokenRepositoryImpl) ListBySubject(userID int64) ([]types.Token, error) {
	rows, err := r.db.Query(listTokensBySubjectSQL, userID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close token rows", "error", err)
		}
	}()
	var out []types.Token
	for rows.Next() {
		t, err := scanToken(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanToken(scan func(...any) error) (types.Token, error) {
	var t types.Token
	var role, issuedAt, expiresAt string
	if err := scan(&t.Value, &t.UserID, &role, &issuedAt, &expiresAt); err != nil {
		return types.Token{}, err
	}
	t.Role = types.Role(role)
	var err error
	if t.IssuedAt, err = parseTimestamp(issuedAt); err != nil {
		return types.Token{}, err
	}
	if t.ExpiresAt, err = parseTimestamp(expiresAt); err != nil {
		return types.Token{}, err
	}
	return t, nil
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		var err2 error
		t, err2 = time.Parse(time.RFC3339, s)
		if err2 != nil {
			return time.Time{}, fmt.Errorf("parse timestamp %q: RFC3339Nano: %w; RFC3339: %w", s, err, err2)
		}
	}
	return t, nil
}
