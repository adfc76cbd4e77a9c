package service

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"

	"iotdash-server/internal/modules/auth/repository"
	"iotdash-server/internal/modules/auth/types"
)

// TokenService issues, validates and revokes bearer tokens. Token values are
// signed JWTs, but a token only authenticates while its value is present in
// the store: revocation and the expiry sweep remove it there.
//
// Session policy: multi-session. Issuing never displaces an earlier token for
// the same subject; Revoke removes every session the subject holds.
type TokenService struct {
	repo     repository.TokenRepository
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

func NewTokenService(repo repository.TokenRepository, secret string, lifetime time.Duration) *TokenService {
	return &TokenService{
		repo:     repo,
		secret:   []byte(secret),
		lifetime: lifetime,
		now:      time.Now,
	}
}

// Issue creates and stores a token for the principal.
func (s *TokenService) Issue(p types.Principal) (types.Token, error) {
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.lifetime)

	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(p.ID, 10),
		"name": p.Name,
		"role": string(p.Role),
		"jti":  uuid.NewString(),
		"iat":  issuedAt.Unix(),
		"exp":  expiresAt.Unix(),
	}
	value, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return types.Token{}, fmt.Errorf("sign token: %w", err)
	}

	t := types.Token{
		Value:     value,
		UserID:    p.ID,
		Role:      p.Role,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}
	if err := s.repo.Put(t); err != nil {
		return types.Token{}, err
	}
	return t, nil
}

// Validate decodes and verifies a token value and returns the embedded
// principal. Failure kinds: Missing (empty value or unknown to the store),
// Malformed (undecodable or bad signature), Expired.
func (s *TokenService) Validate(value string) (types.Principal, error) {
	if value == "" {
		return types.Principal{}, types.NewAuthError(types.AuthMissing, nil)
	}

	token, err := jwt.Parse(value, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if ve, ok := err.(*jwt.ValidationError); ok && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return types.Principal{}, types.NewAuthError(types.AuthExpired, err)
		}
		return types.Principal{}, types.NewAuthError(types.AuthMalformed, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return types.Principal{}, types.NewAuthError(types.AuthMalformed, nil)
	}

	stored, found, err := s.repo.Get(value)
	if err != nil {
		return types.Principal{}, types.NewAuthError(types.AuthMalformed, err)
	}
	if !found {
		// Revoked or swept.
		return types.Principal{}, types.NewAuthError(types.AuthMissing, nil)
	}
	if !s.now().Before(stored.ExpiresAt) {
		return types.Principal{}, types.NewAuthError(types.AuthExpired, nil)
	}

	sub, _ := claims["sub"].(string)
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return types.Principal{}, types.NewAuthError(types.AuthMalformed, err)
	}
	name, _ := claims["name"].(string)
	role := types.Role(fmt.Sprint(claims["role"]))
	if !role.Valid() {
		return types.Principal{}, types.NewAuthError(types.AuthMalformed, fmt.Errorf("unknown role %q", role))
	}
	return types.Principal{ID: id, Name: name, Role: role}, nil
}

// Revoke removes every live session for the subject.
func (s *TokenService) Revoke(subjectID int64) (int64, error) {
	return s.repo.RemoveBySubject(subjectID)
}

// SweepExpired removes tokens whose expiry is at or before the sweep start.
// The cutoff is taken once, so tokens issued while the sweep runs are safe.
// Idempotent: a second sweep with no new expirations removes nothing.
func (s *TokenService) SweepExpired() (int64, error) {
	cutoff := s.now().UTC()
	return s.repo.RemoveExpiredBefore(cutoff)
}

// Sessions lists the subject's live tokens.
func (s *TokenService) Sessions(subjectID int64) ([]types.Token, error) {
	return s.repo.ListBySubject(subjectID)
}
