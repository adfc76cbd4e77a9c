package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"iotdash-server/internal/modules/auth/service"
	"iotdash-server/internal/modules/auth/types"
)

type memTokenRepo struct {
	tokens map[string]types.Token
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{tokens: make(map[string]types.Token)}
}

func (r *memTokenRepo) Put(t types.Token) error {
	r.tokens[t.Value] = t
	return nil
}

func (r *memTokenRepo) Get(value string) (types.Token, bool, error) {
	t, ok := r.tokens[value]
	return t, ok, nil
}

func (r *memTokenRepo) Remove(value string) error {
	delete(r.tokens, value)
	return nil
}

func (r *memTokenRepo) RemoveBySubject(userID int64) (int64, error) {
	var n int64
	for v, t := range r.tokens {
		if t.UserID == userID {
			delete(r.tokens, v)
			n++
		}
	}
	return n, nil
}

func (r *memTokenRepo) RemoveExpiredBefore(cutoff time.Time) (int64, error) {
	var n int64
	for v, t := range r.tokens {
		if !t.ExpiresAt.After(cutoff) {
			delete(r.tokens, v)
			n++
		}
	}
	return n, nil
}

func (r *memTokenRepo) ListBySubject(userID int64) ([]types.Token, error) {
	var out []types.Token
	for _, t := range r.tokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func issueToken(t *testing.T, svc *service.TokenService, p types.Principal) string {
	t.Helper()
	tok, err := svc.Issue(p)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok.Value
}

func newTestGate(t *testing.T) (*Middleware, *service.TokenService) {
	t.Helper()
	tokens := service.NewTokenService(newMemTokenRepo(), "test-secret", time.Hour)
	return New(tokens), tokens
}

func okHandler(hit *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hit = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		value  string
		want   string
	}{
		{"authorization bare", "Authorization", "abc123", "abc123"},
		{"authorization bearer", "Authorization", "Bearer abc123", "abc123"},
		{"authorization bearer padded", "Authorization", "  Bearer  abc123 ", "abc123"},
		{"legacy header", "x-auth-token", "abc123", "abc123"},
		{"legacy header bearer", "x-auth-token", "Bearer abc123", "abc123"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set(tc.header, tc.value)
			if got := ExtractToken(r); got != tc.want {
				t.Errorf("ExtractToken = %q; want %q", got, tc.want)
			}
		})
	}

	t.Run("no header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if got := ExtractToken(r); got != "" {
			t.Errorf("ExtractToken = %q; want empty", got)
		}
	})

	t.Run("authorization wins over legacy", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer primary")
		r.Header.Set("x-auth-token", "secondary")
		if got := ExtractToken(r); got != "primary" {
			t.Errorf("ExtractToken = %q; want primary", got)
		}
	})
}

func TestRequireUser(t *testing.T) {
	gate, tokens := newTestGate(t)
	alice := types.Principal{ID: 1, Name: "alice", Role: types.RoleUser}
	value := issueToken(t, tokens, alice)

	t.Run("valid token", func(t *testing.T) {
		var hit bool
		var got types.Principal
		h := gate.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hit = true
			got, _ = PrincipalFrom(r.Context())
		}))
		r := httptest.NewRequest(http.MethodGet, "/data/1", nil)
		r.Header.Set("Authorization", "Bearer "+value)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if !hit {
			t.Fatalf("handler not reached: status %d", w.Code)
		}
		if got != alice {
			t.Errorf("principal = %+v; want %+v", got, alice)
		}
	})

	t.Run("legacy header", func(t *testing.T) {
		var hit bool
		h := gate.RequireUser(okHandler(&hit))
		r := httptest.NewRequest(http.MethodGet, "/data/1", nil)
		r.Header.Set("x-auth-token", value)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if !hit {
			t.Errorf("handler not reached: status %d", w.Code)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		var hit bool
		h := gate.RequireUser(okHandler(&hit))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/data/1", nil))
		if hit || w.Code != http.StatusUnauthorized {
			t.Errorf("hit=%v status=%d; want 401 without reaching handler", hit, w.Code)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		var hit bool
		h := gate.RequireUser(okHandler(&hit))
		r := httptest.NewRequest(http.MethodGet, "/data/1", nil)
		r.Header.Set("Authorization", "Bearer not-a-jwt")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if hit || w.Code != http.StatusUnauthorized {
			t.Errorf("hit=%v status=%d; want 401", hit, w.Code)
		}
	})

	t.Run("revoked token", func(t *testing.T) {
		revoked := issueToken(t, tokens, alice)
		if _, err := tokens.Revoke(alice.ID); err != nil {
			t.Fatalf("revoke: %v", err)
		}
		var hit bool
		h := gate.RequireUser(okHandler(&hit))
		r := httptest.NewRequest(http.MethodGet, "/data/1", nil)
		r.Header.Set("Authorization", "Bearer "+revoked)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if hit || w.Code != http.StatusUnauthorized {
			t.Errorf("hit=%v status=%d; want 401", hit, w.Code)
		}
	})
}

func TestRequireAdmin(t *testing.T) {
	gate, tokens := newTestGate(t)
	userTok := issueToken(t, tokens, types.Principal{ID: 1, Name: "alice", Role: types.RoleUser})
	adminTok := issueToken(t, tokens, types.Principal{ID: 2, Name: "root", Role: types.RoleAdmin})

	t.Run("admin allowed", func(t *testing.T) {
		var hit bool
		h := gate.RequireAdmin(okHandler(&hit))
		r := httptest.NewRequest(http.MethodDelete, "/data/all", nil)
		r.Header.Set("Authorization", "Bearer "+adminTok)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if !hit {
			t.Errorf("handler not reached: status %d", w.Code)
		}
	})

	t.Run("user forbidden", func(t *testing.T) {
		var hit bool
		h := gate.RequireAdmin(okHandler(&hit))
		r := httptest.NewRequest(http.MethodDelete, "/data/all", nil)
		r.Header.Set("Authorization", "Bearer "+userTok)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if hit || w.Code != http.StatusForbidden {
			t.Errorf("hit=%v status=%d; want 403", hit, w.Code)
		}
	})

	t.Run("anonymous unauthorized", func(t *testing.T) {
		var hit bool
		h := gate.RequireAdmin(okHandler(&hit))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/data/all", nil))
		if hit || w.Code != http.StatusUnauthorized {
			t.Errorf("hit=%v status=%d; want 401", hit, w.Code)
		}
	})
}
