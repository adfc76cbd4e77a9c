package controller

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"iotdash-server/internal/db/migrate"
	"iotdash-server/internal/modules/auth/middleware"
	"iotdash-server/internal/modules/auth/repository"
	"iotdash-server/internal/modules/auth/service"
	"iotdash-server/internal/modules/auth/types"
)

type testEnv struct {
	mux    *http.ServeMux
	users  *service.UserService
	tokens *service.TokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	if err := migrate.Run(db); err != nil {
		_ = db.Close()
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	users := service.NewUserService(repository.NewUserRepository(db))
	tokens := service.NewTokenService(repository.NewTokenRepository(db), "test-secret", time.Hour)
	gate := middleware.New(tokens)

	mux := http.NewServeMux()
	NewUserController(users, tokens, gate).RegisterRoutes(mux)

	if _, err := users.CreateOrUpdate("root", "root@example.com", "root password", types.RoleAdmin); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	if _, err := users.CreateOrUpdate("alice", "alice@example.com", "alice password", types.RoleUser); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return &testEnv{mux: mux, users: users, tokens: tokens}
}

func (e *testEnv) do(t *testing.T, method, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, r)
	return w
}

func (e *testEnv) login(t *testing.T, login, password string) string {
	t.Helper()
	body := `{"login":"` + login + `","password":"` + password + `"}`
	w := e.do(t, http.MethodPost, "/user/auth", body, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", login, w.Code, w.Body.String())
	}
	var res map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if res["token"] == "" {
		t.Fatal("login returned an empty token")
	}
	return res["token"]
}

func TestAuthenticateEndpoint(t *testing.T) {
	env := newTestEnv(t)

	token := env.login(t, "alice@example.com", "alice password")
	if _, err := env.tokens.Validate(token); err != nil {
		t.Errorf("issued token does not validate: %v", err)
	}

	t.Run("wrong password", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/user/auth",
			`{"login":"alice","password":"wrong"}`, "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d; want 401", w.Code)
		}
	})

	t.Run("unknown account", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/user/auth",
			`{"login":"mallory","password":"x"}`, "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d; want 401", w.Code)
		}
	})

	t.Run("bad body", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/user/auth", "not json", "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d; want 400", w.Code)
		}
	})
}

func TestLogoutEndpoint(t *testing.T) {
	env := newTestEnv(t)
	first := env.login(t, "alice", "alice password")
	second := env.login(t, "alice", "alice password")

	w := env.do(t, http.MethodDelete, "/user/logout", "", first)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
	var res map[string]int64
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// Logout ends every session the subject holds.
	if res["removed"] != 2 {
		t.Errorf("removed = %d; want 2", res["removed"])
	}
	if _, err := env.tokens.Validate(second); err == nil {
		t.Error("second session survived logout")
	}

	t.Run("without token", func(t *testing.T) {
		if w := env.do(t, http.MethodDelete, "/user/logout", "", ""); w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d; want 401", w.Code)
		}
	})
}

func TestSweepExpiredEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "alice", "alice password")

	w := env.do(t, http.MethodDelete, "/token/expired", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
	var res map[string]int64
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res["removed"] != 0 {
		t.Errorf("removed = %d; want 0 (nothing expired)", res["removed"])
	}
}

func TestCreateUserEndpoint(t *testing.T) {
	env := newTestEnv(t)
	adminTok := env.login(t, "root", "root password")
	userTok := env.login(t, "alice", "alice password")

	body := `{"name":"bob","email":"bob@example.com","password":"bob password"}`

	t.Run("requires admin", func(t *testing.T) {
		if w := env.do(t, http.MethodPost, "/user/create", body, userTok); w.Code != http.StatusForbidden {
			t.Errorf("status = %d; want 403", w.Code)
		}
		if w := env.do(t, http.MethodPost, "/user/create", body, ""); w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d; want 401", w.Code)
		}
	})

	t.Run("creates account", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/user/create", body, adminTok)
		if w.Code != http.StatusOK {
			t.Fatalf("status %d body %s", w.Code, w.Body.String())
		}
		var info types.UserInfo
		if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if info.Role != types.RoleUser {
			t.Errorf("role = %q; want the default user role", info.Role)
		}
		env.login(t, "bob", "bob password")
	})

	t.Run("rejects bad data", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/user/create", `{"name":"","email":""}`, adminTok)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d; want 400", w.Code)
		}
	})
}

func TestResetPasswordEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/user/reset", `{"email":"alice@example.com"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
	if w := env.do(t, http.MethodPost, "/user/auth",
		`{"login":"alice","password":"alice password"}`, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("old password still valid after reset: status %d", w.Code)
	}

	t.Run("unknown email", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/user/reset", `{"email":"nobody@example.com"}`, "")
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d; want 404", w.Code)
		}
	})

	t.Run("missing email", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/user/reset", `{}`, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d; want 400", w.Code)
		}
	})
}

func TestListUsersEndpoint(t *testing.T) {
	env := newTestEnv(t)
	adminTok := env.login(t, "root", "root password")
	userTok := env.login(t, "alice", "alice password")

	if w := env.do(t, http.MethodGet, "/user/all", "", userTok); w.Code != http.StatusForbidden {
		t.Errorf("status = %d; want 403 for non-admin", w.Code)
	}

	w := env.do(t, http.MethodGet, "/user/all", "", adminTok)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
	var users []types.UserInfo
	if err := json.Unmarshal(w.Body.Bytes(), &users); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("got %d accounts, want 2", len(users))
	}
	if strings.Contains(w.Body.String(), "PasswordHash") || strings.Contains(w.Body.String(), "password_hash") {
		t.Error("password material leaked in listing")
	}
}
