package controller

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"iotdash-server/internal/modules/auth/middleware"
	"iotdash-server/internal/modules/auth/service"
	"iotdash-server/internal/modules/auth/types"
	"iotdash-server/internal/utils"
)

type UserController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type userControllerImpl struct {
	users  *service.UserService
	tokens *service.TokenService
	gate   *middleware.Middleware
}

func NewUserController(users *service.UserService, tokens *service.TokenService, gate *middleware.Middleware) UserController {
	return &userControllerImpl{users: users, tokens: tokens, gate: gate}
}

func (c *userControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /user/auth", c.handleAuthenticate)
	mux.Handle("DELETE /user/logout", c.gate.RequireUser(http.HandlerFunc(c.handleLogout)))
	mux.HandleFunc("DELETE /token/expired", c.handleSweepExpired)
	mux.Handle("POST /user/create", c.gate.RequireAdmin(http.HandlerFunc(c.handleCreate)))
	mux.HandleFunc("POST /user/reset", c.handleResetPassword)
	mux.Handle("GET /user/all", c.gate.RequireAdmin(http.HandlerFunc(c.handleListUsers)))
}

func (c *userControllerImpl) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, ok, err := c.users.Authenticate(req.Login, req.Password)
	if err != nil {
		slog.Error("authenticate failed", "login", req.Login, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "authentication unavailable")
		return
	}
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, err := c.tokens.Issue(p)
	if err != nil {
		slog.Error("token issue failed", "user_id", p.ID, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "authentication unavailable")
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"token": token.Value})
}

func (c *userControllerImpl) handleLogout(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "missing token")
		return
	}
	removed, err := c.tokens.Revoke(p.ID)
	if err != nil {
		slog.Error("logout failed", "user_id", p.ID, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}

func (c *userControllerImpl) handleSweepExpired(w http.ResponseWriter, r *http.Request) {
	removed, err := c.tokens.SweepExpired()
	if err != nil {
		slog.Error("token sweep failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "sweep failed")
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}

func (c *userControllerImpl) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string     `json:"name"`
		Email    string     `json:"email"`
		Password string     `json:"password"`
		Role     types.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Role == "" {
		req.Role = types.RoleUser
	}
	info, err := c.users.CreateOrUpdate(req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		slog.Error("user upsert failed", "email", req.Email, "error", err)
		utils.WriteError(w, http.StatusBadRequest, "invalid user data")
		return
	}
	utils.WriteJSON(w, http.StatusOK, info)
}

func (c *userControllerImpl) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		utils.WriteError(w, http.StatusBadRequest, "email is required")
		return
	}
	if err := c.users.ResetPassword(req.Email); err != nil {
		slog.Error("password reset failed", "email", req.Email, "error", err)
		utils.WriteError(w, http.StatusNotFound, "user not found")
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "password reset"})
}

func (c *userControllerImpl) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := c.users.List()
	if err != nil {
		slog.Error("list users failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	utils.WriteJSON(w, http.StatusOK, users)
}
