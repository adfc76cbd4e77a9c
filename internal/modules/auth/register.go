package auth

import (
	"database/sql"
	"net/http"

	"iotdash-server/internal/config"
	"iotdash-server/internal/modules/auth/controller"
	"iotdash-server/internal/modules/auth/middleware"
	"iotdash-server/internal/modules/auth/repository"
	"iotdash-server/internal/modules/auth/service"
)

// Feature bundles what other modules and the app need from auth.
type Feature struct {
	Gate   *middleware.Middleware
	Users  *service.UserService
	Tokens *service.TokenService
}

func RegisterFeature(mux *http.ServeMux, db *sql.DB, cfg config.Config) *Feature {
	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	users := service.NewUserService(userRepo)
	tokens := service.NewTokenService(tokenRepo, cfg.JWTSecret, cfg.TokenLifetime)
	gate := middleware.New(tokens)

	userController := controller.NewUserController(users, tokens, gate)
	userController.RegisterRoutes(mux)

	return &Feature{Gate: gate, Users: users, Tokens: tokens}
}
