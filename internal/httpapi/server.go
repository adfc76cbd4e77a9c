package httpapi

import (
	"net/http"

	"github.com/rs/cors"

	"iotdash-server/internal/config"
)

// NewServer wraps the mux with request logging and the CORS policy for the
// dashboard frontend.
func NewServer(cfg config.Config, mux *http.ServeMux) *http.Server {
	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "x-auth-token"},
	})
	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: requestLogger(c.Handler(mux)),
	}
}
