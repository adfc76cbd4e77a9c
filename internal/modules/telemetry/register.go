package telemetry

import (
	"database/sql"
	"net/http"

	"iotdash-server/internal/config"
	"iotdash-server/internal/modules/telemetry/controller"
	"iotdash-server/internal/modules/telemetry/repository"
	"iotdash-server/internal/modules/telemetry/service"
)

// RegisterFeature wires the reading store, service and routes. The returned
// service is shared with the weather poller and the MQTT ingest bridge.
func RegisterFeature(mux *http.ServeMux, db *sql.DB, gate controller.Gate, cfg config.Config) *service.Service {
	repo := repository.NewRepository(db)
	svc := service.NewService(repo, cfg.SupportedDevices)
	telemetryController := controller.NewTelemetryController(svc, gate)
	telemetryController.RegisterRoutes(mux)
	return svc
}
