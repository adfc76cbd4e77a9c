package controller

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"iotdash-server/internal/modules/telemetry/service"
	"iotdash-server/internal/modules/telemetry/types"
	"iotdash-server/internal/utils"
)

// Gate guards routes; satisfied by the auth middleware.
type Gate interface {
	RequireUser(http.Handler) http.Handler
	RequireAdmin(http.Handler) http.Handler
}

type TelemetryController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type telemetryControllerImpl struct {
	service *service.Service
	gate    Gate
}

func NewTelemetryController(svc *service.Service, gate Gate) TelemetryController {
	return &telemetryControllerImpl{service: svc, gate: gate}
}

func (c *telemetryControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	user := func(h http.HandlerFunc) http.Handler { return c.gate.RequireUser(h) }
	admin := func(h http.HandlerFunc) http.Handler { return c.gate.RequireAdmin(h) }

	mux.HandleFunc("GET /data/latest/all", c.handleAllLatest)
	mux.Handle("GET /data/{id}", user(c.handleHistory))
	mux.Handle("GET /data/{id}/latest", user(c.handleLatest))
	mux.Handle("GET /data/{id}/range", user(c.handleRange))
	mux.Handle("GET /data/{id}/{num}", user(c.handleLatestN))
	mux.Handle("POST /data/{id}", user(c.handleRecord))
	mux.Handle("DELETE /data/all", admin(c.handlePurgeAll))
	mux.Handle("DELETE /data/{id}", admin(c.handlePurgeDevice))
	mux.Handle("DELETE /data/{id}/range", admin(c.handlePurgeRange))
}

func (c *telemetryControllerImpl) handleAllLatest(w http.ResponseWriter, r *http.Request) {
	entries, err := c.service.QueryAllLatest()
	if err != nil {
		writeServiceError(w, "query all latest", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, entries)
}

func (c *telemetryControllerImpl) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathInt(r, "id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	readings, err := c.service.QueryHistory(id)
	if err != nil {
		writeServiceError(w, "query history", err)
		return
	}
	if readings == nil {
		readings = []types.Reading{}
	}
	utils.WriteJSON(w, http.StatusOK, readings)
}

func (c *telemetryControllerImpl) handleLatest(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathInt(r, "id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	latest, err := c.service.QueryLatest(id)
	if err != nil {
		writeServiceError(w, "query latest", err)
		return
	}
	if latest == nil {
		// No data yet for this device; an empty object keeps old clients happy.
		utils.WriteJSON(w, http.StatusOK, map[string]any{})
		return
	}
	utils.WriteJSON(w, http.StatusOK, latest)
}

func (c *telemetryControllerImpl) handleLatestN(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathInt(r, "id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	num, err := utils.PathInt(r, "num")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	readings, err := c.service.QueryLatestN(id, num)
	if err != nil {
		writeServiceError(w, "query latest slice", err)
		return
	}
	if readings == nil {
		readings = []types.Reading{}
	}
	utils.WriteJSON(w, http.StatusOK, readings)
}

func (c *telemetryControllerImpl) handleRange(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathInt(r, "id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, to, err := parseRangeQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	readings, err := c.service.QueryRange(id, from, to)
	if err != nil {
		writeServiceError(w, "query range", err)
		return
	}
	if readings == nil {
		readings = []types.Reading{}
	}
	utils.WriteJSON(w, http.StatusOK, readings)
}

func (c *telemetryControllerImpl) handleRecord(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathInt(r, "id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var raw types.RawReading
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	reading, err := c.service.RecordReading(id, raw)
	if err != nil {
		writeServiceError(w, "record reading", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, reading)
}

func (c *telemetryControllerImpl) handlePurgeAll(w http.ResponseWriter, r *http.Request) {
	n, err := c.service.PurgeAll()
	if err != nil {
		writeServiceError(w, "purge all", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]int64{"removed": n})
}

func (c *telemetryControllerImpl) handlePurgeDevice(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathInt(r, "id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := c.service.PurgeDevice(id)
	if err != nil {
		writeServiceError(w, "purge device", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]int64{"removed": n})
}

func (c *telemetryControllerImpl) handlePurgeRange(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathInt(r, "id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, to, err := parseRangeQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := c.service.PurgeRange(id, from, to)
	if err != nil {
		writeServiceError(w, "purge range", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]int64{"removed": n})
}

// writeServiceError maps typed service errors to responses. Storage causes
// are logged and answered with a generic message.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	if types.IsValidation(err) {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	slog.Error(op+" failed", "error", err)
	utils.WriteError(w, http.StatusInternalServerError, "internal error")
}
