// Package weather pulls current conditions from an external weather API on a
// fixed interval and stores them as readings for a dedicated synthetic device.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"iotdash-server/internal/config"
	"iotdash-server/internal/modules/telemetry/types"
	"iotdash-server/internal/scheduler"
)

// Recorder is the slice of the telemetry service the poller uses.
type Recorder interface {
	RecordPolled(deviceID int, temperature, pressure, humidity float64) (types.Reading, error)
}

// ExternalSourceError wraps a failed fetch or decode. It never propagates
// past a poll tick; the scheduler logs it and the next tick proceeds.
type ExternalSourceError struct {
	Err error
}

func (e *ExternalSourceError) Error() string { return fmt.Sprintf("external source: %v", e.Err) }
func (e *ExternalSourceError) Unwrap() error { return e.Err }

type Poller struct {
	client   *http.Client
	recorder Recorder
	url      string
	apiKey   string
	city     string
	deviceID int
	interval time.Duration
}

func NewPoller(cfg config.Config, recorder Recorder) *Poller {
	return &Poller{
		client:   &http.Client{Timeout: 10 * time.Second},
		recorder: recorder,
		url:      cfg.WeatherURL,
		apiKey:   cfg.WeatherAPIKey,
		city:     cfg.WeatherCity,
		deviceID: cfg.WeatherDeviceID,
		interval: cfg.WeatherInterval,
	}
}

// Task returns the scheduler entry for this poller. The first fetch runs at
// startup, then on every interval tick.
func (p *Poller) Task() scheduler.Task {
	return scheduler.Task{
		Name:       "weather-poll",
		Interval:   p.interval,
		RunOnStart: true,
		Run:        p.Poll,
	}
}

// conditions is the subset of the provider response the poller reads
// (openweathermap-compatible).
type conditions struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Pressure float64 `json:"pressure"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
}

// Poll fetches one reading and stores it for the synthetic device.
func (p *Poller) Poll(ctx context.Context) error {
	cond, err := p.fetch(ctx)
	if err != nil {
		return &ExternalSourceError{Err: err}
	}

	reading, err := p.recorder.RecordPolled(p.deviceID, cond.Main.Temp, cond.Main.Pressure, cond.Main.Humidity)
	if err != nil {
		return fmt.Errorf("store weather reading: %w", err)
	}
	slog.Info("weather reading stored",
		"device_id", reading.DeviceID,
		"temperature", reading.Temperature,
		"pressure", reading.Pressure,
		"humidity", reading.Humidity,
	)
	return nil
}

func (p *Poller) fetch(ctx context.Context) (conditions, error) {
	q := url.Values{}
	q.Set("q", p.city)
	q.Set("appid", p.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url+"?"+q.Encode(), nil)
	if err != nil {
		return conditions{}, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return conditions{}, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("close weather response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return conditions{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var cond conditions
	if err := json.NewDecoder(resp.Body).Decode(&cond); err != nil {
		return conditions{}, fmt.Errorf("decode response: %w", err)
	}
	return cond, nil
}
