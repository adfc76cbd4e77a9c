package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"iotdash-server/internal/config"
	"iotdash-server/internal/db"
	"iotdash-server/internal/db/migrate"
	"iotdash-server/internal/httpapi"
	"iotdash-server/internal/modules/auth"
	"iotdash-server/internal/modules/telemetry"
	"iotdash-server/internal/modules/weather"
	"iotdash-server/internal/mqtt"
	"iotdash-server/internal/scheduler"
)

func Run(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"sqlitePath", cfg.Path,
		"supportedDevices", cfg.SupportedDevices,
		"weatherDeviceId", cfg.WeatherDeviceID,
		"weatherInterval", cfg.WeatherInterval,
		"tokenLifetime", cfg.TokenLifetime,
		"sweepInterval", cfg.SweepInterval,
		"mqttBroker", cfg.MQTTBroker,
		"mqttTopic", cfg.MQTTTopic,
	)

	dbConn, err := db.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(dbConn); closeErr != nil {
			slog.Error("db close", "error", closeErr)
		}
	}()

	if err := migrate.Run(dbConn); err != nil {
		return err
	}

	mux := httpapi.NewMux(dbConn)
	authFeature := auth.RegisterFeature(mux, dbConn, cfg)
	telemetryService := telemetry.RegisterFeature(mux, dbConn, authFeature.Gate, cfg)

	if cfg.AdminPassword != "" {
		if err := authFeature.Users.EnsureAdmin(cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return err
		}
	}

	// Background tasks: weather poll and token sweep. Each runs isolated;
	// a failed tick is logged and the schedule continues.
	sched := scheduler.New(slog.Default())
	if cfg.WeatherAPIKey != "" {
		sched.Add(weather.NewPoller(cfg, telemetryService).Task())
	} else {
		slog.Warn("weather polling disabled, WEATHER_API_KEY not set")
	}
	sched.Add(scheduler.Task{
		Name:     "token-sweep",
		Interval: cfg.SweepInterval,
		Run: func(ctx context.Context) error {
			removed, err := authFeature.Tokens.SweepExpired()
			if err != nil {
				return err
			}
			if removed > 0 {
				slog.Info("expired tokens removed", "count", removed)
			}
			return nil
		},
	})

	schedCtx, stopSched := context.WithCancel(ctx)
	defer stopSched()
	sched.Start(schedCtx)

	// Optional MQTT ingest. Set the handler before Connect so the broker's
	// queued messages after CONNACK are not lost.
	var subscriber *mqtt.Subscriber
	if cfg.MQTTBroker != "" {
		subscriber = mqtt.NewSubscriber(cfg)
		telemetry.RegisterIngest(subscriber, telemetryService)

		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		err = subscriber.Connect(connectCtx)
		connectCancel()
		if err != nil {
			slog.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
		}
	}

	srv := httpapi.NewServer(cfg, mux)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if subscriber != nil {
		slog.Info("mqtt disconnecting")
		subscriber.Disconnect()
	}

	stopSched()
	sched.Wait()

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}
