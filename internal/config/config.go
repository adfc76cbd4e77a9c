package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	// AllowedOrigins is the comma-separated CORS allowlist for the dashboard.
	// "*" allows any origin (dev default).
	AllowedOrigins []string

	Driver          string
	DSN             string
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogSQL          bool

	// SupportedDevices is the fixed device population; valid ids are
	// [0, SupportedDevices). WeatherDeviceID is the synthetic device the
	// poller writes to and must fall inside that range.
	SupportedDevices int
	WeatherDeviceID  int

	WeatherURL      string
	WeatherAPIKey   string
	WeatherCity     string
	WeatherInterval time.Duration

	JWTSecret     string
	TokenLifetime time.Duration
	SweepInterval time.Duration

	// Bootstrap admin account, ensured at startup when AdminPassword is set.
	AdminName     string
	AdminEmail    string
	AdminPassword string

	MQTTBroker   string
	MQTTPort     int
	MQTTTopic    string
	MQTTClientID string
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	httpAddr := strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if httpAddr == "" {
		httpAddr = ":3100"
	}

	originsStr := strings.TrimSpace(os.Getenv("CORS_ORIGINS"))
	if originsStr == "" {
		originsStr = "*"
	}
	var origins []string
	for _, o := range strings.Split(originsStr, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	driver := strings.TrimSpace(os.Getenv("DB_DRIVER"))
	if driver == "" {
		driver = "sqlite3"
	}
	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	path := strings.TrimSpace(os.Getenv("SQLITE_PATH"))
	if path == "" {
		path = "dev/sqlite/iotdash.db"
	}

	maxOpenConns, err := intFromEnv("DB_MAX_OPEN_CONNS", 1)
	if err != nil {
		return Config{}, err
	}
	maxIdleConns, err := intFromEnv("DB_MAX_IDLE_CONNS", 1)
	if err != nil {
		return Config{}, err
	}
	connMaxLifetime, err := durationFromEnv("DB_CONN_MAX_LIFETIME", 0)
	if err != nil {
		return Config{}, err
	}
	logSQL, err := boolFromEnv("DB_LOG_SQL", false)
	if err != nil {
		return Config{}, err
	}

	supportedDevices, err := intFromEnv("SUPPORTED_DEVICES", 117)
	if err != nil {
		return Config{}, err
	}
	if supportedDevices < 1 {
		return Config{}, fmt.Errorf("invalid SUPPORTED_DEVICES %d (must be >= 1)", supportedDevices)
	}
	weatherDeviceID, err := intFromEnv("WEATHER_DEVICE_ID", 100)
	if err != nil {
		return Config{}, err
	}
	if weatherDeviceID < 0 || weatherDeviceID >= supportedDevices {
		return Config{}, fmt.Errorf("invalid WEATHER_DEVICE_ID %d (must be in [0, %d))", weatherDeviceID, supportedDevices)
	}

	weatherURL := strings.TrimSpace(os.Getenv("WEATHER_URL"))
	if weatherURL == "" {
		weatherURL = "https://api.openweathermap.org/data/2.5/weather"
	}
	weatherAPIKey := strings.TrimSpace(os.Getenv("WEATHER_API_KEY"))
	weatherCity := strings.TrimSpace(os.Getenv("WEATHER_CITY"))
	if weatherCity == "" {
		weatherCity = "Tarnow,pl"
	}
	weatherInterval, err := durationFromEnv("WEATHER_INTERVAL", 5*time.Minute)
	if err != nil {
		return Config{}, err
	}
	if weatherInterval <= 0 {
		return Config{}, fmt.Errorf("invalid WEATHER_INTERVAL %s (must be > 0)", weatherInterval)
	}

	jwtSecret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if jwtSecret == "" {
		if appEnv == "prod" {
			return Config{}, fmt.Errorf("JWT_SECRET is required when APP_ENV=prod")
		}
		jwtSecret = "secret"
	}
	tokenLifetime, err := durationFromEnv("TOKEN_LIFETIME", time.Hour)
	if err != nil {
		return Config{}, err
	}
	if tokenLifetime <= 0 {
		return Config{}, fmt.Errorf("invalid TOKEN_LIFETIME %s (must be > 0)", tokenLifetime)
	}
	sweepInterval, err := durationFromEnv("TOKEN_SWEEP_INTERVAL", time.Hour)
	if err != nil {
		return Config{}, err
	}
	if sweepInterval <= 0 {
		return Config{}, fmt.Errorf("invalid TOKEN_SWEEP_INTERVAL %s (must be > 0)", sweepInterval)
	}

	adminName := strings.TrimSpace(os.Getenv("ADMIN_NAME"))
	if adminName == "" {
		adminName = "admin"
	}
	adminEmail := strings.TrimSpace(os.Getenv("ADMIN_EMAIL"))
	if adminEmail == "" {
		adminEmail = "admin@example.com"
	}
	adminPassword := strings.TrimSpace(os.Getenv("ADMIN_PASSWORD"))
	if adminPassword == "" && appEnv == "dev" {
		adminPassword = "admin"
	}

	mqttBroker := strings.TrimSpace(os.Getenv("MQTT_BROKER"))
	mqttPort, err := intFromEnv("MQTT_PORT", 1883)
	if err != nil {
		return Config{}, err
	}
	mqttTopic := strings.TrimSpace(os.Getenv("MQTT_TOPIC"))
	if mqttTopic == "" {
		mqttTopic = "iotdash/readings"
	}
	mqttClientID := strings.TrimSpace(os.Getenv("MQTT_CLIENT_ID"))
	if mqttClientID == "" {
		mqttClientID = "iotdash-server"
	}

	return Config{
		AppEnv:           appEnv,
		LogLevel:         level,
		HTTPAddr:         httpAddr,
		AllowedOrigins:   origins,
		Driver:           driver,
		DSN:              dsn,
		Path:             path,
		MaxOpenConns:     maxOpenConns,
		MaxIdleConns:     maxIdleConns,
		ConnMaxLifetime:  connMaxLifetime,
		LogSQL:           logSQL,
		SupportedDevices: supportedDevices,
		WeatherDeviceID:  weatherDeviceID,
		WeatherURL:       weatherURL,
		WeatherAPIKey:    weatherAPIKey,
		WeatherCity:      weatherCity,
		WeatherInterval:  weatherInterval,
		JWTSecret:        jwtSecret,
		TokenLifetime:    tokenLifetime,
		SweepInterval:    sweepInterval,
		AdminName:        adminName,
		AdminEmail:       adminEmail,
		AdminPassword:    adminPassword,
		MQTTBroker:       mqttBroker,
		MQTTPort:         mqttPort,
		MQTTTopic:        mqttTopic,
		MQTTClientID:     mqttClientID,
	}, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

func intFromEnv(name string, def int) (int, error) {
	s := strings.TrimSpace(os.Getenv(name))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return n, nil
}

func boolFromEnv(name string, def bool) (bool, error) {
	s := strings.TrimSpace(os.Getenv(name))
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return b, nil
}

func durationFromEnv(name string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(os.Getenv(name))
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return d, nil
}
