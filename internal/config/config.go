package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr          string
	PanelURL          string
	PanelTimeout      time.Duration
	DatabaseURL       string
	RedisAddr         string
	ShutdownTimeout   time.Duration
	LogLevel          string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration
}

func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DLUX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("panel.url", "http://127.0.0.1:8000")
	v.SetDefault("panel.timeout", "10s")
	// Empty database/redis settings degrade to an in-process cache with
	// no cross-view propagation.
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.conn_max_idle_time", "5m")
	v.SetDefault("redis.addr", "")
	v.SetDefault("shutdown.timeout", "10s")
	v.SetDefault("log.level", "info")

	_ = v.BindEnv("http.addr", "DLUX_HTTP_ADDR", "HTTP_ADDR")
	_ = v.BindEnv("panel.url", "DLUX_PANEL_URL", "BACKEND_URL")
	_ = v.BindEnv("panel.timeout", "DLUX_PANEL_TIMEOUT")
	_ = v.BindEnv("database.url", "DLUX_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("database.max_open_conns", "DLUX_DATABASE_MAX_OPEN_CONNS")
	_ = v.BindEnv("database.max_idle_conns", "DLUX_DATABASE_MAX_IDLE_CONNS")
	_ = v.BindEnv("database.conn_max_lifetime", "DLUX_DATABASE_CONN_MAX_LIFETIME")
	_ = v.BindEnv("database.conn_max_idle_time", "DLUX_DATABASE_CONN_MAX_IDLE_TIME")
	_ = v.BindEnv("redis.addr", "DLUX_REDIS_ADDR", "REDIS_ADDR")
	_ = v.BindEnv("shutdown.timeout", "DLUX_SHUTDOWN_TIMEOUT", "SHUTDOWN_TIMEOUT")
	_ = v.BindEnv("log.level", "DLUX_LOG_LEVEL", "LOG_LEVEL")

	panelTimeout, err := time.ParseDuration(v.GetString("panel.timeout"))
	if err != nil {
		return Config{}, err
	}
	shutdownTimeout, err := time.ParseDuration(v.GetString("shutdown.timeout"))
	if err != nil {
		return Config{}, err
	}
	connMaxLifetime, err := time.ParseDuration(v.GetString("database.conn_max_lifetime"))
	if err != nil {
		return Config{}, err
	}
	connMaxIdleTime, err := time.ParseDuration(v.GetString("database.conn_max_idle_time"))
	if err != nil {
		return Config{}, err
	}

	return Config{
		HTTPAddr:          strings.TrimSpace(v.GetString("http.addr")),
		PanelURL:          strings.TrimSpace(v.GetString("panel.url")),
		PanelTimeout:      panelTimeout,
		DatabaseURL:       strings.TrimSpace(v.GetString("database.url")),
		RedisAddr:         strings.TrimSpace(v.GetString("redis.addr")),
		ShutdownTimeout:   shutdownTimeout,
		LogLevel:          v.GetString("log.level"),
		DBMaxOpenConns:    v.GetInt("database.max_open_conns"),
		DBMaxIdleConns:    v.GetInt("database.max_idle_conns"),
		DBConnMaxLifetime: connMaxLifetime,
		DBConnMaxIdleTime: connMaxIdleTime,
	}, nil
}
