package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port        string
		LogLevel    string
		BaseURL     string
		CORSOrigins []string
	}
	Session struct {
		MaxDurationMin int
		IDLength       int
	}
	Sweep struct {
		IntervalSecs int
		GraceSecs    int
	}
	Relay struct {
		HeartbeatSecs    int
		TerminateGraceMs int
	}
	Redis struct {
		Addr     string
		Password string
	}
	Stream struct {
		APIKey    string
		APISecret string
		BaseURL   string
	}
}

func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.base_url", "http://localhost:3000/")
	v.SetDefault("server.cors_origins", "http://localhost:3000,http://localhost:5173")

	v.SetDefault("session.max_duration_min", 1440)
	v.SetDefault("session.id_length", 8)

	v.SetDefault("sweep.interval_secs", 10)
	v.SetDefault("sweep.grace_secs", 5)

	v.SetDefault("relay.heartbeat_secs", 25)
	v.SetDefault("relay.terminate_grace_ms", 500)

	v.SetDefault("stream.base_url", "https://chat.stream-io-api.com")

	// Map envs
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.log_level", "LOG_LEVEL")
	v.BindEnv("server.base_url", "BASE_URL")
	v.BindEnv("server.cors_origins", "CORS_ORIGINS")

	v.BindEnv("session.max_duration_min", "SESSION_MAX_DURATION_MIN")
	v.BindEnv("session.id_length", "SESSION_ID_LENGTH")

	v.BindEnv("sweep.interval_secs", "SWEEP_INTERVAL_SECS")
	v.BindEnv("sweep.grace_secs", "SWEEP_GRACE_SECS")

	v.BindEnv("relay.heartbeat_secs", "RELAY_HEARTBEAT_SECS")
	v.BindEnv("relay.terminate_grace_ms", "RELAY_TERMINATE_GRACE_MS")

	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	v.BindEnv("stream.api_key", "STREAM_API_KEY")
	v.BindEnv("stream.api_secret", "STREAM_API_SECRET")
	v.BindEnv("stream.base_url", "STREAM_BASE_URL")

	var c Config
	c.Server.Port = toString(v.Get("server.port"))
	c.Server.LogLevel = v.GetString("server.log_level")
	c.Server.BaseURL = v.GetString("server.base_url")
	c.Server.CORSOrigins = splitList(v.GetString("server.cors_origins"))

	c.Session.MaxDurationMin = v.GetInt("session.max_duration_min")
	c.Session.IDLength = v.GetInt("session.id_length")

	c.Sweep.IntervalSecs = v.GetInt("sweep.interval_secs")
	c.Sweep.GraceSecs = v.GetInt("sweep.grace_secs")

	c.Relay.HeartbeatSecs = v.GetInt("relay.heartbeat_secs")
	c.Relay.TerminateGraceMs = v.GetInt("relay.terminate_grace_ms")

	c.Redis.Addr = v.GetString("redis.addr")
	c.Redis.Password = v.GetString("redis.password")

	c.Stream.APIKey = v.GetString("stream.api_key")
	c.Stream.APISecret = v.GetString("stream.api_secret")
	c.Stream.BaseURL = v.GetString("stream.base_url")

	return c
}

func toString(v any) string { return fmt.Sprint(v) }

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
