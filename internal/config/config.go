package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port                 string
	DatabaseURL          string
	GameDuration         time.Duration
	LogLevel             string
	ConnectionTTL        time.Duration
	SweepInterval        time.Duration
	BroadcastConcurrency int
	AllowedOrigins       []string // websocket origin patterns
	PublicURL            string   // base of the join links in room QR codes
}

func Load() Config {
	port := getEnv("PORT", "8080")
	cfg := Config{
		Port:                 port,
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		GameDuration:         getEnvSeconds("GAME_DURATION", 30),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		ConnectionTTL:        getEnvSeconds("CONNECTION_TTL", 86400),
		SweepInterval:        getEnvSeconds("SWEEP_INTERVAL", 5),
		BroadcastConcurrency: getEnvInt("BROADCAST_CONCURRENCY", 16),
		AllowedOrigins:       getEnvList("ALLOWED_ORIGINS"),
		PublicURL:            strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:"+port), "/"),
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return fallback
}

func getEnvSeconds(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Second
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
