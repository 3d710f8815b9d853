package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds everything the server needs at startup.
type Config struct {
	Server struct {
		Port         string
		CookieSecure bool
	}
	Database struct {
		URL        string // postgres connection string, empty means sqlite
		SQLitePath string
	}
	Session struct {
		Lifetime time.Duration
	}
	BcryptCost int
	LogLevel   logrus.Level
}

// UsePostgres reports whether DATABASE_URL points at a postgres server.
func (c *Config) UsePostgres() bool {
	u := strings.ToLower(c.Database.URL)
	return strings.HasPrefix(u, "postgres://") || strings.HasPrefix(u, "postgresql://")
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.Server.Port = getEnv("PORT", "3000")
	cfg.Server.CookieSecure = getBool("COOKIE_SECURE", false)

	cfg.Database.URL = getEnv("DATABASE_URL", "")
	cfg.Database.SQLitePath = getEnv("FORUM_DB_PATH", "forum.db")

	cfg.Session.Lifetime = time.Duration(getInt("SESSION_LIFETIME_HOURS", 24)) * time.Hour
	cfg.BcryptCost = getInt("BCRYPT_COST", 12)

	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		logrus.WithError(err).Warn("invalid LOG_LEVEL, using info")
		level = logrus.InfoLevel
	}
	cfg.LogLevel = level

	return cfg
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		logrus.WithFields(logrus.Fields{"key": key, "value": raw}).Warnf("invalid value, using default %d", fallback)
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		logrus.WithFields(logrus.Fields{"key": key, "value": raw}).Warnf("invalid value, using default %t", fallback)
		return fallback
	}
	return b
}
