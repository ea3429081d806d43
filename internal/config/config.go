package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"crew-scheduler/internal/clock"
	"crew-scheduler/internal/storage"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	DriverSQLite   = storage.DriverSQLite
	DriverPostgres = storage.DriverPostgres
)

type Config struct {
	DatabaseDriver   string
	DatabaseURL      string
	HTTPAddr         string
	TimeZone         string
	DayCutoffMinutes int
	AdvanceCron      string
	TelegramToken    string
	TelegramDebug    bool
	AdminChatID      int64
	LogLevel         string
}

var instance *Config
var once sync.Once

// Get returns the process-wide configuration, loading it on first use.
func Get() *Config {
	once.Do(func() {
		if err := godotenv.Load(); err != nil {
			logrus.Debugf("no .env file loaded: %s", err.Error())
		}

		cfg := FromEnv()
		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("invalid configuration: %s", err.Error())
		}
		instance = cfg
	})

	return instance
}

// FromEnv reads the configuration from the environment without validating it.
func FromEnv() *Config {
	return &Config{
		DatabaseDriver:   strings.ToLower(getEnv("DATABASE_DRIVER", DriverSQLite)),
		DatabaseURL:      getEnv("DATABASE_URL", "scheduler.db"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		TimeZone:         getEnv("TIME_ZONE", "Asia/Jakarta"),
		DayCutoffMinutes: int(getEnvAsInt("DAY_CUTOFF_MINUTES", 5)),
		AdvanceCron:      getEnv("ADVANCE_CRON", "* * * * *"),
		TelegramToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramDebug:    getEnvAsBool("TELEGRAM_DEBUG", false),
		AdminChatID:      getEnvAsInt("ADMIN_CHAT_ID", 0),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}
}

func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if _, err := c.Clock(); err != nil {
		return err
	}
	if _, err := cron.ParseStandard(c.AdvanceCron); err != nil {
		return fmt.Errorf("invalid ADVANCE_CRON %q: %w", c.AdvanceCron, err)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return nil
}

// Clock builds the date authority for the configured zone and cutoff.
func (c *Config) Clock() (clock.Authority, error) {
	return clock.NewAuthority(c.TimeZone, c.DayCutoffMinutes)
}

// BotEnabled reports whether the Telegram admin bot should be started.
func (c *Config) BotEnabled() bool {
	return c.TelegramToken != ""
}

func getEnv(key string, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}

	return defaultVal
}

func getEnvAsInt(name string, defaultVal int64) int64 {
	valStr := getEnv(name, "")
	if val, err := strconv.ParseInt(valStr, 10, 64); err == nil {
		return val
	}

	return defaultVal
}

func getEnvAsBool(name string, defaultVal bool) bool {
	valStr := getEnv(name, "")
	if val, err := strconv.ParseBool(valStr); err == nil {
		return val
	}

	return defaultVal
}
