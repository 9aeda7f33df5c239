package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port        string
	CORSOrigins []string
	LogLevel    string
	LogFormat   string

	// Database
	DBDriver   string // sqlite or postgres
	DBPath     string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Bulk sending
	SendDelay          time.Duration
	DefaultCountryCode string

	// WhatsApp Web browser session
	WhatsAppEnabled   bool
	Headless          bool
	ChromePath        string
	UserDataDir       string
	PageLoadTimeout   time.Duration
	SendButtonTimeout time.Duration
	SelectorsFile     string
	PrintQR           bool
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		logrus.Warn("No .env file loaded, using process environment")
	}

	return &Config{
		Port:        getEnv("PORT", "8001"),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"*"}),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),

		DBDriver:   strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBPath:     getEnv("DB_PATH", "./messenger.db"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "whatsapp_messenger"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		SendDelay:          getEnvDuration("SEND_DELAY", 2*time.Second),
		DefaultCountryCode: getEnv("DEFAULT_COUNTRY_CODE", "91"),

		WhatsAppEnabled:   getEnvBool("WHATSAPP_ENABLED", true),
		Headless:          getEnvBool("CHROME_HEADLESS", true),
		ChromePath:        getEnv("CHROME_PATH", ""),
		UserDataDir:       getEnv("CHROME_USER_DATA_DIR", "/tmp/whatsapp-session"),
		PageLoadTimeout:   getEnvDuration("PAGE_LOAD_TIMEOUT", 3*time.Second),
		SendButtonTimeout: getEnvDuration("SEND_BUTTON_TIMEOUT", 10*time.Second),
		SelectorsFile:     getEnv("SELECTORS_FILE", ""),
		PrintQR:           getEnvBool("PRINT_QR", true),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		logrus.WithField("key", key).Warnf("Invalid boolean %q, using %t", value, fallback)
		return fallback
	}
	return b
}

// getEnvDuration accepts Go duration strings ("1500ms", "2s") or a bare
// number of seconds ("2", "0.5").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil && d >= 0 {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil && secs >= 0 {
		return time.Duration(secs * float64(time.Second))
	}
	logrus.WithField("key", key).Warnf("Invalid duration %q, using %s", value, fallback)
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
