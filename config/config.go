package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port        string
	CorsOrigins string

	DBDriver   string // postgres, mysql or sqlite
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	JWTKey string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers []string
	KafkaTopic   string

	SendGridApiKey string
	EmailSender    string
	EmailFromName  string

	AccountServiceURL   string // empty means the local users table is the directory
	AccountServiceToken string

	StreamHeartbeatSeconds int
	MessageRateLimit       int // per identity per window, 0 disables
	MessageRateWindow      int // seconds
	TicketAutoCloseDays    int // 0 disables the scheduler
	TicketAutoCloseCron    string
}

// AppConfig is a global variable to access configuration
var AppConfig *Config

// LoadConfig initializes configuration from environment variables or defaults
func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found. Using system environment variables.")
	}

	AppConfig = &Config{
		Port:        getEnv("PORT", "3000"),
		CorsOrigins: getEnv("CORS_ORIGINS", "*"),

		DBDriver:   strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "storefront"),

		JWTKey: getEnv("JWT_SECRET_KEY", "defaultSecret"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		KafkaBrokers: getEnvList("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "support-events"),

		SendGridApiKey: getEnv("SENDGRID_API_KEY", ""),
		EmailSender:    getEnv("EMAIL_SENDER", "support@example.com"),
		EmailFromName:  getEnv("EMAIL_FROM_NAME", "Customer Support"),

		AccountServiceURL:   getEnv("ACCOUNT_SERVICE_URL", ""),
		AccountServiceToken: getEnv("ACCOUNT_SERVICE_TOKEN", ""),

		StreamHeartbeatSeconds: getEnvInt("STREAM_HEARTBEAT_SECONDS", 25),
		MessageRateLimit:       getEnvInt("MESSAGE_RATE_LIMIT", 30),
		MessageRateWindow:      getEnvInt("MESSAGE_RATE_WINDOW_SECONDS", 60),
		TicketAutoCloseDays:    getEnvInt("TICKET_AUTO_CLOSE_DAYS", 7),
		TicketAutoCloseCron:    getEnv("TICKET_AUTO_CLOSE_CRON", "0 3 * * *"),
	}

	// Validate critical configuration
	if AppConfig.JWTKey == "defaultSecret" {
		log.Println("Warning: Using default JWT_SECRET_KEY. Update it in your environment.")
	}
	switch AppConfig.DBDriver {
	case "postgres", "mysql", "sqlite":
	default:
		log.Printf("Warning: unknown DB_DRIVER %q, falling back to postgres.", AppConfig.DBDriver)
		AppConfig.DBDriver = "postgres"
	}
	if AppConfig.StreamHeartbeatSeconds <= 0 {
		AppConfig.StreamHeartbeatSeconds = 25
	}

	return AppConfig
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an environment variable as an integer or returns the default integer value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to int: %v", key, err)
		return defaultValue
	}
	return intValue
}

// getEnvList splits a comma separated variable, dropping empty entries
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
