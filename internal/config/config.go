package config

import (
	"fmt"     // For DSN formatting
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"strings" // For splitting list values
	"time"    // For TTL durations

	"github.com/joho/godotenv" // For loading .env files
)

// Config holds the application configuration
type Config struct {
	AppPort         string        // Application port
	DBDriver        string        // Database driver: mysql, postgres or sqlite
	DBUser          string        // Database user
	DBPassword      string        // Database password
	DBHost          string        // Database host
	DBPort          string        // Database port
	DBName          string        // Database name (file path for sqlite)
	JWTSecret       string        // JWT secret key
	AccessTokenTTL  time.Duration // Lifetime of access tokens
	RefreshTokenTTL time.Duration // Lifetime of refresh tokens
	RedisAddr       string        // Redis server address
	RedisPass       string        // Redis password
	RedisDB         int           // Redis database number
	CacheTTL        time.Duration // TTL of cached read models
	KafkaBrokers    []string      // Kafka brokers, empty disables event publishing
	KafkaTopic      string        // Topic domain events are written to
	LogLevel        string        // Logrus level name
	IsProd          bool          // Is production environment
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	return &Config{
		AppPort:         getEnv("APP_PORT", "8080"),
		DBDriver:        strings.ToLower(getEnv("DB_DRIVER", "mysql")),
		DBUser:          os.Getenv("DB_USER"),
		DBPassword:      os.Getenv("DB_PASSWORD"),
		DBHost:          getEnv("DB_HOST", "127.0.0.1"),
		DBPort:          os.Getenv("DB_PORT"),
		DBName:          os.Getenv("DB_NAME"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		AccessTokenTTL:  time.Duration(getInt("ACCESS_TOKEN_TTL_MIN", 60)) * time.Minute,
		RefreshTokenTTL: time.Duration(getInt("REFRESH_TOKEN_TTL_HOURS", 168)) * time.Hour,
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPass:       os.Getenv("REDIS_PASS"),
		RedisDB:         redisDB,
		CacheTTL:        time.Duration(getInt("CACHE_TTL_SEC", 60)) * time.Second,
		KafkaBrokers:    splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "marketplace_events"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		IsProd:          os.Getenv("IS_PROD") == "true", // Is production environment
	}
}

// DSN builds the data source name for the configured driver
func (c *Config) DSN() string {
	switch c.DBDriver {
	case "postgres":
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
	case "sqlite":
		return c.DBName
	default:
		return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true"
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
