package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Core
	DataDir      string
	StoreBackend string
	Version      string

	// Dispatch
	DispatchTimeout time.Duration
	StreamPath      string

	// Ops API
	EnableOpsAPI bool
	OpsPort      string
	Username     string
	Password     string
	JwtSecret    string

	// Logging
	LogLevel string
}

// LoadConfig loads configuration from .env file, environment variables, or defaults
// Priority: environment variables > .env file > default values
func LoadConfig(version string) *Config {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	return &Config{
		DataDir:      getEnv("RELAY_DATA_DIR", "data"),
		StoreBackend: getEnv("RELAY_STORE_BACKEND", "json"),

		DispatchTimeout: time.Duration(getEnvAsInt("RELAY_DISPATCH_TIMEOUT", 10)) * time.Second,
		StreamPath:      getEnv("RELAY_STREAM_PATH", "/ws"),

		EnableOpsAPI: getEnvAsBool("RELAY_ENABLE_OPS_API", true),
		OpsPort:      getEnv("RELAY_OPS_PORT", "3000"),
		Username:     getEnv("RELAY_USERNAME", "admin"),
		Password:     getEnv("RELAY_PASSWORD", "admin"),
		JwtSecret:    getEnv("RELAY_JWT_SECRET", "secret"),
		Version:      version,

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		fmt.Printf("Warning: Invalid value for %s: %s, using default: %d\n", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		fmt.Printf("Warning: Invalid value for %s: %s, using default: %t\n", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}
