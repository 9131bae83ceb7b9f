package config

import (
	"os"
	"strconv"

	"github.com/c2h5oh/datasize"
	"github.com/joho/godotenv"
)

type Config struct {
	Port                string
	DataDir             string
	MaxConcurrentBuilds int
	MaxSourceSize       int64
	JwtSecret           string
	PackageIndexPath    string
}

// Load loads configuration from environment variables
// Automatically loads .env file if present
func Load() *Config {
	// Try to load .env file (fail silently if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		DataDir:             getEnv("DATA_DIR", "/var/lib/batchjob"),
		MaxConcurrentBuilds: getEnvInt("MAX_CONCURRENT_BUILDS", 2),
		MaxSourceSize:       getEnvSize("MAX_SOURCE_SIZE", "256MB"),
		JwtSecret:           getEnv("JWT_SECRET", ""),
		PackageIndexPath:    getEnv("PACKAGE_INDEX", ""),
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvSize(key, defaultValue string) int64 {
	raw := getEnv(key, defaultValue)
	var size datasize.ByteSize
	if err := size.UnmarshalText([]byte(raw)); err != nil {
		size = datasize.MustParseString(defaultValue)
	}
	return int64(size.Bytes())
}
