package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	InputBucket   string
	OutputBucket  string
	InputPrefix   string
	LookbackHours int
}

// Load reads configuration from environment variables. The job takes no
// command-line arguments; missing required variables abort the run.
func Load() (*Config, error) {
	_ = godotenv.Load()

	inputBucket := os.Getenv("INPUT_BUCKET")
	if inputBucket == "" {
		return nil, fmt.Errorf("missing required environment variable: INPUT_BUCKET")
	}
	outputBucket := os.Getenv("OUTPUT_BUCKET")
	if outputBucket == "" {
		return nil, fmt.Errorf("missing required environment variable: OUTPUT_BUCKET")
	}

	lookback := 24
	if raw := os.Getenv("LOOKBACK_HOURS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid LOOKBACK_HOURS: %q", raw)
		}
		lookback = n
	}

	cfg := &Config{
		InputBucket:   inputBucket,
		OutputBucket:  outputBucket,
		InputPrefix:   getEnv("INPUT_PREFIX", "events/"),
		LookbackHours: lookback,
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
