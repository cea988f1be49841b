package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// GetEnvString returns the trimmed value of envName or an error when it is unset or blank.
func GetEnvString(envName string) (string, error) {
	if envName == "" {
		return "", errors.New("environment variable name cannot be empty")
	}
	v := strings.TrimSpace(os.Getenv(envName))
	if v == "" {
		return "", errors.New("environment variable '" + envName + "' has an empty value")
	}
	return v, nil
}

func GetEnvStringOrDefault(envName, defaultValue string) string {
	v, err := GetEnvString(envName)
	if err != nil {
		return defaultValue
	}
	return v
}

func GetEnvFloatOrDefault(envName string, defaultValue float64) float64 {
	v, err := GetEnvString(envName)
	if err != nil {
		return defaultValue
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func GetEnvIntOrDefault(envName string, defaultValue int) int {
	v, err := GetEnvString(envName)
	if err != nil {
		return defaultValue
	}
	i, err := strconv.ParseInt(v, 0, 0)
	if err != nil {
		return defaultValue
	}
	return int(i)
}

func GetEnvDurationOrDefault(envName string, defaultValue time.Duration) time.Duration {
	v, err := GetEnvString(envName)
	if err != nil {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}
