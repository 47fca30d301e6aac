package utils

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

func GetEnvVarWithDefault(envVar, defaultValue string) string {
	value, found := os.LookupEnv(envVar)
	if !found {
		return defaultValue
	}
	return value
}

func GetEnvIntWithDefault(envVar string, defaultValue int) (int, error) {
	value, found := os.LookupEnv(envVar)
	if !found {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("env var '%s' is not an integer: %q", envVar, value)
	}
	return parsed, nil
}

func GetEnvFloatWithDefault(envVar string, defaultValue float64) (float64, error) {
	value, found := os.LookupEnv(envVar)
	if !found {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("env var '%s' is not a number: %q", envVar, value)
	}
	return parsed, nil
}

func GetEnvDurationWithDefault(envVar string, defaultValue time.Duration) (time.Duration, error) {
	value, found := os.LookupEnv(envVar)
	if !found {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("env var '%s' is not a duration: %q", envVar, value)
	}
	return parsed, nil
}

func GetEnvBoolWithDefault(envVar string, defaultValue bool) (bool, error) {
	value, found := os.LookupEnv(envVar)
	if !found {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("env var '%s' is not a boolean: %q", envVar, value)
	}
	return parsed, nil
}
