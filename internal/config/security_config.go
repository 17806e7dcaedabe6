package config

import (
	"strconv"
	"time"
)

type SecurityConfig interface {
	GetMaxSessionAge() time.Duration
	GetEnableRateLimiting() bool
	GetFormRateLimit() float64
	GetFormRateBurst() int
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetMaxSessionAge bounds how long a browser's login session is kept server side.
func (Security) GetMaxSessionAge() time.Duration {
	return 7 * 24 * time.Hour
}

func (Security) GetEnableRateLimiting() bool {
	return GetEnvBool("RATE_LIMIT", true)
}

// GetFormRateLimit is the sustained number of form submissions per second allowed per client IP
func (Security) GetFormRateLimit() float64 {
	v, err := strconv.ParseFloat(GetEnv("RATE_LIMIT_PER_SECOND", "1"), 64)
	if err != nil || v <= 0 {
		return 1
	}
	return v
}

func (Security) GetFormRateBurst() int {
	v, err := strconv.Atoi(GetEnv("RATE_LIMIT_BURST", "5"))
	if err != nil || v <= 0 {
		return 5
	}
	return v
}
