package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	portEnvVar      = "PORT"
	appNameVar      = "APP_NAME"
	envVar          = "ENV"
	baseURLVar      = "BASE_URL"
	redisAddrVar    = "REDIS_ADDR"
	redisPassVar    = "REDIS_PASSWORD"
	redisClusterVar = "REDIS_CLUSTER"
	dbPathVar       = "DB_PATH"
	ssoConfigVar    = "SSO_CONFIG"
)

// LoadDotEnv reads a .env file into the process environment when one exists.
func LoadDotEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		log.Info().Msg("No .env file found, using system environment variables")
	}
}

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "3001")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Go SSO Server")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv(envVar)
	if env == "" {
		return "DEV"
	}
	return env
}

// GetBaseURL returns the externally visible URL of the auth server (e.g. "https://auth.example.com").
// It is the token issuer and the base of every endpoint in the discovery document.
func (EnvVars) GetBaseURL() string {
	return strings.TrimRight(GetEnv(baseURLVar, "http://localhost:3001"), "/")
}

// GetRedisAddrs is empty when Redis is not configured; the server then keeps state in memory.
func (EnvVars) GetRedisAddrs() []string {
	v := GetEnv(redisAddrVar, "")
	if v == "" {
		return nil
	}
	return strings.Split(v, ",")
}

func (EnvVars) GetRedisPassword() string {
	return GetEnv(redisPassVar, "")
}

func (EnvVars) GetRedisCluster() bool {
	return GetEnvBool(redisClusterVar, false)
}

// GetDBPath is the sqlite file of the local backend. Empty keeps users in memory.
func (EnvVars) GetDBPath() string {
	return GetEnv(dbPathVar, "")
}

func (EnvVars) GetSSOConfigPath() string {
	return GetEnv(ssoConfigVar, "sso.yaml")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvBool(envVar string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(envVar)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}
