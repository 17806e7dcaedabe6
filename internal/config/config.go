package config

import (
	"time"

	"github.com/jrsteele09/go-sso/session"
)

type Config interface {
	EnvConfig
	CorsConfig
	SSOConfig
	BackendConfig
	UIConfig
	SecurityConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetRedisAddrs() []string
	GetRedisPassword() string
	GetRedisCluster() bool
	GetDBPath() string
	GetSSOConfigPath() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type SSOConfig interface {
	GetAuthServerURL() string
	GetSessionKeys() session.Keys
	GetTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetServices() map[string]string
}

type BackendConfig interface {
	GetBackend() string
	GetSupabaseURL() string
	GetSupabaseAnonKey() string
	GetTokenSigning() string
	GetTokenSigningKey() string
	GetTokenKeyFile() string
	GetTokenKeyID() string
	GetRequireEmailConfirmation() bool
}

type UIConfig interface {
	GetBrandName() string
	GetPrimaryColor() string
	GetSuccessColor() string
	GetErrorColor() string
	GetLocale() string
}

type mainConfig struct {
	EnvVars
	Cors
	SSO
	Backend
	UI
	Security
}

// New builds the server config. Values that live in the shared SSO file are read from src
// on every call, so a reload is picked up without restarting.
func New(src *FileSource) Config {
	return mainConfig{
		Cors:    Cors{src: src},
		SSO:     SSO{src: src},
		Backend: Backend{src: src},
		UI:      UI{src: src},
	}
}
