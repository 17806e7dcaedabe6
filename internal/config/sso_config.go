package config

import (
	"strings"
	"time"

	"github.com/jrsteele09/go-sso/session"
	"github.com/jrsteele09/go-sso/token"
)

const (
	backendVar         = "BACKEND"
	supabaseURLVar     = "SUPABASE_URL"
	supabaseAnonKeyVar = "SUPABASE_ANON_KEY"
	tokenSigningVar    = "TOKEN_SIGNING"
	tokenSigningKeyVar = "TOKEN_SIGNING_KEY"
	tokenKeyFileVar    = "TOKEN_RSA_KEY_FILE"
	tokenKeyIDVar      = "TOKEN_KEY_ID"
	emailConfirmVar    = "REQUIRE_EMAIL_CONFIRMATION"
	localeVar          = "LOCALE"
	BackendSupabase    = "supabase"
	BackendLocal       = "local"
)

type SSO struct {
	src *FileSource
}

var _ SSOConfig = SSO{}

func (s SSO) GetAuthServerURL() string {
	return s.src.Current().SSO.AuthServerURL
}

func (s SSO) GetSessionKeys() session.Keys {
	return s.src.Current().SSO.Keys
}

func (s SSO) GetTokenExpiry() time.Duration {
	return s.src.Current().SSO.TokenExpiry
}

func (s SSO) GetRefreshTokenExpiry() time.Duration {
	return s.src.Current().SSO.RefreshTokenExpiry
}

func (s SSO) GetServices() map[string]string {
	return s.src.Current().Services
}

type Backend struct {
	src *FileSource
}

var _ BackendConfig = Backend{}

// GetBackend picks the identity backend. Supabase is used when a project URL is configured.
func (b Backend) GetBackend() string {
	def := BackendLocal
	if b.GetSupabaseURL() != "" {
		def = BackendSupabase
	}
	return GetEnv(backendVar, def)
}

func (b Backend) GetSupabaseURL() string {
	return GetEnv(supabaseURLVar, b.src.Current().Supabase.URL)
}

func (b Backend) GetSupabaseAnonKey() string {
	return GetEnv(supabaseAnonKeyVar, b.src.Current().Supabase.AnonKey)
}

// GetTokenSigning is one of the token.Signing* modes. A signing key alone selects hs256.
func (b Backend) GetTokenSigning() string {
	def := token.SigningPlaceholder
	if b.GetTokenSigningKey() != "" {
		def = token.SigningHMAC
	}
	return strings.ToLower(GetEnv(tokenSigningVar, def))
}

func (Backend) GetTokenSigningKey() string {
	return GetEnv(tokenSigningKeyVar, "")
}

// GetTokenKeyFile is where the rs256 private key is kept. Empty keeps the key in memory only.
func (Backend) GetTokenKeyFile() string {
	return GetEnv(tokenKeyFileVar, "")
}

func (Backend) GetTokenKeyID() string {
	return GetEnv(tokenKeyIDVar, "")
}

func (Backend) GetRequireEmailConfirmation() bool {
	return GetEnvBool(emailConfirmVar, false)
}

type UI struct {
	src *FileSource
}

var _ UIConfig = UI{}

func (u UI) GetBrandName() string {
	return u.src.Current().UI.BrandName
}

func (u UI) GetPrimaryColor() string {
	return u.src.Current().UI.PrimaryColor
}

func (u UI) GetSuccessColor() string {
	return u.src.Current().UI.SuccessColor
}

func (u UI) GetErrorColor() string {
	return u.src.Current().UI.ErrorColor
}

func (u UI) GetLocale() string {
	return GetEnv(localeVar, u.src.Current().UI.Locale)
}
