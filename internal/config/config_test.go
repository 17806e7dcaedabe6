package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-sso/internal/config"
)

const testFile = `
sso:
  authServerUrl: http://localhost:4001
  tokenKey: my_token
services:
  auth: http://localhost:4001
security:
  allowedOrigins:
    - http://localhost:4001/
    - http://localhost:4002
ui:
  brandName: Acme
environments:
  production:
    authServerUrl: https://auth.example.com
    allowedOrigins:
      - https://app.example.com
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sso.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseFile_KeepsDefaultsForMissingValues(t *testing.T) {
	f, err := config.ParseFile([]byte(testFile))
	require.NoError(t, err)

	require.Equal(t, "http://localhost:4001", f.SSO.AuthServerURL)
	require.Equal(t, "my_token", f.SSO.Keys.Token)
	require.Equal(t, "sso_session", f.SSO.Keys.Session)
	require.Equal(t, time.Hour, f.SSO.TokenExpiry)
	require.Equal(t, "Acme", f.UI.BrandName)
	require.Equal(t, "#4F46E5", f.UI.PrimaryColor)
}

func TestParseFile_Invalid(t *testing.T) {
	_, err := config.ParseFile([]byte("sso: [unclosed"))
	require.Error(t, err)
}

func TestForEnvironment(t *testing.T) {
	f, err := config.ParseFile([]byte(testFile))
	require.NoError(t, err)

	prod := f.ForEnvironment("production")
	require.Equal(t, "https://auth.example.com", prod.SSO.AuthServerURL)
	require.Equal(t, []string{"https://app.example.com"}, prod.Security.AllowedOrigins)
	require.Equal(t, f.Services, prod.Services)

	dev := f.ForEnvironment("DEV")
	require.Equal(t, f.SSO.AuthServerURL, dev.SSO.AuthServerURL)
}

func TestConfig_AllowedOrigins(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:9000, http://localhost:9001")
	src, err := config.LoadFileSource(writeFile(t, testFile), "DEV")
	require.NoError(t, err)

	origins := config.New(src).GetAllowedOrigins()
	require.True(t, origins.IsAllowedOrigin("http://localhost:4001"))
	require.True(t, origins.IsAllowedOrigin("http://localhost:9001"))
	require.False(t, origins.IsAllowedOrigin("http://localhost:3002"))
	require.Equal(t, "http://localhost:4001, http://localhost:4002, http://localhost:9000, http://localhost:9001", origins.String())
}

func TestConfig_EnvOverridesFile(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://project.supabase.co")
	t.Setenv("PORT", "8081")
	cfg := config.New(config.StaticFileSource(config.DefaultFile()))

	require.Equal(t, "https://project.supabase.co", cfg.GetSupabaseURL())
	require.Equal(t, config.BackendSupabase, cfg.GetBackend())
	require.Equal(t, ":8081", cfg.GetPort())

	t.Setenv("BACKEND", config.BackendLocal)
	require.Equal(t, config.BackendLocal, cfg.GetBackend())
}

func TestLoadFileSource_MissingFileUsesDefaults(t *testing.T) {
	src, err := config.LoadFileSource(filepath.Join(t.TempDir(), "absent.yaml"), "DEV")
	require.NoError(t, err)
	require.Equal(t, config.DefaultFile().SSO.AuthServerURL, src.Current().SSO.AuthServerURL)
}

func TestReload_KeepsPreviousOnError(t *testing.T) {
	path := writeFile(t, testFile)
	src, err := config.LoadFileSource(path, "DEV")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("sso: [unclosed"), 0o600))
	require.Error(t, src.Reload())
	require.Equal(t, "http://localhost:4001", src.Current().SSO.AuthServerURL)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := writeFile(t, testFile)
	src, err := config.LoadFileSource(path, "DEV")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloaded := make(chan config.File, 1)
	require.NoError(t, src.Watch(ctx, func(f config.File) {
		select {
		case reloaded <- f:
		default:
		}
	}))

	require.NoError(t, os.WriteFile(path, []byte("ui:\n  brandName: Reloaded\n"), 0o600))

	select {
	case f := <-reloaded:
		require.Equal(t, "Reloaded", f.UI.BrandName)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
	require.Equal(t, "Reloaded", config.New(src).GetBrandName())
}
