package config

import (
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/jrsteele09/go-sso/session"
)

// File is the SSO configuration shared by the auth server and its client services (sso.yaml).
type File struct {
	Supabase     SupabaseSection      `yaml:"supabase"`
	SSO          SSOSection           `yaml:"sso"`
	Services     map[string]string    `yaml:"services"`
	Security     SecuritySection      `yaml:"security"`
	UI           UISection            `yaml:"ui"`
	Environments map[string]Overrides `yaml:"environments"`
}

type SupabaseSection struct {
	URL     string `yaml:"url"`
	AnonKey string `yaml:"anonKey"`
}

type SSOSection struct {
	AuthServerURL      string        `yaml:"authServerUrl"`
	Keys               session.Keys  `yaml:",inline"`
	TokenExpiry        time.Duration `yaml:"tokenExpiry"`
	RefreshTokenExpiry time.Duration `yaml:"refreshTokenExpiry"`
}

type SecuritySection struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type UISection struct {
	BrandName    string `yaml:"brandName"`
	PrimaryColor string `yaml:"primaryColor"`
	SuccessColor string `yaml:"successColor"`
	ErrorColor   string `yaml:"errorColor"`
	Locale       string `yaml:"locale"`
}

// Overrides replaces whole values of the base file for one environment.
type Overrides struct {
	AuthServerURL  string            `yaml:"authServerUrl"`
	Services       map[string]string `yaml:"services"`
	AllowedOrigins []string          `yaml:"allowedOrigins"`
}

// DefaultFile is the local development setup: auth server on :3001 and three demo services.
func DefaultFile() File {
	return File{
		SSO: SSOSection{
			AuthServerURL:      "http://localhost:3001",
			Keys:               session.DefaultKeys(),
			TokenExpiry:        time.Hour,
			RefreshTokenExpiry: 7 * 24 * time.Hour,
		},
		Services: map[string]string{
			"auth":     "http://localhost:3001",
			"service1": "http://localhost:3002",
			"service2": "http://localhost:3003",
			"service3": "http://localhost:3004",
		},
		Security: SecuritySection{
			AllowedOrigins: []string{
				"http://localhost:3001",
				"http://localhost:3002",
				"http://localhost:3003",
				"http://localhost:3004",
			},
		},
		UI: UISection{
			BrandName:    "SSO System",
			PrimaryColor: "#4F46E5",
			SuccessColor: "#10B981",
			ErrorColor:   "#EF4444",
			Locale:       "en",
		},
	}
}

// ParseFile decodes data over the defaults, so a file only needs the values it changes.
func ParseFile(data []byte) (File, error) {
	f := DefaultFile()
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, errors.Wrap(err, "failed to parse sso config")
	}
	return f, nil
}

// ForEnvironment applies the overrides registered under env (case sensitive).
func (f File) ForEnvironment(env string) File {
	o, ok := f.Environments[env]
	if !ok {
		return f
	}
	if o.AuthServerURL != "" {
		f.SSO.AuthServerURL = o.AuthServerURL
	}
	if len(o.Services) > 0 {
		f.Services = o.Services
	}
	if len(o.AllowedOrigins) > 0 {
		f.Security.AllowedOrigins = o.AllowedOrigins
	}
	return f
}

// FileSource holds the current sso config, resolved for one environment.
type FileSource struct {
	path string
	env  string

	mu      sync.RWMutex
	current File
}

// StaticFileSource serves f without a backing file.
func StaticFileSource(f File) *FileSource {
	return &FileSource{current: f}
}

// LoadFileSource reads path for environment env. A missing file falls back to the defaults.
func LoadFileSource(path, env string) (*FileSource, error) {
	s := &FileSource{path: path, env: env}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileSource) Path() string {
	return s.path
}

func (s *FileSource) Current() File {
	if s == nil {
		return DefaultFile()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Reload re-reads the file. On error the previous config stays in place.
func (s *FileSource) Reload() error {
	f := DefaultFile()
	if s.path != "" {
		data, err := os.ReadFile(s.path)
		switch {
		case os.IsNotExist(err):
			log.Warn().Str("path", s.path).Msg("sso config file not found, using defaults")
		case err != nil:
			return errors.Wrapf(err, "failed to read %s", s.path)
		default:
			if f, err = ParseFile(data); err != nil {
				return err
			}
		}
	}

	f = f.ForEnvironment(s.env)
	s.mu.Lock()
	s.current = f
	s.mu.Unlock()
	return nil
}
