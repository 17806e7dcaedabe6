// Package server is the auth server HTTP surface: the login page and its forms, the
// silent-auth frame, logout, and the JSON API used by client applications.
package server

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-sso/handshake"
	"github.com/jrsteele09/go-sso/internal/config"
	"github.com/jrsteele09/go-sso/internal/metrics"
	"github.com/jrsteele09/go-sso/internal/ratelimit"
	"github.com/jrsteele09/go-sso/token"
)

type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	mux       *http.ServeMux
	routes    []string
	templates map[string]*template.Template
	config    config.Config
	handshake *handshake.Controller
	signer    token.Signer
	metrics   *metrics.Metrics
	limiter   *ratelimit.Limiter
	cors      *cors.Cors
}

type Option func(*Server)

// WithSigner publishes the signer's algorithm and, for RS256, its keys
func WithSigner(signer token.Signer) Option {
	return func(s *Server) {
		s.signer = signer
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithRateLimiter limits form submissions per client IP
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

func New(config config.Config, controller *handshake.Controller, opts ...Option) (*Server, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to parse templates: %w", err)
	}

	s := &Server{
		env:       config.GetEnv(),
		mux:       http.NewServeMux(),
		templates: templates,
		config:    config,
		handshake: controller,
		signer:    token.NewPlaceholderSigner(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cors = cors.New(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			return s.config.GetAllowedOrigins().IsAllowedOrigin(origin)
		},
		AllowedMethods:   splitList(config.GetAllowedMethods()),
		AllowedHeaders:   splitList(config.GetAllowedHeaders()),
		AllowCredentials: true,
		MaxAge:           86400,
	})

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		method, path, found := strings.Cut(route, " ")
		if !found {
			method, path = "", route
		}
		logRoute(method, path)
	}
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", colourMethod(method), path)
}

func logError(method, path, msg string) {
	log.Error().Msgf("[%-19s] %s %s", colourMethod(method), path, Red+msg+ResetColor)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
