package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-sso/backend"
	"github.com/jrsteele09/go-sso/handshake"
	"github.com/jrsteele09/go-sso/ssoapi"
	"github.com/jrsteele09/go-sso/token"
)

// SilentAuthPageData is posted to the parent frame by silent_auth.html
type SilentAuthPageData struct {
	Response     ssoapi.SilentAuthResponse
	TargetOrigin string
}

// SilentAuthHandler answers the hidden frame of a client application. Browsers get a page
// that posts the answer to the parent frame. Clients asking for JSON get the answer itself.
// Only an allowed client_id receives a token, and the message is addressed to that origin.
func (s *Server) SilentAuthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := handshake.ParseRequest(r.URL.Query())
		resp := ssoapi.SilentAuthResponse{Type: ssoapi.MessageTypeSilentAuthResponse}
		target := "*"

		switch sid, ok := existingSession(r); {
		case !s.config.GetAllowedOrigins().IsAllowedOrigin(req.ClientID):
			log.Warn().Str("client_id", req.ClientID).Msg("silent auth from unknown client")
			resp.Error = "unauthorized_client"
		case !ok:
			target = req.ClientID
		default:
			target = req.ClientID
			resp = s.handshake.SilentAuth(r.Context(), sid, req)
		}

		if strings.Contains(r.Header.Get("Accept"), contentTypeJSON) {
			writeJSON(w, http.StatusOK, resp)
			return
		}
		s.render(w, http.StatusOK, "silent_auth.html", SilentAuthPageData{Response: resp, TargetOrigin: target})
	}
}

// LogoutHandler ends the browser's session and returns to redirect_uri when its origin
// is allowed, otherwise to the login page.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sid, ok := existingSession(r); ok {
			if err := s.handshake.Logout(r.Context(), sid); err != nil {
				log.Err(err).Msg("Logout: failed to clear session")
			}
		}
		s.clearSessionCookie(w, r)

		target := RouteLogin
		if redirect := r.URL.Query().Get(ssoapi.ParamRedirectURI); redirect != "" {
			if s.config.GetAllowedOrigins().IsAllowedOrigin(originOf(redirect)) {
				target = redirect
			} else {
				log.Warn().Str("redirect_uri", redirect).Msg("Logout: redirect to unknown origin refused")
			}
		}
		http.Redirect(w, r, target, http.StatusFound)
	}
}

// APILogoutHandler is the best-effort logout notification sent by client applications
func (s *Server) APILogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSONError(w, "invalid_request", "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body ssoapi.LogoutRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeJSONError(w, "invalid_request", "malformed body", http.StatusBadRequest)
				return
			}
		}

		if sid, ok := existingSession(r); ok {
			if err := s.handshake.Logout(r.Context(), sid); err != nil {
				log.Err(err).Str("client_id", body.ClientID).Msg("API logout failed")
				writeJSONError(w, "server_error", "logout failed", http.StatusInternalServerError)
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// APIRefreshHandler exchanges a refresh token for a new access token
func (s *Server) APIRefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSONError(w, "invalid_request", "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body ssoapi.RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, "invalid_request", "malformed body", http.StatusBadRequest)
			return
		}
		if body.RefreshToken == "" {
			writeJSONError(w, "invalid_request", "refresh_token is required", http.StatusBadRequest)
			return
		}

		resp, err := s.handshake.Refresh(r.Context(), body.RefreshToken, body.ClientID)
		if err != nil {
			if !backend.IsRejection(err) {
				log.Err(err).Msg("Refresh: backend failure")
				writeJSONError(w, "server_error", "refresh failed", http.StatusBadGateway)
				return
			}
			log.Warn().Err(err).Str("client_id", body.ClientID).Msg("Refresh: rejected")
			writeJSONError(w, "invalid_grant", "refresh token is invalid or expired", http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) keySet() token.KeySetProvider {
	ks, _ := s.signer.(token.KeySetProvider)
	return ks
}

// WellKnownOpenIDConfig publishes the issuer and the SSO endpoints
func (s *Server) WellKnownOpenIDConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		issuer := s.handshake.Issuer()
		d := ssoapi.Discovery{
			Issuer:                 issuer,
			AuthorizationEndpoint:  issuer + RouteLogin,
			TokenEndpoint:          issuer + RouteAPIRefresh,
			EndSessionEndpoint:     issuer + RouteLogout,
			SilentAuthEndpoint:     issuer + RouteSilentAuth,
			RefreshEndpoint:        issuer + RouteAPIRefresh,
			LogoutNotifyEndpoint:   issuer + RouteAPILogout,
			ResponseTypesSupported: []string{ssoapi.ResponseTypeToken},
			ScopesSupported:        strings.Fields(ssoapi.DefaultScope),
			SubjectTypesSupported:  []string{"public"},
			IDTokenSigningAlgs:     []string{s.signer.Algorithm()},
		}
		if s.keySet() != nil {
			d.JWKSURI = issuer + RouteWellKnownJWKS
		}

		w.Header().Set("Cache-Control", "public, max-age=3600")
		writeJSON(w, http.StatusOK, d)
	}
}

// JWKS returns the JSON Web Key Set used to validate tokens
func (s *Server) JWKS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ks := s.keySet()
		if ks == nil {
			writeJSONError(w, "not_found", "tokens are not signed with a published key", http.StatusNotFound)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=3600")
		writeJSON(w, http.StatusOK, ks.JWKS())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes an OAuth2 style error response
func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, ssoapi.ErrorResponse{Error: errorCode, ErrorDescription: description})
}
