package server

import (
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/jrsteele09/go-sso/handshake"
)

// sessionCookieName is the HttpOnly cookie identifying a browser to the auth server
const sessionCookieName = "sso_sid"

// browserSession returns the browser's session id, issuing a new cookie when it has none.
func (s *Server) browserSession(w http.ResponseWriter, r *http.Request) string {
	if sid, ok := existingSession(r); ok {
		return sid
	}
	sid := uuid.NewString()
	s.setSessionCookie(w, r, sid, int(s.config.GetMaxSessionAge().Seconds()))
	return sid
}

func existingSession(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	if _, err := uuid.Parse(cookie.Value); err != nil {
		return "", false
	}
	return cookie.Value, true
}

// setSessionCookie writes the session cookie. Over https it is SameSite=None so the
// silent-auth frame embedded by another site still receives it.
func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, sid string, maxAge int) {
	isSecure := getScheme(r) == "https"
	sameSite := http.SameSiteLaxMode
	if isSecure {
		sameSite = http.SameSiteNoneMode
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: sameSite,
		MaxAge:   maxAge,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	s.setSessionCookie(w, r, "", -1)
}

// redirectSuccess sends a form post on with 303 and anything else with 302
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	status := http.StatusFound
	if r.Method == http.MethodPost {
		status = http.StatusSeeOther
	}
	http.Redirect(w, r, path, status)
}

// formURL is the login page showing form, keeping the SSO request parameters
func formURL(req handshake.Request, form handshake.Form) string {
	q := req.Query()
	if form != handshake.FormLogin {
		q.Set("form", form.String())
	}
	if len(q) == 0 {
		return RouteLogin
	}
	return RouteLogin + "?" + q.Encode()
}

// formForPath maps a form submission route to the form it came from
func formForPath(path string) handshake.Form {
	switch path {
	case RouteAuthSignup:
		return handshake.FormSignup
	case RouteAuthForgotPassword:
		return handshake.FormForgotPassword
	default:
		return handshake.FormLogin
	}
}

// originOf returns scheme://host of raw, or "" when raw is not an absolute URL
func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
