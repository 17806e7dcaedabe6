package server

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-sso/handshake"
	"github.com/jrsteele09/go-sso/users"
)

type brandData struct {
	Name         string
	PrimaryColor string
	SuccessColor string
	ErrorColor   string
}

type hiddenField struct {
	Name  string
	Value string
}

// formLinks are the navigation links between the forms
type formLinks struct {
	Signup         string
	Login          string
	ForgotPassword string
	BackToLogin    string
}

// refreshData makes the page move on to URL after a delay
type refreshData struct {
	After int
	URL   string
}

// LoginPageData contains data for rendering the login page
type LoginPageData struct {
	AppName           string
	Brand             brandData
	Locale            string
	Form              string
	Hidden            []hiddenField
	Message           *handshake.Message
	DismissMillis     int64
	Email             string
	Links             formLinks
	Refresh           *refreshData
	MinPasswordLength int
}

type serviceLink struct {
	Name string
	URL  string
}

// DashboardPageData is the signed-in user shown on the dashboard
type DashboardPageData struct {
	AppName   string
	Brand     brandData
	Locale    string
	Refresh   *refreshData
	Name      string
	Email     string
	ExpiresAt string
	Services  []serviceLink
}

func (s *Server) brand() brandData {
	return brandData{
		Name:         s.config.GetBrandName(),
		PrimaryColor: s.config.GetPrimaryColor(),
		SuccessColor: s.config.GetSuccessColor(),
		ErrorColor:   s.config.GetErrorColor(),
	}
}

func (s *Server) formPage(req handshake.Request, form handshake.Form, msg *handshake.Message, email string) LoginPageData {
	data := LoginPageData{
		AppName: s.config.GetAppName(),
		Brand:   s.brand(),
		Locale:  s.handshake.Locale(),
		Form:    form.String(),
		Message: msg,
		Email:   email,
		Links: formLinks{
			Signup:         formURL(req, handshake.Transition(form, handshake.NavShowSignup)),
			Login:          formURL(req, handshake.Transition(form, handshake.NavShowLogin)),
			ForgotPassword: formURL(req, handshake.Transition(form, handshake.NavShowForgotPassword)),
			BackToLogin:    formURL(req, handshake.Transition(form, handshake.NavBackToLogin)),
		},
		MinPasswordLength: users.MinPasswordLength,
	}
	if msg != nil {
		data.DismissMillis = msg.DismissAfter.Milliseconds()
	}

	q := req.Query()
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		data.Hidden = append(data.Hidden, hiddenField{Name: k, Value: q.Get(k)})
	}
	return data
}

// renderOutcome redirects at once for an immediate redirect. Otherwise it shows the form
// with the message and, when the outcome moves on after a delay, a timed refresh.
func (s *Server) renderOutcome(w http.ResponseWriter, r *http.Request, req handshake.Request, out handshake.Outcome, email string) {
	if out.Redirect != "" && out.Delay == 0 {
		redirectSuccess(w, r, out.Redirect)
		return
	}

	data := s.formPage(req, out.Form, out.Message, email)
	switch {
	case out.Redirect != "":
		data.Refresh = &refreshData{After: seconds(out.Delay), URL: out.Redirect}
	case out.SwitchTo != nil:
		data.Refresh = &refreshData{After: seconds(out.Delay), URL: formURL(req, *out.SwitchTo)}
	}

	status := http.StatusOK
	if out.Message != nil && out.Message.Kind == handshake.KindError {
		status = http.StatusUnprocessableEntity
	}
	s.render(w, status, "login.html", data)
}

func seconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}

// IndexHandler sends visitors to the login page, keeping any SSO parameters
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := RouteLogin
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, http.StatusFound)
	}
}

// LoginPageHandler displays the login page (GET /login). A browser that is already signed
// in goes straight back to the client application.
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		req := handshake.ParseRequest(q)
		sid := s.browserSession(w, r)

		out := s.handshake.PageLoad(r.Context(), sid, req, handshake.ParseForm(q.Get("form")))
		s.renderOutcome(w, r, req, out, q.Get("email"))
	}
}

// LoginSubmissionHandler processes the login form submission
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		req := handshake.ParseRequest(r.PostForm)
		email := r.PostFormValue("email")
		sid := s.browserSession(w, r)

		out := s.handshake.Login(r.Context(), sid, req, email, r.PostFormValue("password"))
		s.renderOutcome(w, r, req, out, email)
	}
}

// SignupSubmissionHandler processes the signup form submission
func (s *Server) SignupSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		req := handshake.ParseRequest(r.PostForm)
		form := handshake.SignupForm{
			Email:           r.PostFormValue("email"),
			Password:        r.PostFormValue("password"),
			PasswordConfirm: r.PostFormValue("password_confirm"),
			Name:            r.PostFormValue("name"),
			AgreeTerms:      r.PostFormValue("agree_terms") != "",
		}
		sid := s.browserSession(w, r)

		out := s.handshake.Signup(r.Context(), sid, req, form)
		s.renderOutcome(w, r, req, out, form.Email)
	}
}

// ForgotPasswordSubmissionHandler asks for a reset email linking back to the configured
// issuer. The Host header is never used to build the link.
func (s *Server) ForgotPasswordSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		req := handshake.ParseRequest(r.PostForm)
		email := r.PostFormValue("email")

		out := s.handshake.ForgotPassword(r.Context(), email, strings.TrimSuffix(s.handshake.Issuer(), "/"))
		s.renderOutcome(w, r, req, out, email)
	}
}

// DashboardHandler shows who is signed in, or sends the browser to the login page
func (s *Server) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, ok := existingSession(r)
		if !ok {
			redirectSuccess(w, r, RouteLogin)
			return
		}
		summary, err := s.handshake.Summary(r.Context(), sid)
		if err != nil {
			log.Err(err).Msg("Failed to read session summary")
		}
		if summary == nil {
			redirectSuccess(w, r, RouteLogin)
			return
		}

		data := DashboardPageData{
			AppName: s.config.GetAppName(),
			Brand:   s.brand(),
			Locale:  s.handshake.Locale(),
			Name:    summary.User.Name,
			Email:   summary.User.Email,
		}
		if summary.ExpiresAt > 0 {
			data.ExpiresAt = time.Unix(summary.ExpiresAt, 0).UTC().Format(time.RFC1123)
		}
		for name, u := range s.config.GetServices() {
			data.Services = append(data.Services, serviceLink{Name: name, URL: u})
		}
		sort.Slice(data.Services, func(i, j int) bool { return data.Services[i].Name < data.Services[j].Name })

		s.render(w, http.StatusOK, "dashboard.html", data)
	}
}

// ResetPasswordPageHandler is where the reset email lands
func (s *Server) ResetPasswordPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, http.StatusOK, "reset_password.html", LoginPageData{
			AppName: s.config.GetAppName(),
			Brand:   s.brand(),
			Locale:  s.handshake.Locale(),
			Links:   formLinks{Login: RouteLogin, BackToLogin: RouteLogin},
		})
	}
}
