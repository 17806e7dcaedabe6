package handshake

// Form is the form currently shown on the login page. Exactly one is visible at a time.
type Form int

const (
	FormLogin Form = iota
	FormSignup
	FormForgotPassword
)

func (f Form) String() string {
	switch f {
	case FormSignup:
		return "signup"
	case FormForgotPassword:
		return "forgot-password"
	default:
		return "login"
	}
}

// ParseForm maps the ?form= value back to a Form. Anything unknown is the login form.
func ParseForm(s string) Form {
	switch s {
	case FormSignup.String():
		return FormSignup
	case FormForgotPassword.String():
		return FormForgotPassword
	default:
		return FormLogin
	}
}

// Nav is a navigation link between forms
type Nav int

const (
	NavShowSignup Nav = iota
	NavShowLogin
	NavShowForgotPassword
	NavBackToLogin
)

// Transition returns the form shown after following nav from form.
// Links that don't exist on a form leave it unchanged.
func Transition(form Form, nav Nav) Form {
	switch form {
	case FormLogin:
		switch nav {
		case NavShowSignup:
			return FormSignup
		case NavShowForgotPassword:
			return FormForgotPassword
		}
	case FormSignup:
		if nav == NavShowLogin {
			return FormLogin
		}
	case FormForgotPassword:
		if nav == NavBackToLogin {
			return FormLogin
		}
	}
	return form
}
