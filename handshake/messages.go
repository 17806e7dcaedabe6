package handshake

import (
	"time"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-sso/backend"
)

// MessageDismissAfter is how long a message stays on screen
const MessageDismissAfter = 5 * time.Second

type MessageKind string

const (
	KindInfo    MessageKind = "info"
	KindSuccess MessageKind = "success"
	KindError   MessageKind = "error"
)

// Message is shown above the forms. Showing one replaces the previous message.
type Message struct {
	Kind         MessageKind
	Text         string
	DismissAfter time.Duration
}

type MessageKey string

const (
	MsgLoginSuccess     MessageKey = "login_success"
	MsgLoginFailed      MessageKey = "login_failed"
	MsgPasswordMismatch MessageKey = "password_mismatch"
	MsgPasswordTooShort MessageKey = "password_too_short"
	MsgTermsRequired    MessageKey = "terms_required"
	MsgSignupSuccess    MessageKey = "signup_success"
	MsgSignupFailed     MessageKey = "signup_failed"
	MsgResetSent        MessageKey = "reset_sent"
	MsgResetFailed      MessageKey = "reset_failed"
	MsgRateLimited      MessageKey = "rate_limited"
	MsgSessionFailed    MessageKey = "session_failed"
)

const DefaultLocale = "en"

var catalog = map[string]map[MessageKey]string{
	"en": {
		MsgLoginSuccess:     "Login successful! Please wait...",
		MsgLoginFailed:      "An error occurred while logging in.",
		MsgPasswordMismatch: "Passwords do not match.",
		MsgPasswordTooShort: "Password must be at least 8 characters.",
		MsgTermsRequired:    "Please agree to the terms of service.",
		MsgSignupSuccess:    "Sign up complete! Please check your email.",
		MsgSignupFailed:     "An error occurred while signing up.",
		MsgResetSent:        "A password reset link has been sent to your email.",
		MsgResetFailed:      "An error occurred while resetting the password.",
		MsgRateLimited:      "Too many attempts. Please try again shortly.",
		MsgSessionFailed:    "Could not check your session.",
	},
	"ko": {
		MsgLoginSuccess:     "로그인 성공! 잠시만 기다려주세요...",
		MsgLoginFailed:      "로그인 중 오류가 발생했습니다.",
		MsgPasswordMismatch: "비밀번호가 일치하지 않습니다.",
		MsgPasswordTooShort: "비밀번호는 최소 8자 이상이어야 합니다.",
		MsgTermsRequired:    "이용약관에 동의해주세요.",
		MsgSignupSuccess:    "회원가입이 완료되었습니다! 이메일을 확인해주세요.",
		MsgSignupFailed:     "회원가입 중 오류가 발생했습니다.",
		MsgResetSent:        "비밀번호 재설정 링크를 이메일로 보냈습니다.",
		MsgResetFailed:      "비밀번호 재설정 중 오류가 발생했습니다.",
		MsgRateLimited:      "요청이 너무 많습니다. 잠시 후 다시 시도해주세요.",
		MsgSessionFailed:    "세션을 확인할 수 없습니다.",
	},
}

// Locales lists the supported catalog locales
func Locales() []string {
	return []string{"en", "ko"}
}

// Localize returns the text for key, falling back to English for unknown locales.
func Localize(locale string, key MessageKey) string {
	if msgs, ok := catalog[locale]; ok {
		if s, ok := msgs[key]; ok {
			return s
		}
	}
	return catalog[DefaultLocale][key]
}

func newMessage(kind MessageKind, text string) *Message {
	return &Message{Kind: kind, Text: text, DismissAfter: MessageDismissAfter}
}

// errorText prefers the backend's own message and falls back to the catalog.
func errorText(locale string, err error, fallback MessageKey) string {
	var authErr *backend.AuthError
	if errors.As(err, &authErr) && authErr.Message != "" {
		return authErr.Message
	}
	return Localize(locale, fallback)
}
