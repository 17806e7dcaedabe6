package providerfake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-sso/backend"
)

var _ backend.Provider = (*FakeProvider)(nil)

// FakeProvider answers from its exported fields and counts calls.
type FakeProvider struct {
	mu sync.Mutex

	SignInSession *backend.Session
	SignInErr     error
	SignUpResult  *backend.SignUpResult
	SignUpErr     error
	ResetErr      error
	RefreshResult *backend.Session
	RefreshErr    error
	SignOutErr    error

	Calls           map[string]int
	LastRedirectTo  string
	LastMetadata    map[string]any
	LastRefresh     string
	LastAccessToken string
}

func New() *FakeProvider {
	return &FakeProvider{Calls: make(map[string]int)}
}

func (f *FakeProvider) count(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls[name]++
}

// CallCount returns how often the named method ran
func (f *FakeProvider) CallCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[name]
}

func (f *FakeProvider) SignInWithPassword(_ context.Context, _, _ string) (*backend.Session, error) {
	f.count("SignInWithPassword")
	return f.SignInSession, f.SignInErr
}

func (f *FakeProvider) SignUp(_ context.Context, _, _ string, metadata map[string]any) (*backend.SignUpResult, error) {
	f.count("SignUp")
	f.mu.Lock()
	f.LastMetadata = metadata
	f.mu.Unlock()
	return f.SignUpResult, f.SignUpErr
}

func (f *FakeProvider) ResetPasswordForEmail(_ context.Context, _, redirectTo string) error {
	f.count("ResetPasswordForEmail")
	f.mu.Lock()
	f.LastRedirectTo = redirectTo
	f.mu.Unlock()
	return f.ResetErr
}

func (f *FakeProvider) RefreshSession(_ context.Context, refreshToken string) (*backend.Session, error) {
	f.count("RefreshSession")
	f.mu.Lock()
	f.LastRefresh = refreshToken
	f.mu.Unlock()
	return f.RefreshResult, f.RefreshErr
}

func (f *FakeProvider) SignOut(_ context.Context, accessToken string) error {
	f.count("SignOut")
	f.mu.Lock()
	f.LastAccessToken = accessToken
	f.mu.Unlock()
	return f.SignOutErr
}
