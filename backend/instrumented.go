package backend

import (
	"context"
	"time"
)

// CallObserver is told about every provider call. *metrics.Metrics implements it.
type CallObserver interface {
	BackendCall(operation string, start time.Time, err error)
}

type instrumented struct {
	next     Provider
	observer CallObserver
}

// Instrument reports each call of p to observer. A nil observer returns p unchanged.
func Instrument(p Provider, observer CallObserver) Provider {
	if observer == nil {
		return p
	}
	return &instrumented{next: p, observer: observer}
}

func (i *instrumented) SignInWithPassword(ctx context.Context, email, password string) (s *Session, err error) {
	defer i.observe("sign_in", time.Now(), &err)
	return i.next.SignInWithPassword(ctx, email, password)
}

func (i *instrumented) SignUp(ctx context.Context, email, password string, metadata map[string]any) (r *SignUpResult, err error) {
	defer i.observe("sign_up", time.Now(), &err)
	return i.next.SignUp(ctx, email, password, metadata)
}

func (i *instrumented) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) (err error) {
	defer i.observe("reset_password", time.Now(), &err)
	return i.next.ResetPasswordForEmail(ctx, email, redirectTo)
}

func (i *instrumented) RefreshSession(ctx context.Context, refreshToken string) (s *Session, err error) {
	defer i.observe("refresh", time.Now(), &err)
	return i.next.RefreshSession(ctx, refreshToken)
}

func (i *instrumented) SignOut(ctx context.Context, accessToken string) (err error) {
	defer i.observe("sign_out", time.Now(), &err)
	return i.next.SignOut(ctx, accessToken)
}

func (i *instrumented) observe(operation string, start time.Time, err *error) {
	i.observer.BackendCall(operation, start, *err)
}
