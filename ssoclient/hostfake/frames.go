// Package hostfake provides a scripted hidden-frame loader for client tests.
package hostfake

import (
	"sync"

	"github.com/jrsteele09/go-sso/messaging"
	"github.com/jrsteele09/go-sso/ssoapi"
	"github.com/jrsteele09/go-sso/ssoclient"
)

var _ ssoclient.Frames = (*FakeFrames)(nil)

// FakeFrames records loaded frames. OnLoad, when set, runs synchronously inside Load,
// typically to post the frame's message on a bus.
type FakeFrames struct {
	mu      sync.Mutex
	frames  []*FakeFrame
	LoadErr error
	OnLoad  func(src string)
}

func NewFakeFrames() *FakeFrames {
	return &FakeFrames{}
}

func (f *FakeFrames) Load(src string) (ssoclient.Frame, error) {
	if f.LoadErr != nil {
		return nil, f.LoadErr
	}
	frame := &FakeFrame{Src: src}
	f.mu.Lock()
	f.frames = append(f.frames, frame)
	f.mu.Unlock()
	if f.OnLoad != nil {
		f.OnLoad(src)
	}
	return frame, nil
}

// Frames returns every frame loaded so far
func (f *FakeFrames) Frames() []*FakeFrame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeFrame(nil), f.frames...)
}

// Attached counts frames that have not been removed
func (f *FakeFrames) Attached() int {
	n := 0
	for _, fr := range f.Frames() {
		if fr.Removals() == 0 {
			n++
		}
	}
	return n
}

type FakeFrame struct {
	Src string

	mu       sync.Mutex
	removals int
}

func (f *FakeFrame) Remove() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removals++
}

func (f *FakeFrame) Removals() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removals
}

// RespondWith returns an OnLoad hook that posts a silent-auth response from origin.
func RespondWith(bus messaging.Bus, origin string, resp ssoapi.SilentAuthResponse) func(string) {
	return func(string) {
		resp.Type = ssoapi.MessageTypeSilentAuthResponse
		ev, err := messaging.NewEvent(origin, resp)
		if err != nil {
			panic(err)
		}
		bus.Post(ev)
	}
}
