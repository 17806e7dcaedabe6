package ssoclient

import (
	"net/url"
	"sync"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-sso/messaging"
	"github.com/jrsteele09/go-sso/storage"
)

// Browser is the page the client runs in.
type Browser interface {
	// Location is the current page URL, fragment included
	Location() *url.URL

	// Navigate sends the browser to target, leaving the current page
	Navigate(target string)

	// ReplaceURL changes the visible URL without navigating or adding history
	ReplaceURL(target string)
}

// Frame is a hidden frame added to the page
type Frame interface {
	// Remove detaches the frame. Removing an already removed frame is harmless.
	Remove()
}

// Frames loads hidden frames. The loaded page answers on the Host's message bus.
type Frames interface {
	Load(src string) (Frame, error)
}

// Host bundles what the client needs from its environment.
type Host struct {
	Browser   Browser
	Frames    Frames
	Bus       messaging.Bus
	Durable   storage.KV
	Ephemeral storage.KV
}

func (h Host) validate() error {
	switch {
	case h.Browser == nil:
		return errors.New("host has no browser")
	case h.Frames == nil:
		return errors.New("host has no frame loader")
	case h.Bus == nil:
		return errors.New("host has no message bus")
	case h.Durable == nil:
		return errors.New("host has no durable storage")
	}
	return nil
}

// URLBrowser is a Browser that only tracks a URL, for headless clients and tests.
type URLBrowser struct {
	mu          sync.Mutex
	current     *url.URL
	navigations []string
}

func NewURLBrowser(rawURL string) (*URLBrowser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid page url")
	}
	return &URLBrowser{current: u}, nil
}

func (b *URLBrowser) Location() *url.URL {
	b.mu.Lock()
	defer b.mu.Unlock()
	u := *b.current
	return &u
}

func (b *URLBrowser) Navigate(target string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.resolve(target)
	b.navigations = append(b.navigations, b.current.String())
}

func (b *URLBrowser) ReplaceURL(target string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.resolve(target)
}

// Navigations lists every Navigate target in order
func (b *URLBrowser) Navigations() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.navigations...)
}

func (b *URLBrowser) resolve(target string) *url.URL {
	ref, err := url.Parse(target)
	if err != nil {
		return b.current
	}
	return b.current.ResolveReference(ref)
}
