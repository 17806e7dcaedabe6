// Package messaging models cross-window messages as a typed channel: a Bus carries events
// tagged with their sender origin, and a Dispatcher routes {type, data} envelopes to
// registered handlers after an origin allow-list check.
package messaging

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Event is one message together with the origin that sent it.
type Event struct {
	Origin string
	Data   json.RawMessage
}

// NewEvent encodes payload as the event data
func NewEvent(origin string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode message: %w", err)
	}
	return Event{Origin: origin, Data: data}, nil
}

// Decode unmarshals the event data into v
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

// Type returns the "type" field of the data, or "" when it has none.
func (e Event) Type() string {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(e.Data, &head); err != nil {
		return ""
	}
	return head.Type
}

// Bus delivers posted events to every listener.
type Bus interface {
	// Listen registers fn and returns a function that removes it. Removing twice is harmless.
	Listen(fn func(Event)) (remove func())
	Post(ev Event)
}

// LocalBus is an in-process Bus. Post calls listeners synchronously, in registration order,
// and is safe for concurrent use.
type LocalBus struct {
	mu        sync.RWMutex
	nextID    int
	order     []int
	listeners map[int]func(Event)
}

func NewLocalBus() *LocalBus {
	return &LocalBus{listeners: make(map[int]func(Event))}
}

func (b *LocalBus) Listen(fn func(Event)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.order = append(b.order, id)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.listeners[id]; !ok {
			return
		}
		delete(b.listeners, id)
		for i, v := range b.order {
			if v == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
}

func (b *LocalBus) Post(ev Event) {
	b.mu.RLock()
	fns := make([]func(Event), 0, len(b.order))
	for _, id := range b.order {
		fns = append(fns, b.listeners[id])
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Listeners returns the number of registered listeners
func (b *LocalBus) Listeners() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
