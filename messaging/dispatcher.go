package messaging

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// Handler receives the data part of a {type, data} envelope.
type Handler func(data json.RawMessage)

// Dispatcher maps message types to handlers. Events from origins outside the allow-list
// are dropped with a warning and never reach a handler.
type Dispatcher struct {
	allowed map[string]struct{}
	logger  zerolog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewDispatcher(allowedOrigins []string, logger zerolog.Logger) *Dispatcher {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return &Dispatcher{
		allowed:  allowed,
		logger:   logger,
		handlers: make(map[string]Handler),
	}
}

// On registers h for msgType, replacing any earlier handler for that type.
func (d *Dispatcher) On(msgType string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[msgType] = h
}

// IsAllowed reports whether origin is in the allow-list
func (d *Dispatcher) IsAllowed(origin string) bool {
	_, ok := d.allowed[origin]
	return ok
}

// Dispatch routes ev and reports whether a handler ran.
func (d *Dispatcher) Dispatch(ev Event) bool {
	if !d.IsAllowed(ev.Origin) {
		d.logger.Warn().Str("origin", ev.Origin).Msg("message from unauthorized origin")
		return false
	}

	var envelope struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(ev.Data, &envelope); err != nil {
		d.logger.Debug().Err(err).Str("origin", ev.Origin).Msg("ignoring non-envelope message")
		return false
	}

	d.mu.RLock()
	h, ok := d.handlers[envelope.Type]
	d.mu.RUnlock()
	if !ok {
		return false
	}
	h(envelope.Data)
	return true
}

// Attach feeds every event of bus through Dispatch. The returned function detaches it.
func (d *Dispatcher) Attach(bus Bus) func() {
	return bus.Listen(func(ev Event) {
		d.Dispatch(ev)
	})
}
