package ratelimit

import (
	"container/list"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	defaultMaxEntries = 10000
	defaultIdleTime   = 30 * time.Minute
)

type entry struct {
	key        string
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Limiter is a token bucket per key (client IP) with LRU eviction of idle keys.
type Limiter struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	lru        *list.List
	limit      rate.Limit
	burst      int
	maxEntries int
	now        func() time.Time
}

type Option func(*Limiter)

func WithMaxEntries(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.maxEntries = n
		}
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New allows perSecond sustained events per key with bursts of up to burst.
func New(perSecond float64, burst int, opts ...Option) *Limiter {
	l := &Limiter{
		entries:    make(map[string]*list.Element),
		lru:        list.New(),
		limit:      rate.Limit(perSecond),
		burst:      burst,
		maxEntries: defaultMaxEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow reports whether one more event for key may happen now.
func (l *Limiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if elem, ok := l.entries[key]; ok {
		l.lru.MoveToFront(elem)
		e := elem.Value.(*entry)
		e.lastAccess = now
		return e.limiter.AllowN(now, 1)
	}

	if len(l.entries) >= l.maxEntries {
		l.evictOldest()
	}
	e := &entry{key: key, limiter: rate.NewLimiter(l.limit, l.burst), lastAccess: now}
	l.entries[key] = l.lru.PushFront(e)
	return e.limiter.AllowN(now, 1)
}

func (l *Limiter) evictOldest() {
	elem := l.lru.Back()
	if elem == nil {
		return
	}
	e := elem.Value.(*entry)
	delete(l.entries, e.key)
	l.lru.Remove(elem)
	log.Debug().Str("key", e.key).Int("entries", len(l.entries)).Msg("rate limiter eviction")
}

// Cleanup drops keys idle for longer than maxIdle (30 minutes when zero).
func (l *Limiter) Cleanup(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		maxIdle = defaultIdleTime
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	var next *list.Element
	for elem := l.lru.Front(); elem != nil; elem = next {
		next = elem.Next()
		e := elem.Value.(*entry)
		if now.Sub(e.lastAccess) > maxIdle {
			delete(l.entries, e.key)
			l.lru.Remove(elem)
			removed++
		}
	}
	return removed
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
