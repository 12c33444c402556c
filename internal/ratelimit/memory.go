package ratelimit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// keyLog is the reservation log for one key.
type keyLog struct {
	mu      sync.Mutex
	stamps  []time.Time          // ascending
	tokens  map[string]time.Time // token -> reservation time
	expires time.Time            // newest stamp + window
	evicted bool
}

// prune drops reservations at or before now-window.
func (l *keyLog) prune(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	drop := sort.Search(len(l.stamps), func(i int) bool { return l.stamps[i].After(cutoff) })
	if drop > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[drop:]...)
	}
	for tok, at := range l.tokens {
		if !at.After(cutoff) {
			delete(l.tokens, tok)
		}
	}
}

// MemoryWindowLimiter implements WindowLimiter with an in-memory log per key.
//
// Each key has its own mutex, so reservations for different agents never
// contend beyond the map lookup. A background goroutine evicts logs whose
// newest reservation has left the window, measured on the clock callers pass
// to Reserve rather than wall time. Call Close to stop it.
type MemoryWindowLimiter struct {
	mu     sync.Mutex
	logs   map[string]*keyLog
	latest time.Time // newest now passed to Reserve

	stopOnce sync.Once
	done     chan struct{}
}

// NewMemoryWindowLimiter creates an in-memory limiter and starts its
// eviction goroutine.
func NewMemoryWindowLimiter() *MemoryWindowLimiter {
	m := &MemoryWindowLimiter{
		logs: make(map[string]*keyLog),
		done: make(chan struct{}),
	}
	go m.cleanup()
	return m
}

func (m *MemoryWindowLimiter) log(key string, now time.Time) *keyLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	if now.After(m.latest) {
		m.latest = now
	}
	l, ok := m.logs[key]
	if !ok {
		l = &keyLog{tokens: make(map[string]time.Time)}
		m.logs[key] = l
	}
	return l
}

// Reserve implements WindowLimiter.
func (m *MemoryWindowLimiter) Reserve(_ context.Context, key, token string, limit int, window time.Duration, now time.Time) (Reservation, error) {
	for {
		l := m.log(key, now)
		l.mu.Lock()
		if l.evicted {
			// Lost a race with eviction; fetch the replacement log.
			l.mu.Unlock()
			continue
		}
		res := l.reserve(token, limit, window, now)
		l.mu.Unlock()
		return res, nil
	}
}

func (l *keyLog) reserve(token string, limit int, window time.Duration, now time.Time) Reservation {
	l.prune(now, window)
	res := Reservation{Limit: limit}
	if token != "" {
		if _, seen := l.tokens[token]; seen {
			res.Duplicate = true
			res.Remaining = max(0, limit-len(l.stamps))
			res.ResetAt = l.resetAt(window)
			return res
		}
	}
	if len(l.stamps) >= limit {
		res.ResetAt = l.resetAt(window)
		return res
	}

	// Keep stamps sorted even when callers supply out-of-order clocks.
	i := sort.Search(len(l.stamps), func(i int) bool { return l.stamps[i].After(now) })
	l.stamps = append(l.stamps, time.Time{})
	copy(l.stamps[i+1:], l.stamps[i:])
	l.stamps[i] = now
	if token != "" {
		l.tokens[token] = now
	}
	if exp := now.Add(window); exp.After(l.expires) {
		l.expires = exp
	}

	res.Allowed = true
	res.Remaining = limit - len(l.stamps)
	res.ResetAt = l.resetAt(window)
	return res
}

func (l *keyLog) resetAt(window time.Duration) time.Time {
	if len(l.stamps) == 0 {
		return time.Time{}
	}
	return l.stamps[0].Add(window)
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (m *MemoryWindowLimiter) Close() error {
	m.stopOnce.Do(func() { close(m.done) })
	return nil
}

func (m *MemoryWindowLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep evicts on the newest clock reading seen so far.
func (m *MemoryWindowLimiter) sweep() {
	m.mu.Lock()
	now := m.latest
	m.mu.Unlock()
	if now.IsZero() {
		return
	}
	m.evictExpired(now)
}

// evictExpired removes logs whose newest reservation expired before now.
func (m *MemoryWindowLimiter) evictExpired(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, l := range m.logs {
		l.mu.Lock()
		if l.expires.Before(now) {
			l.evicted = true
			delete(m.logs, key)
		}
		l.mu.Unlock()
	}
}

// keys reports the number of tracked keys.
func (m *MemoryWindowLimiter) keys() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logs)
}
