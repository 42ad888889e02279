package http

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	rateLimitWindow   = time.Minute
	rateLimitMax      = 60
	rateLimitCleanup  = 5 * time.Minute
	rateLimitStaleFor = 10 * time.Minute
)

// securityMetrics counts limiter decisions for the readiness report.
type securityMetrics struct {
	allowed int64
	blocked int64
}

func (m *securityMetrics) recordAllowed() { atomic.AddInt64(&m.allowed, 1) }
func (m *securityMetrics) recordBlocked() { atomic.AddInt64(&m.blocked, 1) }

func (m *securityMetrics) snapshot() (allowed, blocked int64) {
	return atomic.LoadInt64(&m.allowed), atomic.LoadInt64(&m.blocked)
}

type visitor struct {
	count    int
	windowAt time.Time
	lastSeen time.Time
}

// rateLimiter is a per-IP fixed-window limiter. Entries for idle
// clients are dropped by a background cleanup goroutine.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	done     chan struct{}
	stopOnce sync.Once
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		done:     make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *rateLimiter) allow(clientIP string, metrics *securityMetrics) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	v, ok := rl.visitors[clientIP]
	if !ok || now.Sub(v.windowAt) >= rateLimitWindow {
		rl.visitors[clientIP] = &visitor{count: 1, windowAt: now, lastSeen: now}
		metrics.recordAllowed()
		return true
	}

	v.lastSeen = now
	if v.count >= rateLimitMax {
		metrics.recordBlocked()
		return false
	}
	v.count++
	metrics.recordAllowed()
	return true
}

func (rl *rateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rateLimitCleanup)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.done:
			return
		}
	}
}

func (rl *rateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rateLimitStaleFor)
	for ip, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}
