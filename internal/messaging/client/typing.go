package client

import (
	"context"
	"sync"
	"time"
)

// DefaultTypingThrottle minimum gap between typing pings; half the
// server-side TTL so an actively typing user never flickers off.
const DefaultTypingThrottle = 2 * time.Second

// TypingNotifier rate-limits keystroke-driven typing pings. Stop always
// emits immediately.
type TypingNotifier struct {
	emit     func(ctx context.Context, stopped bool) error
	throttle time.Duration

	mu       sync.Mutex
	lastPing time.Time
	now      func() time.Time
}

// NewTypingNotifier create TypingNotifier. throttle <= 0 picks the default.
func NewTypingNotifier(emit func(ctx context.Context, stopped bool) error, throttle time.Duration) *TypingNotifier {
	if throttle <= 0 {
		throttle = DefaultTypingThrottle
	}
	return &TypingNotifier{
		emit:     emit,
		throttle: throttle,
		now:      time.Now,
	}
}

// Keystroke call on every content change; only emits when the throttle
// window has passed
func (t *TypingNotifier) Keystroke(ctx context.Context) error {
	t.mu.Lock()
	now := t.now()
	if now.Sub(t.lastPing) < t.throttle {
		t.mu.Unlock()
		return nil
	}
	t.lastPing = now
	t.mu.Unlock()

	return t.emit(ctx, false)
}

// Stop call on send or input clear; emits right away and resets the
// throttle so the next keystroke pings immediately
func (t *TypingNotifier) Stop(ctx context.Context) error {
	t.mu.Lock()
	t.lastPing = time.Time{}
	t.mu.Unlock()

	return t.emit(ctx, true)
}
