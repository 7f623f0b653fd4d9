// Package notify provides user-facing notifications with rate limiting.
// Clamp and quantity-block notices fire on every market tick during rapid
// movement; throttling keeps them from flooding the trader.
package notify

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Notifier delivers a short text notice to the user.
type Notifier interface {
	Notify(text string)
}

// Func adapts a function to the Notifier interface.
type Func func(text string)

// Notify calls f.
func (f Func) Notify(text string) { f(text) }

// LogNotifier writes notices to the structured log.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notify").Logger()}
}

// Notify logs the notice.
func (n *LogNotifier) Notify(text string) {
	n.logger.Info().Str("event", "notice").Msg(text)
}

// Multi fans one notice out to several sinks.
type Multi []Notifier

// Notify delivers to every sink.
func (m Multi) Notify(text string) {
	for _, n := range m {
		n.Notify(text)
	}
}

// Throttle wraps a Notifier and suppresses repeats of the same keyed
// notice inside a minimum interval. Distinct keys throttle independently.
type Throttle struct {
	next     Notifier
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// DefaultThrottleInterval suppresses repeats for this long.
const DefaultThrottleInterval = 5 * time.Second

// NewThrottle creates a throttled notifier. A non-positive interval uses
// the default.
func NewThrottle(next Notifier, interval time.Duration) *Throttle {
	if interval <= 0 {
		interval = DefaultThrottleInterval
	}
	return &Throttle{
		next:     next,
		interval: interval,
		now:      time.Now,
		last:     make(map[string]time.Time),
	}
}

// NotifyKey delivers the notice unless the same key fired within the
// interval. Returns true when the notice went through.
func (t *Throttle) NotifyKey(key, text string) bool {
	t.mu.Lock()
	now := t.now()
	if last, ok := t.last[key]; ok && now.Sub(last) < t.interval {
		t.mu.Unlock()
		return false
	}
	t.last[key] = now
	t.mu.Unlock()

	t.next.Notify(text)
	return true
}

// Notify delivers with the text itself as the throttle key.
func (t *Throttle) Notify(text string) {
	t.NotifyKey(text, text)
}

// Reset clears the throttle history for a key, forcing the next notice
// through. Used when a fresh session clears a sticky condition.
func (t *Throttle) Reset(key string) {
	t.mu.Lock()
	delete(t.last, key)
	t.mu.Unlock()
}
