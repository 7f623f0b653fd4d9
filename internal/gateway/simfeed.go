package gateway

import (
	"sync"

	"bracket-trader/internal/models"
)

// SimFeed is an in-memory MarketFeed driven by Push. Used by the simulate
// command and by tests.
type SimFeed struct {
	mu         sync.RWMutex
	quote      models.Quote
	tickSize   float64
	pointValue float64
	updates    chan models.Quote
	closed     bool
}

// NewSimFeed creates a simulated feed with fixed instrument metadata.
func NewSimFeed(tickSize, pointValue float64) *SimFeed {
	return &SimFeed{
		tickSize:   tickSize,
		pointValue: pointValue,
		updates:    make(chan models.Quote, 256),
	}
}

// Push publishes a new quote.
func (f *SimFeed) Push(q models.Quote) {
	f.mu.Lock()
	f.quote = q
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return
	}
	select {
	case f.updates <- q:
	default:
	}
}

// Quote returns the latest pushed quote.
func (f *SimFeed) Quote() models.Quote {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.quote
}

// Updates returns the quote channel.
func (f *SimFeed) Updates() <-chan models.Quote {
	return f.updates
}

// InstrumentInfo returns the configured metadata.
func (f *SimFeed) InstrumentInfo() (float64, float64, bool) {
	return f.tickSize, f.pointValue, f.tickSize > 0 && f.pointValue > 0
}

// Close shuts the feed down.
func (f *SimFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.updates)
	}
	return nil
}
