package chart

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"bracket-trader/internal/models"
)

type opKind int

const (
	opUpsert opKind = iota
	opSetPrice
	opRemoveAll
	opNotify
)

type displayOp struct {
	kind  opKind
	leg   models.LegKind
	price float64
	text  string
}

// Dispatcher marshals marker updates onto a dedicated presentation
// goroutine. Writes are fire-and-forget: a full queue drops the update and
// counts it rather than blocking the core. Reads go straight to the
// display's thread-safe snapshot since user drags change marker positions
// on the presentation side.
type Dispatcher struct {
	display MarkerDisplay
	logger  zerolog.Logger
	ops     chan displayOp
	dropped uint64
	once    sync.Once
	done    chan struct{}
}

// NewDispatcher creates a dispatcher over a display.
func NewDispatcher(display MarkerDisplay, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		display: display,
		logger:  logger.With().Str("component", "chart_dispatcher").Logger(),
		ops:     make(chan displayOp, 512),
		done:    make(chan struct{}),
	}
}

// Start launches the presentation goroutine.
func (d *Dispatcher) Start() {
	go func() {
		for op := range d.ops {
			switch op.kind {
			case opUpsert:
				d.display.UpsertLine(op.leg, op.price, op.text)
			case opSetPrice:
				d.display.SetLinePrice(op.leg, op.price)
			case opRemoveAll:
				d.display.RemoveAll()
			case opNotify:
				d.display.ShowNotification(op.text)
			}
		}
		close(d.done)
	}()
}

// Stop closes the queue and waits for pending updates to flush.
func (d *Dispatcher) Stop() {
	d.once.Do(func() { close(d.ops) })
	<-d.done
}

func (d *Dispatcher) send(op displayOp) {
	select {
	case d.ops <- op:
	default:
		if atomic.AddUint64(&d.dropped, 1)%100 == 1 {
			d.logger.Warn().Uint64("dropped", atomic.LoadUint64(&d.dropped)).Msg("Display queue full")
		}
	}
}

// UpsertLine queues a line upsert.
func (d *Dispatcher) UpsertLine(kind models.LegKind, price float64, label string) {
	d.send(displayOp{kind: opUpsert, leg: kind, price: price, text: label})
}

// SetLinePrice queues a line move.
func (d *Dispatcher) SetLinePrice(kind models.LegKind, price float64) {
	d.send(displayOp{kind: opSetPrice, leg: kind, price: price})
}

// RemoveAll queues removal of every marker in this instance's namespace.
func (d *Dispatcher) RemoveAll() {
	d.send(displayOp{kind: opRemoveAll})
}

// ShowNotification queues a HUD notification.
func (d *Dispatcher) ShowNotification(text string) {
	d.send(displayOp{kind: opNotify, text: text})
}

// GetLinePrice reads the marker's current price from the display snapshot.
func (d *Dispatcher) GetLinePrice(kind models.LegKind) (float64, bool) {
	return d.display.GetLinePrice(kind)
}

// Dropped returns the count of updates dropped to a full queue.
func (d *Dispatcher) Dropped() uint64 {
	return atomic.LoadUint64(&d.dropped)
}
