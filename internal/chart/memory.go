package chart

import (
	"sync"

	"github.com/rs/zerolog"

	"bracket-trader/internal/models"
)

// MemoryDisplay is a thread-safe in-memory MarkerDisplay. It backs the
// headless simulate command and doubles as the drag surface: moving a line
// with SetLinePrice from outside the core is exactly what a user drag
// looks like to the reconciliation logic.
type MemoryDisplay struct {
	mu            sync.RWMutex
	lines         map[models.LegKind]float64
	labels        map[models.LegKind]string
	notifications []string
}

// NewMemoryDisplay creates an empty in-memory display.
func NewMemoryDisplay() *MemoryDisplay {
	return &MemoryDisplay{
		lines:  make(map[models.LegKind]float64),
		labels: make(map[models.LegKind]string),
	}
}

// UpsertLine creates or moves a line and its label.
func (m *MemoryDisplay) UpsertLine(kind models.LegKind, price float64, label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines[kind] = price
	m.labels[kind] = label
}

// SetLinePrice moves an existing line; a missing line is created.
func (m *MemoryDisplay) SetLinePrice(kind models.LegKind, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines[kind] = price
}

// GetLinePrice returns the line's current price.
func (m *MemoryDisplay) GetLinePrice(kind models.LegKind) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.lines[kind]
	return p, ok
}

// RemoveAll clears every line and label.
func (m *MemoryDisplay) RemoveAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = make(map[models.LegKind]float64)
	m.labels = make(map[models.LegKind]string)
}

// ShowNotification records a notification.
func (m *MemoryDisplay) ShowNotification(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, text)
}

// Notifications returns a copy of all recorded notifications.
func (m *MemoryDisplay) Notifications() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.notifications))
	copy(out, m.notifications)
	return out
}

// Label returns the current label text for a line.
func (m *MemoryDisplay) Label(kind models.LegKind) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.labels[kind]
}

// LogDisplay writes every marker update to the log. Used when running
// without a chart surface.
type LogDisplay struct {
	*MemoryDisplay
	logger zerolog.Logger
}

// NewLogDisplay creates a display that mirrors updates into the log.
func NewLogDisplay(logger zerolog.Logger) *LogDisplay {
	return &LogDisplay{
		MemoryDisplay: NewMemoryDisplay(),
		logger:        logger.With().Str("component", "display").Logger(),
	}
}

// UpsertLine logs and records the update.
func (l *LogDisplay) UpsertLine(kind models.LegKind, price float64, label string) {
	l.MemoryDisplay.UpsertLine(kind, price, label)
	l.logger.Info().Str("line", string(kind)).Float64("price", price).Str("label", label).Msg("Line updated")
}

// RemoveAll logs and clears the markers.
func (l *LogDisplay) RemoveAll() {
	l.MemoryDisplay.RemoveAll()
	l.logger.Info().Msg("Markers removed")
}

// ShowNotification logs and records the notification.
func (l *LogDisplay) ShowNotification(text string) {
	l.MemoryDisplay.ShowNotification(text)
	l.logger.Info().Str("text", text).Msg("Notification")
}
