// Package chart provides the price-marker display boundary: the tag
// namespace shared with the host chart, the display interface, and an
// asynchronous dispatcher that keeps the core from ever blocking on
// presentation.
package chart

import (
	"bracket-trader/internal/models"
)

// Fixed tag and order-name suffixes. Combined with the per-instance prefix
// they keep concurrent instances from colliding on shared drawing and
// order namespaces.
const (
	SuffixEntryLine   = "ENTRY_LINE"
	SuffixStopLine    = "STOP_LINE"
	SuffixTargetLine  = "TARGET_LINE"
	SuffixEntryLabel  = "ENTRY_LABEL"
	SuffixStopLabel   = "STOP_LABEL"
	SuffixTargetLabel = "TARGET_LABEL"
	SuffixHUDNotify   = "HUD_NOTIFY"

	SuffixOrderEntryLong  = "ENTRY_LONG"
	SuffixOrderEntryShort = "ENTRY_SHORT"
	SuffixOrderStop       = "SL"
	SuffixOrderTarget     = "TP"
	SuffixOrderClose      = "CLOSE"
)

// Namespace builds instance-scoped tags and order names.
type Namespace struct {
	Prefix string
}

// NewNamespace creates a namespace with the configured prefix.
func NewNamespace(prefix string) Namespace {
	return Namespace{Prefix: prefix}
}

// Tag returns the namespaced form of a suffix.
func (n Namespace) Tag(suffix string) string {
	return n.Prefix + "_" + suffix
}

// LineTag returns the drawing tag for a leg's price line.
func (n Namespace) LineTag(kind models.LegKind) string {
	switch kind {
	case models.LegStop:
		return n.Tag(SuffixStopLine)
	case models.LegTarget:
		return n.Tag(SuffixTargetLine)
	default:
		return n.Tag(SuffixEntryLine)
	}
}

// LabelTag returns the drawing tag for a leg's label.
func (n Namespace) LabelTag(kind models.LegKind) string {
	switch kind {
	case models.LegStop:
		return n.Tag(SuffixStopLabel)
	case models.LegTarget:
		return n.Tag(SuffixTargetLabel)
	default:
		return n.Tag(SuffixEntryLabel)
	}
}

// EntryOrderName returns the entry order name for a direction.
func (n Namespace) EntryOrderName(d models.Direction) string {
	if d == models.DirectionShort {
		return n.Tag(SuffixOrderEntryShort)
	}
	return n.Tag(SuffixOrderEntryLong)
}

// StopOrderName returns the stop order name.
func (n Namespace) StopOrderName() string { return n.Tag(SuffixOrderStop) }

// TargetOrderName returns the target order name.
func (n Namespace) TargetOrderName() string { return n.Tag(SuffixOrderTarget) }

// CloseOrderName returns the flatten order name.
func (n Namespace) CloseOrderName() string { return n.Tag(SuffixOrderClose) }

// MarkerDisplay is the external price-marker surface. Implementations live
// on the presentation side; the core reaches them only through the
// Dispatcher.
type MarkerDisplay interface {
	UpsertLine(kind models.LegKind, price float64, label string)
	SetLinePrice(kind models.LegKind, price float64)
	// GetLinePrice returns the marker's current price, which may differ
	// from the tracked price after a user drag. ok is false when no such
	// marker exists.
	GetLinePrice(kind models.LegKind) (float64, bool)
	RemoveAll()
	ShowNotification(text string)
}
