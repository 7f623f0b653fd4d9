package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestGatewayErrorUnwrap(t *testing.T) {
	err := NewGatewayError("submit", "bracket submission failed", ErrGatewayClosed)
	if !stderrors.Is(err, ErrGatewayClosed) {
		t.Error("wrapped sentinel not found in chain")
	}
	if !strings.Contains(err.Error(), "submit") {
		t.Errorf("Error() = %q", err.Error())
	}

	var gerr *GatewayError
	if !As(err, &gerr) || gerr.Op != "submit" {
		t.Errorf("As failed: %+v", gerr)
	}
}

func TestOrderErrorUnwrap(t *testing.T) {
	err := NewOrderError("s-1", "STOP", "modify", "not working", ErrOrderRejected)
	if !Is(err, ErrOrderRejected) {
		t.Error("wrapped sentinel not found in chain")
	}
	msg := err.Error()
	for _, part := range []string{"s-1", "STOP", "modify", "not working"} {
		if !strings.Contains(msg, part) {
			t.Errorf("Error() missing %q: %q", part, msg)
		}
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := NewValidationError("fixed_risk_usd", -1.0, "must be positive")
	msg := err.Error()
	if !strings.Contains(msg, "fixed_risk_usd") || !strings.Contains(msg, "must be positive") {
		t.Errorf("Error() = %q", msg)
	}
}

func TestWrapPreservesChain(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	err := Wrap(ErrJournalClosed, "recording trade")
	if !Is(err, ErrJournalClosed) {
		t.Error("sentinel lost through Wrap")
	}
	err = Wrapf(ErrFeedUnavailable, "dialing %s", "ws://x")
	if !Is(err, ErrFeedUnavailable) || !strings.Contains(err.Error(), "ws://x") {
		t.Errorf("Wrapf = %v", err)
	}
}
