package notify

import (
	"testing"
	"time"
)

func TestThrottleSuppressesRepeatKeys(t *testing.T) {
	var delivered []string
	th := NewThrottle(Func(func(text string) { delivered = append(delivered, text) }), 5*time.Second)

	clock := time.Now()
	th.now = func() time.Time { return clock }

	if !th.NotifyKey("clamp", "first") {
		t.Fatal("first notice suppressed")
	}
	if th.NotifyKey("clamp", "second") {
		t.Error("repeat inside interval went through")
	}

	clock = clock.Add(6 * time.Second)
	if !th.NotifyKey("clamp", "third") {
		t.Error("notice after interval suppressed")
	}

	if len(delivered) != 2 || delivered[0] != "first" || delivered[1] != "third" {
		t.Errorf("delivered = %v", delivered)
	}
}

func TestThrottleKeysAreIndependent(t *testing.T) {
	count := 0
	th := NewThrottle(Func(func(string) { count++ }), 5*time.Second)
	clock := time.Now()
	th.now = func() time.Time { return clock }

	th.NotifyKey("clamp", "a")
	th.NotifyKey("qty_blocked", "b")
	th.NotifyKey("reject", "c")
	if count != 3 {
		t.Errorf("delivered = %d, want 3", count)
	}
}

func TestThrottleReset(t *testing.T) {
	count := 0
	th := NewThrottle(Func(func(string) { count++ }), 5*time.Second)
	clock := time.Now()
	th.now = func() time.Time { return clock }

	th.NotifyKey("selfcheck", "a")
	th.Reset("selfcheck")
	if !th.NotifyKey("selfcheck", "b") {
		t.Error("notice after Reset suppressed")
	}
	if count != 2 {
		t.Errorf("delivered = %d", count)
	}
}

func TestThrottleDefaultInterval(t *testing.T) {
	th := NewThrottle(Func(func(string) {}), 0)
	if th.interval != DefaultThrottleInterval {
		t.Errorf("interval = %v", th.interval)
	}
}

func TestMultiFansOut(t *testing.T) {
	a, b := 0, 0
	m := Multi{Func(func(string) { a++ }), Func(func(string) { b++ })}
	m.Notify("x")
	if a != 1 || b != 1 {
		t.Errorf("fan-out = %d/%d", a, b)
	}
}
