package hotkey

import (
	"testing"
	"time"
)

func waitPress(t *testing.T, tg *Toggler) {
	t.Helper()
	select {
	case <-tg.Presses():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for press")
	}
}

func noPress(t *testing.T, tg *Toggler, d time.Duration) {
	t.Helper()
	select {
	case <-tg.Presses():
		t.Fatal("unexpected press")
	case <-time.After(d):
	}
}

func TestToggleTap(t *testing.T) {
	fk := NewFake()
	tg := NewToggler(fk, 200*time.Millisecond)
	defer tg.Stop()

	fk.SimKeydown()
	waitPress(t, tg)
	fk.SimKeyup()
	noPress(t, tg, 50*time.Millisecond)

	// second tap stops
	fk.SimKeydown()
	waitPress(t, tg)
	fk.SimKeyup()
	noPress(t, tg, 50*time.Millisecond)
}

func TestToggleHold(t *testing.T) {
	fk := NewFake()
	threshold := 50 * time.Millisecond
	tg := NewToggler(fk, threshold)
	defer tg.Stop()

	fk.SimKeydown()
	waitPress(t, tg)
	time.Sleep(threshold + 20*time.Millisecond)
	fk.SimKeyup()
	waitPress(t, tg)
}

func TestToggleMultipleCycles(t *testing.T) {
	fk := NewFake()
	threshold := 50 * time.Millisecond
	tg := NewToggler(fk, threshold)
	defer tg.Stop()

	// hold
	fk.SimKeydown()
	waitPress(t, tg)
	time.Sleep(threshold + 20*time.Millisecond)
	fk.SimKeyup()
	waitPress(t, tg)

	// tap, tap
	for range 2 {
		fk.SimKeydown()
		waitPress(t, tg)
		fk.SimKeyup()
		time.Sleep(10 * time.Millisecond)
	}
	noPress(t, tg, 30*time.Millisecond)
}

func TestToggleNoHold(t *testing.T) {
	fk := NewFake()
	tg := NewToggler(fk, 0)
	defer tg.Stop()

	fk.SimKeydown()
	waitPress(t, tg)
	time.Sleep(20 * time.Millisecond)
	fk.SimKeyup()
	noPress(t, tg, 50*time.Millisecond)
}
