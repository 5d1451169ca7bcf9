package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"voxplaces/session"
)

func warnOnlyMonitor() *silenceMonitor {
	return newSilenceMonitor(false)
}

func autoCloseMonitor() *silenceMonitor {
	return newSilenceMonitor(true)
}

func feedN(m *silenceMonitor, speech bool, n int) SilenceEvent {
	var last SilenceEvent
	for i := 0; i < n; i++ {
		last = m.Tick(speech)
	}
	return last
}

func TestSilenceWarnAfter8s(t *testing.T) {
	m := warnOnlyMonitor()
	// 79 ticks of silence, no warning yet
	for i := 0; i < 79; i++ {
		if ev := m.Tick(false); ev != SilenceNone {
			t.Fatalf("unexpected event at tick %d: %d", i, ev)
		}
	}
	// 80th tick triggers warning (8s)
	if ev := m.Tick(false); ev != SilenceWarn {
		t.Fatalf("expected SilenceWarn at tick 80, got %d", ev)
	}
}

func TestSilenceWarnClearsOnSpeech(t *testing.T) {
	m := warnOnlyMonitor()
	feedN(m, false, 80) // triggers warn

	// Sustained speech clears warning (need 25% of 80-tick window)
	for i := 0; i < 80; i++ {
		ev := m.Tick(true)
		if ev == SilenceWarnClear {
			return
		}
	}
	t.Fatal("expected SilenceWarnClear after speech")
}

func TestNoWarnDuringSpeech(t *testing.T) {
	m := warnOnlyMonitor()
	for i := 0; i < 200; i++ {
		if ev := m.Tick(true); ev == SilenceWarn {
			t.Fatalf("unexpected warn during speech at tick %d", i)
		}
	}
}

func TestRepeatCue(t *testing.T) {
	m := autoCloseMonitor()
	feedN(m, false, 80) // warn at tick 80
	// Next repeat at tick 80 + 80 = 160
	var gotRepeat bool
	for i := 0; i < 100; i++ {
		if ev := m.Tick(false); ev == SilenceRepeat {
			gotRepeat = true
			break
		}
	}
	if !gotRepeat {
		t.Fatal("expected SilenceRepeat with auto-close on")
	}
}

func TestAutoClosePriorityOverRepeat(t *testing.T) {
	m := autoCloseMonitor()
	for i := 0; i < 400; i++ {
		ev := m.Tick(false)
		if ev == SilenceAutoClose {
			return
		}
		if i >= 300 && ev == SilenceRepeat {
			t.Fatalf("SilenceRepeat fired at tick %d instead of SilenceAutoClose", i)
		}
	}
	t.Fatal("expected SilenceAutoClose within 400 ticks")
}

func TestAutoClose(t *testing.T) {
	m := autoCloseMonitor()
	var gotClose bool
	for i := 0; i < 400; i++ {
		if ev := m.Tick(false); ev == SilenceAutoClose {
			gotClose = true
			break
		}
	}
	if !gotClose {
		t.Fatal("expected SilenceAutoClose after 300 ticks")
	}
}

func TestNoAutoCloseWhenDisabled(t *testing.T) {
	m := warnOnlyMonitor()
	for i := 0; i < 400; i++ {
		if ev := m.Tick(false); ev == SilenceAutoClose {
			t.Fatalf("unexpected auto-close at tick %d", i)
		}
	}
}

func TestAutoClosePreventedBySpeech(t *testing.T) {
	m := autoCloseMonitor()
	for i := 0; i < 500; i++ {
		speech := i%10 < 7
		if ev := m.Tick(speech); ev == SilenceAutoClose {
			t.Fatalf("unexpected auto-close with speech at tick %d", i)
		}
	}
}

func TestNoRepeatWhenDisabled(t *testing.T) {
	m := warnOnlyMonitor()
	for i := 0; i < 300; i++ {
		if ev := m.Tick(false); ev == SilenceRepeat {
			t.Fatalf("unexpected SilenceRepeat at tick %d", i)
		}
	}
}

func TestWarnOnlyOnce(t *testing.T) {
	m := warnOnlyMonitor()
	warns := 0
	for i := 0; i < 300; i++ {
		if ev := m.Tick(false); ev == SilenceWarn {
			warns++
		}
	}
	if warns != 1 {
		t.Fatalf("expected exactly 1 SilenceWarn, got %d", warns)
	}
}

func TestWarnStaysDuringNoise(t *testing.T) {
	m := warnOnlyMonitor()
	feedN(m, false, 80) // triggers warn

	// Occasional noise spikes (< 25% speech) should NOT clear
	clears := 0
	for i := 0; i < 80; i++ {
		speech := i%10 == 0 // 10% speech, below clear threshold
		if ev := m.Tick(speech); ev == SilenceWarnClear {
			clears++
		}
	}
	if clears > 0 {
		t.Fatalf("expected warning to stay with 10%% speech, got %d clears", clears)
	}
}

func TestLevelMeter(t *testing.T) {
	var m levelMeter
	m.Observe(0.01)
	m.Observe(0.3)
	m.Observe(0.05)
	if got := m.Take(); got != 0.3 {
		t.Errorf("Take = %v, want 0.3", got)
	}
	if got := m.Take(); got != 0 {
		t.Errorf("Take after reset = %v, want 0", got)
	}
}

type phaseSession struct {
	phase atomic.Int32
	stops atomic.Int32
}

func (p *phaseSession) Phase() session.Phase { return session.Phase(p.phase.Load()) }

func (p *phaseSession) Stop(context.Context) error {
	p.stops.Add(1)
	return nil
}

func TestWatchSilenceEndsWithRecording(t *testing.T) {
	sess := &phaseSession{}
	sess.phase.Store(int32(session.Recording))

	done := make(chan struct{})
	go func() {
		watchSilence(sess, &levelMeter{}, true, func() bool { return true }, func(SilenceEvent) {})
		close(done)
	}()

	time.Sleep(3 * tickInterval)
	sess.phase.Store(int32(session.Uploading))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher still running after recording ended")
	}
	if sess.stops.Load() != 0 {
		t.Error("watcher stopped a recording that had not been silent long enough")
	}
}

func TestTakeCounter(t *testing.T) {
	var takes takeCounter
	first := takes.next()
	if !first() {
		t.Fatal("new take not live")
	}
	second := takes.next()
	if first() {
		t.Error("first take still live after restart")
	}
	if !second() {
		t.Error("second take not live")
	}
}

func TestWatchSilenceLeavesRestartedTake(t *testing.T) {
	sess := &phaseSession{}
	sess.phase.Store(int32(session.Recording))
	var takes takeCounter

	done := make(chan struct{})
	var events atomic.Int32
	go func() {
		watchSilence(sess, &levelMeter{}, true, takes.next(), func(SilenceEvent) { events.Add(1) })
		close(done)
	}()

	time.Sleep(3 * tickInterval)
	takes.next() // restart: still Recording, new take
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("old watcher still running after restart")
	}
	if sess.stops.Load() != 0 || events.Load() != 0 {
		t.Errorf("old watcher acted on the new take: stops=%d events=%d", sess.stops.Load(), events.Load())
	}
	if sess.Phase() != session.Recording {
		t.Errorf("phase = %s", sess.Phase())
	}
}
