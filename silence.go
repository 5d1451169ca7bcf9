package main

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"voxplaces/beep"
	"voxplaces/log"
	"voxplaces/session"
)

const (
	tickInterval        = 100 * time.Millisecond
	silenceWarnEvery    = 8 * time.Second
	silenceAutoCloseDur = 30 * time.Second
	speechMinRatio      = 0.10
	speechClearRatio    = 0.25 // higher threshold to clear warning (hysteresis)

	// speechLevel is the peak RMS within a tick that counts as voice.
	speechLevel = 0.02
)

type SilenceEvent int

const (
	SilenceNone      SilenceEvent = iota
	SilenceWarn                   // no voice detected
	SilenceWarnClear              // speech resumed after warning
	SilenceRepeat                 // repeat cue (every 8s)
	SilenceAutoClose              // stop a forgotten recording
)

type silenceMonitor struct {
	warnAt    int
	windowSz  int
	autoClose bool

	ticks       int
	window      []bool
	speechCount int
	warned      bool
	lastBeep    int
}

func newSilenceMonitor(autoClose bool) *silenceMonitor {
	warnAt := int(silenceWarnEvery / tickInterval)
	windowSz := int(silenceAutoCloseDur / tickInterval)
	return &silenceMonitor{
		warnAt:    warnAt,
		windowSz:  windowSz,
		autoClose: autoClose,
		window:    make([]bool, windowSz),
	}
}

func (m *silenceMonitor) ratio(n int) float64 {
	if m.ticks < n {
		n = m.ticks
	}
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+m.windowSz)%m.windowSz] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *silenceMonitor) Tick(hasSpeech bool) SilenceEvent {
	idx := m.ticks % m.windowSz
	if m.ticks >= m.windowSz && m.window[idx] {
		m.speechCount--
	}
	m.window[idx] = hasSpeech
	if hasSpeech {
		m.speechCount++
	}
	m.ticks++

	r := m.ratio(m.warnAt)

	if m.ticks >= m.warnAt && r < speechMinRatio && !m.warned {
		m.warned = true
		m.lastBeep = m.ticks
		return SilenceWarn
	}
	if m.warned && r >= speechClearRatio {
		m.warned = false
		return SilenceWarnClear
	}

	if !m.autoClose {
		return SilenceNone
	}

	// Auto-close is checked before repeat.
	if m.ticks >= m.windowSz && float64(m.speechCount)/float64(m.windowSz) < speechMinRatio {
		return SilenceAutoClose
	}

	if m.warned && m.ticks-m.lastBeep >= m.warnAt {
		m.lastBeep = m.ticks
		return SilenceRepeat
	}

	return SilenceNone
}

// levelMeter keeps the loudest level seen since the last Take.
type levelMeter struct {
	mu   sync.Mutex
	peak float64
}

func (l *levelMeter) Observe(level float64) {
	l.mu.Lock()
	l.peak = max(l.peak, level)
	l.mu.Unlock()
}

func (l *levelMeter) Take() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.peak
	l.peak = 0
	return p
}

// recordingSession is the part of the session the silence watcher drives.
type recordingSession interface {
	Phase() session.Phase
	Stop(ctx context.Context) error
}

// takeCounter numbers recordings so a watcher can tell when the take it was
// started for has been replaced by a restart.
type takeCounter struct {
	n atomic.Uint64
}

// next starts a new take and returns a check that holds until the one after.
func (c *takeCounter) next() func() bool {
	id := c.n.Add(1)
	return func() bool { return c.n.Load() == id }
}

// watchSilence samples meter every tick while its take is live and sess is
// Recording. A take that stays silent for silenceAutoCloseDur is stopped.
func watchSilence(sess recordingSession, meter *levelMeter, autoClose bool, live func() bool, notify func(SilenceEvent)) {
	meter.Take()
	mon := newSilenceMonitor(autoClose)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for range ticker.C {
		if !live() || sess.Phase() != session.Recording {
			return
		}
		ev := mon.Tick(meter.Take() >= speechLevel)
		if ev == SilenceNone {
			continue
		}
		if ev == SilenceAutoClose {
			if !live() {
				return
			}
			if err := sess.Stop(context.Background()); err != nil {
				log.Warnf("silence auto-close: %v", err)
			}
			notify(ev)
			return
		}
		notify(ev)
	}
}

// silenceNotify reports silence events to the TUI, the log and the speaker.
func silenceNotify(ev SilenceEvent) {
	switch ev {
	case SilenceWarn:
		log.Info("no_voice_warning")
		tuiSend(NoVoiceMsg{On: true})
		go beep.Play(beep.Error)
	case SilenceWarnClear:
		tuiSend(NoVoiceMsg{On: false})
	case SilenceRepeat:
		log.Info("silence_during_warning")
		go beep.Play(beep.Error)
	case SilenceAutoClose:
		log.Info("silence_auto_close")
		logToTUI("stopped after %s without speech", silenceAutoCloseDur)
	}
}
