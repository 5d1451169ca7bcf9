package hotkey

import "time"

// Toggler turns raw key events into record-button presses. A tap emits one
// press. Holding the key past longPress emits a second press on release, so
// the same shortcut works as tap-to-toggle and hold-to-talk.
type Toggler struct {
	presses chan struct{}
	done    chan struct{}
}

// NewToggler starts reading hk. A longPress of zero disables hold-to-talk.
func NewToggler(hk Hotkey, longPress time.Duration) *Toggler {
	t := &Toggler{
		presses: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go t.run(hk, longPress)
	return t
}

func (t *Toggler) Presses() <-chan struct{} { return t.presses }

func (t *Toggler) Stop() {
	select {
	case <-t.done:
	default:
		close(t.done)
	}
}

func (t *Toggler) emit() bool {
	select {
	case t.presses <- struct{}{}:
		return true
	case <-t.done:
		return false
	}
}

func (t *Toggler) run(hk Hotkey, longPress time.Duration) {
	for {
		select {
		case <-hk.Keydown():
		case <-hk.Keyup():
			continue
		case <-t.done:
			return
		}
		if !t.emit() {
			return
		}
		if longPress <= 0 {
			continue
		}

		timer := time.NewTimer(longPress)
		select {
		case <-timer.C:
			// held: release ends the take
			select {
			case <-hk.Keyup():
			case <-t.done:
				return
			}
			if !t.emit() {
				return
			}
		case <-hk.Keyup():
			timer.Stop()
		case <-t.done:
			timer.Stop()
			return
		}
	}
}
