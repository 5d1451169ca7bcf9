package beep

import "testing"

func TestTickLength(t *testing.T) {
	s := tick(startFreq, 0.2, startVolume, startDecay)
	if want := int(sampleRate * 0.2); len(s) != want {
		t.Errorf("len = %d, want %d", len(s), want)
	}
	if s[0] != 0 {
		t.Errorf("first sample = %d, want 0", s[0])
	}
}

func TestTickDecays(t *testing.T) {
	s := tick(startFreq, 0.2, startVolume, startDecay)
	peak := func(from, to int) int16 {
		var m int16
		for _, v := range s[from:to] {
			if v < 0 {
				v = -v
			}
			if v > m {
				m = v
			}
		}
		return m
	}
	q := len(s) / 4
	if early, late := peak(0, q), peak(3*q, len(s)); late >= early {
		t.Errorf("no decay: early peak %d, late peak %d", early, late)
	}
}

func TestDoubleBeepHasGap(t *testing.T) {
	b := tick(errorFreq, 0.08, errorVolume, errorDecay)
	d := doubleBeep(errorFreq, 0.08, 0.05, errorVolume, errorDecay)
	gap := int(sampleRate * 0.05)
	if len(d) != 2*len(b)+gap {
		t.Fatalf("len = %d, want %d", len(d), 2*len(b)+gap)
	}
	for i := len(b); i < len(b)+gap; i++ {
		if d[i] != 0 {
			t.Fatalf("gap sample %d = %d, want silence", i, d[i])
		}
	}
}

func TestPlayDisabled(t *testing.T) {
	Disable()
	for _, c := range []Cue{None, Start, End, Results, Error} {
		Play(c)
	}
}

func TestCueString(t *testing.T) {
	for c, want := range map[Cue]string{None: "none", Start: "start", End: "end", Results: "results", Error: "error"} {
		if got := c.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", c, got, want)
		}
	}
}
