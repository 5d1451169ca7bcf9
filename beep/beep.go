// Package beep plays the short audible cues around a search: recording
// started, recording stopped, results arrived and failure.
package beep

import "math"

var disabled bool

func Disable() { disabled = true }

type Cue int

const (
	None Cue = iota
	Start
	End
	Results
	Error
)

func (c Cue) String() string {
	switch c {
	case Start:
		return "start"
	case End:
		return "end"
	case Results:
		return "results"
	case Error:
		return "error"
	default:
		return "none"
	}
}

// Play is the single entry point used by callers; it never blocks on audio.
func Play(c Cue) {
	switch c {
	case Start:
		PlayStart()
	case End:
		PlayEnd()
	case Results:
		PlayResults()
	case Error:
		PlayError()
	}
}

const (
	sampleRate = 44100

	// Start beep: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// End beep: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// Results chime: two rising notes
	resultsLow    = 660
	resultsHigh   = 990
	resultsVolume = 0.4
	resultsDecay  = 25

	// Error beep: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)

// tick renders a decaying sine as mono PCM16.
func tick(freq, duration, volume, decay float64) []int16 {
	n := int(float64(sampleRate) * duration)
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

// pair joins two ticks with a silent gap.
func pair(a, b []int16, gap float64) []int16 {
	silence := make([]int16, int(float64(sampleRate)*gap))
	out := make([]int16, 0, len(a)+len(silence)+len(b))
	out = append(out, a...)
	out = append(out, silence...)
	return append(out, b...)
}

func doubleBeep(freq, beepDur, gapDur, volume, decay float64) []int16 {
	b := tick(freq, beepDur, volume, decay)
	return pair(b, b, gapDur)
}

func resultsChime(duration float64) []int16 {
	return pair(
		tick(resultsLow, duration, resultsVolume, resultsDecay),
		tick(resultsHigh, duration, resultsVolume, resultsDecay),
		0.02,
	)
}
