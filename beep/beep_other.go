//go:build !linux && !darwin

package beep

// No audio playback here; cues are silent.

func Init()        {}
func PlayStart()   {}
func PlayEnd()     {}
func PlayResults() {}
func PlayError()   {}
