package session

// Phase is the single discriminator for what the session is doing.
type Phase int

const (
	Idle Phase = iota
	Recording
	Uploading
	ResultsReady
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Uploading:
		return "uploading"
	case ResultsReady:
		return "results_ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// CanStart reports whether the record toggle starts a capture in this phase.
func (p Phase) CanStart() bool {
	return p == Idle || p == ResultsReady || p == Failed
}

// CanReset reports whether the reset control is offered in this phase.
func (p Phase) CanReset() bool {
	return p == ResultsReady || p == Failed
}
