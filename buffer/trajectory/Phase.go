package trajectory

// Phase denotes where an agent is in the two-phase write protocol
type Phase int

const (
	// Committed means every recorded decision has a committed outcome.
	// The next write should be a decision.
	Committed Phase = iota

	// AwaitingOutcome means a decision has been recorded and its
	// outcome window is still open
	AwaitingOutcome
)

func (p Phase) String() string {
	switch p {
	case AwaitingOutcome:
		return "AwaitingOutcome"
	default:
		return "Committed"
	}
}
