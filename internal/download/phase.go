package download

// Phase is a step of one download attempt.
type Phase string

const (
	PhaseInit       Phase = "init"
	PhaseFetching   Phase = "fetching"
	PhaseOrganizing Phase = "organizing"
	PhasePersisting Phase = "persisting"
	PhaseEmbedding  Phase = "embedding_metadata"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
	PhaseCancelled  Phase = "cancelled"
)

// IsTerminal reports whether no further phase follows.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseFailed || p == PhaseCancelled
}

// Progress is reported at each phase transition.
type Progress struct {
	Phase   Phase
	Percent int
	Text    string
}

// Reporter receives progress updates. It is called on the job goroutine.
type Reporter func(Progress)

func (r Reporter) emit(phase Phase, percent int, text string) {
	if r != nil {
		r(Progress{Phase: phase, Percent: percent, Text: text})
	}
}
