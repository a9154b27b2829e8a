package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseDispatch Phase = iota // 0: deliver last tick's events
	PhaseTick                  // 1: entity tick listeners
	PhaseCleanup               // 2: flush queued deletions

	phaseCount
)

func (p Phase) String() string {
	switch p {
	case PhaseDispatch:
		return "dispatch"
	case PhaseTick:
		return "tick"
	case PhaseCleanup:
		return "cleanup"
	}
	return "unknown"
}

// System is one stage of a tick.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
