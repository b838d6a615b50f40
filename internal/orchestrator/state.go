package orchestrator

// State is the orchestrator's lifecycle phase. The machine starts Idle,
// walks Building → Starting → Restarting → Running within a cycle, and
// always returns to Idle, via Failed when the cycle was cut short.
type State string

const (
	StateIdle       State = "idle"
	StateBuilding   State = "building"
	StateStarting   State = "starting"
	StateRestarting State = "restarting"
	StateRunning    State = "running"
	StateFailed     State = "failed"
)

func (s State) String() string { return string(s) }
