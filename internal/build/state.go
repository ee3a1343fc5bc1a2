package build

// State is a phase of one build run. States only move forward.
type State int

const (
	StateIdle State = iota
	StateInitializing
	StateScanning
	StateProcessing
	StateFinalizing
	StateDone
)

var stateNames = [...]string{"idle", "initializing", "scanning", "processing", "finalizing", "done"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
