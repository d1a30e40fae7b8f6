package explain

// State is the position of an explanation request in its lifecycle.
// A request moves Idle -> Requesting and from there either straight to
// Succeeded, through RetryWait back to Requesting, or through Fallback
// to Succeeded/Failed. Terminal states are Succeeded and Failed.
type State int

const (
	// StateIdle is the initial state before the first model call.
	StateIdle State = iota
	// StateRequesting means a call to the primary model is in flight.
	StateRequesting
	// StateRetryWait means the gateway is backing off after a transient
	// failure and will retry the primary model.
	StateRetryWait
	// StateFallback means the primary model was given up on and the
	// fallback model is being used.
	StateFallback
	// StateSucceeded means an explanation was produced.
	StateSucceeded
	// StateFailed means no model produced an explanation.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateRetryWait:
		return "retry_wait"
	case StateFallback:
		return "fallback"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
