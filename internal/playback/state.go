package playback

// State represents the coordinator's playback state.
//
// Valid transitions:
//   - Idle/Stopped/Error → Loading   (Play/Next/Previous/JumpTo with a valid cursor)
//   - Loading → Playing              (prerolled, auto-start requested)
//   - Loading → Paused               (prerolled, auto-start withdrawn)
//   - Playing ↔ Paused               (Pause/Play/TogglePause)
//   - Playing → Loading              (end of stream with a planned next track)
//   - Playing → Stopped              (end of stream, queue exhausted)
//   - any → Stopped                  (Stop)
//   - Loading/Playing/Paused → Error (pipeline or resolution failure)
//
// Stopped and Error keep the queue and cursor intact; both accept a new
// Play/Next command and re-enter Loading. There is no terminal state.
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StatePaused
	StateStopped
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateLoading:
		return "Loading"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	case StateStopped:
		return "Stopped"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// IsActive returns true if a pipeline session is alive in this state.
func (s State) IsActive() bool {
	return s == StateLoading || s == StatePlaying || s == StatePaused
}
