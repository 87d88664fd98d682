package playback

import "testing"

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "Idle"},
		{StateLoading, "Loading"},
		{StatePlaying, "Playing"},
		{StatePaused, "Paused"},
		{StateStopped, "Stopped"},
		{StateError, "Error"},
		{State(99), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestStateIsActive(t *testing.T) {
	active := map[State]bool{
		StateIdle:    false,
		StateLoading: true,
		StatePlaying: true,
		StatePaused:  true,
		StateStopped: false,
		StateError:   false,
	}
	for state, want := range active {
		if got := state.IsActive(); got != want {
			t.Errorf("%v.IsActive() = %v, want %v", state, got, want)
		}
	}
}
