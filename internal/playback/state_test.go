package playback

import "testing"

func TestStateString(t *testing.T) {
	cases := []struct {
		state State
		want  string
	}{
		{StateIdle, "Idle"},
		{StateLoading, "Loading"},
		{StatePlaying, "Playing"},
		{StatePaused, "Paused"},
		{StateStopped, "Stopped"},
		{StateFailed, "Failed"},
		{State(99), "Unknown"},
	}
	for _, c := range cases {
		if got := c.state.String(); got != c.want {
			t.Errorf("State(%d).String() = %q, want %q", c.state, got, c.want)
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
		StateFailed:  false,
	}
	for state, want := range active {
		if got := state.IsActive(); got != want {
			t.Errorf("%s.IsActive() = %v, want %v", state, got, want)
		}
	}
}
