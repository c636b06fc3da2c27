package engine

import "testing"

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Stopped, "Stopped"},
		{Loading, "Loading"},
		{Playing, "Playing"},
		{Paused, "Paused"},
		{State(99), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestState_IsActive(t *testing.T) {
	if Stopped.IsActive() || Loading.IsActive() {
		t.Error("Stopped/Loading should not be active")
	}
	if !Playing.IsActive() || !Paused.IsActive() {
		t.Error("Playing/Paused should be active")
	}
}

func TestEventType_String(t *testing.T) {
	if EventCompleted.String() != "Completed" {
		t.Errorf("EventCompleted.String() = %q", EventCompleted.String())
	}
	if EventFailed.String() != "Failed" {
		t.Errorf("EventFailed.String() = %q", EventFailed.String())
	}
}
