// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Playback operations
	OpPlaybackStart Op = "start playback"
	OpPlaybackSeek  Op = "seek"
	OpPlaybackRate  Op = "change playback rate"

	// Queue operations
	OpQueueLoad    Op = "load queue"
	OpQueueSave    Op = "save queue"
	OpQueueAdd     Op = "add to queue"
	OpQueueRemove  Op = "remove from queue"
	OpQueueReorder Op = "reorder queue"

	// Resolution operations
	OpNarrationGenerate Op = "generate narration"
	OpEpisodeValidate   Op = "validate episode stream"
	OpAudioFetch        Op = "fetch audio"

	// Settings
	OpSettingsSave Op = "save settings"

	// Initialization
	OpConnect Op = "connect playback service"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
