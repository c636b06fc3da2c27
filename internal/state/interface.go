package state

// Interface defines the durable-store contract for dependency injection
// and testing.
type Interface interface {
	GetQueue() (*QueueState, error)
	SaveQueue(state QueueState) error
	SaveQueueDebounced(state QueueState)
	GetSettings() (*Settings, error)
	SaveSettings(s Settings) error
	Close() error
}

// Verify Manager implements Interface at compile time.
var _ Interface = (*Manager)(nil)
