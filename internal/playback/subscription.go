package playback

const eventBufferSize = 16

// Subscription provides event channels for a subscriber. Sends are
// non-blocking: a slow subscriber drops events rather than stalling the
// orchestrator.
type Subscription struct {
	StateChanged    <-chan StateChange
	ItemChanged     <-chan ItemChange
	QueueChanged    <-chan QueueChange
	PositionChanged <-chan PositionChange
	RateChanged     <-chan RateChange
	Error           <-chan ErrorEvent
	Done            <-chan struct{}

	// Internal write channels
	stateCh    chan StateChange
	itemCh     chan ItemChange
	queueCh    chan QueueChange
	positionCh chan PositionChange
	rateCh     chan RateChange
	errorCh    chan ErrorEvent
	doneCh     chan struct{}
}

// newSubscription creates a new subscription with buffered channels.
func newSubscription() *Subscription {
	s := &Subscription{
		stateCh:    make(chan StateChange, eventBufferSize),
		itemCh:     make(chan ItemChange, eventBufferSize),
		queueCh:    make(chan QueueChange, eventBufferSize),
		positionCh: make(chan PositionChange, eventBufferSize),
		rateCh:     make(chan RateChange, eventBufferSize),
		errorCh:    make(chan ErrorEvent, eventBufferSize),
		doneCh:     make(chan struct{}),
	}
	s.StateChanged = s.stateCh
	s.ItemChanged = s.itemCh
	s.QueueChanged = s.queueCh
	s.PositionChanged = s.positionCh
	s.RateChanged = s.rateCh
	s.Error = s.errorCh
	s.Done = s.doneCh
	return s
}

// close signals subscribers to stop by closing doneCh.
func (s *Subscription) close() {
	close(s.doneCh)
}

func (s *Subscription) sendState(e StateChange) {
	select {
	case s.stateCh <- e:
	default:
		// Drop if buffer full
	}
}

func (s *Subscription) sendItem(e ItemChange) {
	select {
	case s.itemCh <- e:
	default:
	}
}

func (s *Subscription) sendQueue(e QueueChange) {
	select {
	case s.queueCh <- e:
	default:
	}
}

func (s *Subscription) sendPosition(e PositionChange) {
	select {
	case s.positionCh <- e:
	default:
	}
}

func (s *Subscription) sendRate(e RateChange) {
	select {
	case s.rateCh <- e:
	default:
	}
}

func (s *Subscription) sendError(e ErrorEvent) {
	select {
	case s.errorCh <- e:
	default:
	}
}
