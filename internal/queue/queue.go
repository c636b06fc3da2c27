package queue

import (
	"time"

	zlog "github.com/rs/zerolog/log"
)

// PlayingQueue is the ordered collection of items plus the current-index
// cursor. Insertion order is playback order. It is the single source of
// truth for "what plays next" and is owned by exactly one orchestrator,
// which serializes access; the queue itself is not safe for concurrent use.
//
// Invariant: currentIndex == -1 iff the queue is empty, otherwise
// 0 <= currentIndex < Len(). Every mutation re-establishes it; a violation
// is a programming error and is clamped (and logged) rather than propagated.
type PlayingQueue struct {
	items        []Item
	currentIndex int
}

// NewQueue creates a new empty playing queue.
func NewQueue() *PlayingQueue {
	return &PlayingQueue{currentIndex: -1}
}

// Restore builds a queue from persisted items and cursor, clamping the
// cursor if the stored value no longer fits the item count.
func Restore(items []Item, cursor int) *PlayingQueue {
	q := &PlayingQueue{
		items:        append([]Item(nil), items...),
		currentIndex: cursor,
	}
	q.clamp()
	return q
}

// Current returns the item under the cursor, or nil if none.
func (q *PlayingQueue) Current() *Item {
	if q.currentIndex < 0 || q.currentIndex >= len(q.items) {
		return nil
	}
	return &q.items[q.currentIndex]
}

// CurrentIndex returns the cursor position (-1 if nothing selected).
func (q *PlayingQueue) CurrentIndex() int {
	return q.currentIndex
}

// Append adds items to the end of the queue. If the queue was empty, the
// cursor moves to the first appended item.
func (q *PlayingQueue) Append(items ...Item) {
	if len(items) == 0 {
		return
	}
	wasEmpty := len(q.items) == 0
	q.items = append(q.items, items...)
	if wasEmpty {
		q.currentIndex = 0
	}
	q.clamp()
}

// RemoveAt removes the item at index. Returns false if out of bounds.
//
// Cursor adjustment: removing below the cursor shifts it down by one;
// removing the cursor item keeps the same numeric position (now pointing
// at the next item), clamped to the new last index, or -1 if now empty.
func (q *PlayingQueue) RemoveAt(index int) bool {
	if index < 0 || index >= len(q.items) {
		return false
	}
	q.items = append(q.items[:index], q.items[index+1:]...)
	if q.currentIndex > index {
		q.currentIndex--
	} else if q.currentIndex == index && q.currentIndex >= len(q.items) {
		q.currentIndex = len(q.items) - 1
	}
	q.clamp()
	return true
}

// Move moves the item at from to position to. The cursor is remapped so it
// keeps pointing at the same logical item. Returns false if out of bounds.
func (q *PlayingQueue) Move(from, to int) bool {
	if from < 0 || from >= len(q.items) || to < 0 || to >= len(q.items) {
		return false
	}
	if from == to {
		return true
	}
	item := q.items[from]
	q.items = append(q.items[:from], q.items[from+1:]...)
	q.items = append(q.items[:to], append([]Item{item}, q.items[to:]...)...)

	switch {
	case q.currentIndex == from:
		q.currentIndex = to
	case from < q.currentIndex && to >= q.currentIndex:
		q.currentIndex--
	case from > q.currentIndex && to <= q.currentIndex:
		q.currentIndex++
	}
	q.clamp()
	return true
}

// Clear removes all items and resets the cursor.
func (q *PlayingQueue) Clear() {
	q.items = q.items[:0]
	q.currentIndex = -1
}

// SetCursor jumps the cursor to index. No-op (returns false) if invalid.
func (q *PlayingQueue) SetCursor(index int) bool {
	if index < 0 || index >= len(q.items) {
		return false
	}
	q.currentIndex = index
	return true
}

// HasNext reports whether an item exists after the cursor.
func (q *PlayingQueue) HasNext() bool {
	return q.currentIndex >= 0 && q.currentIndex < len(q.items)-1
}

// HasPrevious reports whether an item exists before the cursor.
func (q *PlayingQueue) HasPrevious() bool {
	return q.currentIndex > 0
}

// IndexOf returns the position of the item with the given id, or -1.
func (q *PlayingQueue) IndexOf(id string) int {
	for i := range q.items {
		if q.items[i].ID == id {
			return i
		}
	}
	return -1
}

// Item returns the item at index, or nil if out of bounds.
func (q *PlayingQueue) Item(index int) *Item {
	if index < 0 || index >= len(q.items) {
		return nil
	}
	return &q.items[index]
}

// Items returns a copy of all items in playback order.
func (q *PlayingQueue) Items() []Item {
	result := make([]Item, len(q.items))
	copy(result, q.items)
	return result
}

// Len returns the number of items.
func (q *PlayingQueue) Len() int {
	return len(q.items)
}

// IsEmpty reports whether the queue has no items.
func (q *PlayingQueue) IsEmpty() bool {
	return len(q.items) == 0
}

// SetResource records the resolved resource for the item with the given id.
// Returns false if the item is no longer in the queue.
func (q *PlayingQueue) SetResource(id string, res Resource) bool {
	i := q.IndexOf(id)
	if i < 0 {
		return false
	}
	q.items[i].Resource = res
	return true
}

// SetPosition records the resume position for the item with the given id.
func (q *PlayingQueue) SetPosition(id string, pos time.Duration) bool {
	i := q.IndexOf(id)
	if i < 0 {
		return false
	}
	if pos < 0 {
		pos = 0
	}
	q.items[i].Position = pos
	return true
}

// SetDuration records the total duration for the item with the given id.
func (q *PlayingQueue) SetDuration(id string, d time.Duration) bool {
	i := q.IndexOf(id)
	if i < 0 || d <= 0 {
		return false
	}
	q.items[i].Duration = d
	return true
}

// Validate reports whether the cursor invariant holds. Mutations clamp on
// violation, so this only returns an error if the queue was corrupted from
// outside; tests call it after every mutation sequence.
func (q *PlayingQueue) Validate() error {
	if len(q.items) == 0 {
		if q.currentIndex != -1 {
			return errInvariant(q.currentIndex, 0)
		}
		return nil
	}
	if q.currentIndex < 0 || q.currentIndex >= len(q.items) {
		return errInvariant(q.currentIndex, len(q.items))
	}
	return nil
}

// clamp re-establishes the cursor invariant, logging if it was broken.
func (q *PlayingQueue) clamp() {
	if err := q.Validate(); err == nil {
		return
	}
	zlog.Error().
		Int("cursor", q.currentIndex).
		Int("len", len(q.items)).
		Msg("queue cursor out of range, clamping")
	switch {
	case len(q.items) == 0:
		q.currentIndex = -1
	case q.currentIndex < 0:
		q.currentIndex = 0
	default:
		q.currentIndex = len(q.items) - 1
	}
}
