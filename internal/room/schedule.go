package room

import (
	"container/heap"
	"time"
)

// schedule is a min-heap of one-shot events keyed by due time. Round
// intermissions and similar delays go through it so a room has a single
// source of time truth instead of scattered free-running timers.
//
// Callbacks run on the room goroutine with the room lock held.
type schedule struct {
	entries eventHeap
}

type scheduledEvent struct {
	at  time.Time
	run func(now time.Time)
}

func (s *schedule) push(at time.Time, run func(now time.Time)) {
	heap.Push(&s.entries, scheduledEvent{at: at, run: run})
}

// nextAt reports the earliest due time, if any event is pending.
func (s *schedule) nextAt() (time.Time, bool) {
	if len(s.entries) == 0 {
		return time.Time{}, false
	}
	return s.entries[0].at, true
}

// popDue removes and returns every event due at or before now, in order.
func (s *schedule) popDue(now time.Time) []scheduledEvent {
	var due []scheduledEvent
	for len(s.entries) > 0 && !s.entries[0].at.After(now) {
		due = append(due, heap.Pop(&s.entries).(scheduledEvent))
	}
	return due
}

func (s *schedule) clear() {
	s.entries = nil
}

type eventHeap []scheduledEvent

func (h eventHeap) Len() int           { return len(h) }
func (h eventHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }
func (h eventHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x any)        { *h = append(*h, x.(scheduledEvent)) }
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
