package scheduler

import (
	"sync"

	"golang.org/x/sync/semaphore"
)

// Command is one trace/renderer instruction handed from the emulation
// thread to the UI thread (spec.md §5/§6): insert_texture or
// render_context records, each self-describing via Kind/Payload.
type Command struct {
	Kind    string
	Payload any
}

// CommandRing is the lock-protected, capacity-bounded channel between the
// emulation thread and the UI thread (spec.md §5). Capacity is enforced
// by a weighted semaphore rather than a blocking channel send: the
// emulation thread must never suspend, so a full ring drops the command
// instead of blocking Push.
type CommandRing struct {
	mu  sync.Mutex
	buf []Command
	sem *semaphore.Weighted
}

// NewCommandRing creates a ring that holds at most capacity commands.
func NewCommandRing(capacity int64) *CommandRing {
	return &CommandRing{sem: semaphore.NewWeighted(capacity)}
}

// Push enqueues cmd from the emulation thread. Reports false and drops
// cmd if the ring is at capacity.
func (r *CommandRing) Push(cmd Command) bool {
	if !r.sem.TryAcquire(1) {
		return false
	}
	r.mu.Lock()
	r.buf = append(r.buf, cmd)
	r.mu.Unlock()
	return true
}

// Drain removes and returns every queued command, releasing their
// semaphore slots. Called from the UI thread at its own cadence.
func (r *CommandRing) Drain() []Command {
	r.mu.Lock()
	out := r.buf
	r.buf = nil
	r.mu.Unlock()
	if len(out) > 0 {
		r.sem.Release(int64(len(out)))
	}
	return out
}
