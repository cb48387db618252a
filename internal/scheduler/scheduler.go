// Package scheduler implements the cooperative, single-threaded scheduler
// that advances the SH4, ARM7/AICA, and timer-driven peripherals by
// clock-accurate cycle budgets (spec.md §4.9).
package scheduler

import (
	"container/heap"
)

// Device is anything the scheduler drives by cycle budget: the SH4 core,
// the ARM7 audio CPU, or a timer-driven peripheral.
type Device interface {
	// Name identifies the device in logs and debug-console output.
	Name() string
	// HzRate is the device's clock rate.
	HzRate() uint64
	// Execute runs up to cycles guest cycles and reports how many it
	// actually ran (a device may run fewer, e.g. a block straddling the
	// budget boundary).
	Execute(cycles int64) int64
}

type deviceState struct {
	dev        Device
	advancedNs uint64
}

// Scheduler owns the monotonic time base, the registered devices (run in
// registration order every slice, per §5's ordering guarantee), and the
// timer min-heap.
type Scheduler struct {
	base    uint64
	devices []*deviceState
	timers  timerHeap
	byHandle map[Handle]*timer
	nextHandle Handle
}

// New creates a scheduler with the time base starting at baseNs.
func New(baseNs uint64) *Scheduler {
	return &Scheduler{base: baseNs, byHandle: map[Handle]*timer{}}
}

// Now returns the current base time in nanoseconds.
func (s *Scheduler) Now() uint64 { return s.base }

// RegisterDevice adds dev to the registration-ordered device list.
func (s *Scheduler) RegisterDevice(dev Device) {
	s.devices = append(s.devices, &deviceState{dev: dev})
}

// AddTimer schedules cb to fire delay nanoseconds from now. If period is
// nonzero the timer is periodic and reinserts with expire += period after
// every firing; otherwise it fires once.
func (s *Scheduler) AddTimer(delay, period uint64, cb func()) Handle {
	s.nextHandle++
	h := s.nextHandle
	t := &timer{expire: s.base + delay, period: period, cb: cb, handle: h, pending: true}
	s.byHandle[h] = t
	heap.Push(&s.timers, t)
	return h
}

// CancelTimer removes the timer and frees its handle immediately.
func (s *Scheduler) CancelTimer(h Handle) {
	t, ok := s.byHandle[h]
	if !ok {
		return
	}
	delete(s.byHandle, h)
	if t.pending && t.index >= 0 {
		heap.Remove(&s.timers, t.index)
	}
	t.pending = false
}

// Tick advances the time base by delta nanoseconds in slices, each
// running until the next event (either base+delta or the earliest
// timer). Every device is run for cycles_to_run = slice_ns*hz/1e9 guest
// cycles per slice, in registration order; after all devices advance,
// every timer with expiration <= base fires (spec.md §4.9, §5's ordering
// guarantee).
func (s *Scheduler) Tick(delta uint64) {
	target := s.base + delta
	for s.base < target {
		next := target
		if len(s.timers) > 0 && s.timers[0].expire < next {
			next = s.timers[0].expire
		}
		sliceNs := next - s.base

		for _, ds := range s.devices {
			cyclesToRun := int64(sliceNs) * int64(ds.dev.HzRate()) / 1_000_000_000
			if cyclesToRun <= 0 {
				continue
			}
			actual := ds.dev.Execute(cyclesToRun)
			if actual > 0 {
				ds.advancedNs += uint64(actual) * 1_000_000_000 / ds.dev.HzRate()
			}
		}

		s.base = next

		for len(s.timers) > 0 && s.timers[0].expire <= s.base {
			t := heap.Pop(&s.timers).(*timer)
			delete(s.byHandle, t.handle)
			t.pending = false
			t.cb()
			if t.period > 0 {
				t.expire += t.period
				t.pending = true
				s.byHandle[t.handle] = t
				heap.Push(&s.timers, t)
			}
		}
	}
}
