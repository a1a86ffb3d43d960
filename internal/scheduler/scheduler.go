// Package scheduler implements the drift-free priority-queue scheduler
// (component F): a single dispatcher task driving probe execution at
// microsecond precision, anchored to a fixed global epoch rather than to
// wall-clock jitter between ticks.
package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimechecker/internal/clock"
	"github.com/hamed0406/uptimechecker/internal/cluster"
	"github.com/hamed0406/uptimechecker/internal/domain"
)

// ProbeFunc performs one probe for check at its theoretical scheduled time
// and is responsible for persisting the result. It returns nothing: probe
// outcomes are data, not failures, and any write error is handled inside
// the function itself.
type ProbeFunc func(ctx context.Context, check domain.Check, scheduledAtMicros uint64)

type entry struct {
	checkID       uuid.UUID
	check         domain.Check
	freqMicros    uint64
	nextDueMicros uint64
	index         int // heap.Interface bookkeeping
}

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].nextDueMicros != h[j].nextDueMicros {
		return h[i].nextDueMicros < h[j].nextDueMicros
	}
	return h[i].checkID.String() < h[j].checkID.String()
}
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Scheduler is the single-writer dispatch loop. All heap mutation happens
// on the goroutine running Run; once Run has started, AddCheck/RemoveCheck
// are only safe to call from that goroutine, which applies them for each
// OwnershipEvent it receives. Calling them before Run starts is also safe.
type Scheduler struct {
	Clock         clock.Clock
	Log           *zap.Logger
	MaxConcurrent int
	TickInterval  time.Duration
	Probe         ProbeFunc

	h       entryHeap
	byCheck map[uuid.UUID]*entry
	sem     chan struct{}
	wg      sync.WaitGroup

	missedTicks int64
}

func New(clk clock.Clock, log *zap.Logger, maxConcurrent int, tickInterval time.Duration, probe ProbeFunc) *Scheduler {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Scheduler{
		Clock:         clk,
		Log:           log,
		MaxConcurrent: maxConcurrent,
		TickInterval:  tickInterval,
		Probe:         probe,
		byCheck:       make(map[uuid.UUID]*entry),
		sem:           make(chan struct{}, maxConcurrent),
	}
}

// MissedTicks reports the running count of ticks fast-forwarded past
// because the dispatcher fell behind wall time.
func (s *Scheduler) MissedTicks() int64 { return atomic.LoadInt64(&s.missedTicks) }

// AddCheck inserts a check at its first aligned due time: align(now, freq).
// Re-adding an already-scheduled check id is a no-op.
func (s *Scheduler) AddCheck(c domain.Check) {
	if _, ok := s.byCheck[c.CheckID]; ok {
		return
	}
	freq := uint64(c.CheckFrequencySecs) * 1_000_000
	now := s.Clock.NowMicros()
	e := &entry{
		checkID:       c.CheckID,
		check:         c,
		freqMicros:    freq,
		nextDueMicros: domain.AlignUp(now, freq),
	}
	s.byCheck[c.CheckID] = e
	heap.Push(&s.h, e)
}

// RemoveCheck drops a check from the queue. An in-flight probe for it (if
// any) is allowed to complete and write its result; only future scheduling
// stops.
func (s *Scheduler) RemoveCheck(id uuid.UUID) {
	e, ok := s.byCheck[id]
	if !ok {
		return
	}
	if e.index >= 0 && e.index < len(s.h) {
		heap.Remove(&s.h, e.index)
	}
	delete(s.byCheck, id)
}

// Run drains ownership events and dispatches due checks until ctx is
// cancelled, then waits up to drain for in-flight probes to finish.
func (s *Scheduler) Run(ctx context.Context, events <-chan cluster.OwnershipEvent, drain time.Duration) {
	tick := s.TickInterval
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	t := time.NewTicker(tick)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Log.Info("scheduler_stopping", zap.Duration("drain", drain))
			waitWithTimeout(&s.wg, drain)
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.applyEvent(ev)
		case <-t.C:
			s.dispatchDue(ctx)
		}
	}
}

func (s *Scheduler) applyEvent(ev cluster.OwnershipEvent) {
	switch ev.Kind {
	case cluster.CheckAdded:
		s.AddCheck(ev.Check)
	case cluster.CheckRemoved:
		s.RemoveCheck(ev.Check.CheckID)
	}
}

// dispatchDue pops every entry whose due time has arrived and hands it to
// the probe executor through the bounded semaphore. If the pool is
// saturated, acquiring the semaphore blocks this single dispatcher
// goroutine — the entry is not re-inserted until after dispatch, matching
// the scheduler's suspension semantics: dispatch blocks rather than drops.
func (s *Scheduler) dispatchDue(ctx context.Context) {
	for s.h.Len() > 0 && s.h[0].nextDueMicros <= s.Clock.NowMicros() {
		e := heap.Pop(&s.h).(*entry)
		scheduledAt := e.nextDueMicros

		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			// put it back so a future leader (or restart) can pick it up;
			// here there is none, so just stop dispatching this tick.
			e.index = 0
			heap.Push(&s.h, e)
			return
		}

		s.wg.Add(1)
		go func(e *entry, scheduledAt uint64) {
			defer s.wg.Done()
			defer func() { <-s.sem }()
			s.Probe(ctx, e.check, scheduledAt)
		}(e, scheduledAt)

		now := s.Clock.NowMicros()
		newDue := scheduledAt + e.freqMicros
		for newDue <= now {
			newDue += e.freqMicros
			atomic.AddInt64(&s.missedTicks, 1)
		}
		e.nextDueMicros = newDue
		s.byCheck[e.checkID] = e
		heap.Push(&s.h, e)
	}
}

func waitWithTimeout(wg *sync.WaitGroup, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}
