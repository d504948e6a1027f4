// Package schedule holds invocations whose execute time has not yet
// arrived. It is the in-memory counterpart of huey's consumer.schedule:
// a dict keyed by task_id, made safe for concurrent use by the receiver
// and scheduler-tick goroutines.
package schedule

import (
	"sort"
	"sync"
	"time"

	"github.com/nrutten/huework/internal/task"
)

// Schedule is a mutex-guarded, time-ordered set of pending invocations.
type Schedule struct {
	mu      sync.Mutex
	byID    map[string]*task.Invocation
	seqByID map[string]uint64
	nextSeq uint64
}

func New() *Schedule {
	return &Schedule{
		byID:    make(map[string]*task.Invocation),
		seqByID: make(map[string]uint64),
	}
}

// Add inserts or replaces inv, keyed by its TaskID. Each call stamps inv
// with the next insertion sequence number, which Due uses to break ties
// between entries sharing an ExecuteTime.
func (s *Schedule) Add(inv *task.Invocation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[inv.TaskID] = inv
	s.nextSeq++
	s.seqByID[inv.TaskID] = s.nextSeq
}

// Remove deletes the entry for taskID, if present.
func (s *Schedule) Remove(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, taskID)
	delete(s.seqByID, taskID)
}

// Contains reports whether taskID currently has a pending entry.
func (s *Schedule) Contains(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byID[taskID]
	return ok
}

// Len returns the number of pending entries.
func (s *Schedule) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// Due atomically removes and returns every entry whose ExecuteTime is at
// or before now, ordered non-decreasing by ExecuteTime (ties in
// ExecuteTime broken by insertion order, oldest Add first).
func (s *Schedule) Due(now time.Time) []*task.Invocation {
	s.mu.Lock()
	defer s.mu.Unlock()

	type dueEntry struct {
		inv *task.Invocation
		seq uint64
	}
	var entries []dueEntry
	for id, inv := range s.byID {
		if inv.Due(now) {
			entries = append(entries, dueEntry{inv: inv, seq: s.seqByID[id]})
			delete(s.byID, id)
			delete(s.seqByID, id)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		ti, tj := entries[i].inv.ExecuteTime, entries[j].inv.ExecuteTime
		switch {
		case ti == nil && tj == nil:
			return entries[i].seq < entries[j].seq
		case ti == nil:
			return true
		case tj == nil:
			return false
		case !ti.Equal(*tj):
			return ti.Before(*tj)
		default:
			return entries[i].seq < entries[j].seq
		}
	})

	due := make([]*task.Invocation, len(entries))
	for i, e := range entries {
		due[i] = e.inv
	}
	return due
}

// Snapshot returns every currently pending entry in insertion order, for
// persistence.
func (s *Schedule) Snapshot() []*task.Invocation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*task.Invocation, 0, len(s.byID))
	for _, inv := range s.byID {
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool {
		return s.seqByID[out[i].TaskID] < s.seqByID[out[j].TaskID]
	})
	return out
}

// Restore replaces the current contents with entries, used when loading a
// persisted schedule at startup. entries must be in insertion order (as
// returned by Snapshot) so that ties in ExecuteTime resolve the same way
// after a restart as they did before it.
func (s *Schedule) Restore(entries []*task.Invocation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID = make(map[string]*task.Invocation, len(entries))
	s.seqByID = make(map[string]uint64, len(entries))
	s.nextSeq = 0
	for _, inv := range entries {
		s.byID[inv.TaskID] = inv
		s.nextSeq++
		s.seqByID[inv.TaskID] = s.nextSeq
	}
}
