// Package coordinator provides the simulation coordinator.
// This file implements stall detection over the snapshots of a run.
package coordinator

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/dreamware/bubblering/internal/cluster"
)

// ErrStalled is returned when every unfinished rank stays blocked for the
// configured number of consecutive ticks.
var ErrStalled = errors.New("simulation stalled: every unfinished rank is blocked")

const (
	// StatusProgressing means the rank's last step made progress.
	StatusProgressing = "progressing"
	// StatusBlocked means the rank's last step waited for a message.
	StatusBlocked = "blocked"
	// StatusFinished means the rank reached its terminal state.
	StatusFinished = "finished"
)

// RankProgress tracks the progress of a single rank across ticks.
// Thread-safe: Protected by StallMonitor's mutex when accessed.
type RankProgress struct {
	Status             string // Current status: "progressing", "blocked", "finished"
	Rank               int    // Rank index
	LastProgressTick   int    // Last tick in which the rank was not blocked
	ConsecutiveBlocked int    // Number of consecutive blocked ticks
}

// StallMonitor watches the snapshots of a run and detects the state in which
// no unfinished rank can advance. With a working mailbox the protocol never
// reaches it; a mailbox that loses messages does.
// Thread-safe: All methods are safe for concurrent access.
type StallMonitor struct {
	ranks        map[int]*RankProgress        // Progress per rank
	onStalled    func(tick int, blocked []int) // Callback when the system stalls
	mu           sync.RWMutex                  // Protects all fields
	threshold    int                           // Consecutive fully blocked ticks before stalling
	blockedTicks int                           // Current run of fully blocked ticks
	stalled      bool                          // Stall already reported
}

// NewStallMonitor creates a monitor that reports a stall after threshold
// consecutive ticks in which every unfinished rank is blocked.
//
// Parameters:
//   - threshold: consecutive fully blocked ticks before ErrStalled (values < 1 mean 1)
//
// Example:
//
//	monitor := NewStallMonitor(3)
//	if err := monitor.Observe(coord.Snapshot()); err != nil {
//	    // every rank is waiting on a message that will never arrive
//	}
func NewStallMonitor(threshold int) *StallMonitor {
	if threshold < 1 {
		threshold = 1
	}
	return &StallMonitor{
		ranks:     make(map[int]*RankProgress),
		threshold: threshold,
	}
}

// SetOnStalled sets the callback invoked once when the stall is first detected.
//
// Example:
//
//	monitor.SetOnStalled(func(tick int, blocked []int) {
//	    log.Printf("tick %d: ranks %v wait forever", tick, blocked)
//	})
func (m *StallMonitor) SetOnStalled(callback func(tick int, blocked []int)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStalled = callback
}

// Observe records a snapshot. It implements cluster.Observer and returns
// ErrStalled once the stall threshold is reached.
//
// Implementation:
//  1. Update every rank's progress record from its view
//  2. Count the tick as fully blocked if no unfinished rank advanced
//  3. Report the stall once the run of blocked ticks reaches the threshold
func (m *StallMonitor) Observe(s cluster.Snapshot) error {
	m.mu.Lock()

	unfinished := 0
	var blocked []int
	for _, view := range s.Ranks {
		progress, exists := m.ranks[view.Index]
		if !exists {
			progress = &RankProgress{Rank: view.Index}
			m.ranks[view.Index] = progress
		}

		switch {
		case view.Finished:
			progress.Status = StatusFinished
			progress.ConsecutiveBlocked = 0
		case view.Blocked:
			unfinished++
			blocked = append(blocked, view.Index)
			progress.Status = StatusBlocked
			progress.ConsecutiveBlocked++
		default:
			unfinished++
			progress.Status = StatusProgressing
			progress.ConsecutiveBlocked = 0
			progress.LastProgressTick = s.Tick
		}
	}

	if unfinished == 0 || len(blocked) < unfinished {
		m.blockedTicks = 0
		m.mu.Unlock()
		return nil
	}

	m.blockedTicks++
	if m.blockedTicks < m.threshold {
		m.mu.Unlock()
		return nil
	}

	callback := m.onStalled
	first := !m.stalled
	m.stalled = true
	m.mu.Unlock()

	if first {
		log.Printf("Stall detected at tick %d: ranks %v blocked for %d ticks", s.Tick, blocked, m.threshold)
		if callback != nil {
			// Call callback without holding the lock
			callback(s.Tick, blocked)
		}
	}
	return fmt.Errorf("%w (tick %d, ranks %v)", ErrStalled, s.Tick, blocked)
}

// GetRankProgress returns the progress record of a rank.
// Returns nil if the rank has not been observed.
func (m *StallMonitor) GetRankProgress(rank int) *RankProgress {
	m.mu.RLock()
	defer m.mu.RUnlock()

	progress, exists := m.ranks[rank]
	if !exists {
		return nil
	}

	// Return a copy to prevent external modification
	copied := *progress
	return &copied
}

// GetAllRankProgress returns the progress records of every observed rank.
func (m *StallMonitor) GetAllRankProgress() map[int]*RankProgress {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[int]*RankProgress, len(m.ranks))
	for rank, progress := range m.ranks {
		copied := *progress
		result[rank] = &copied
	}
	return result
}

// IsStalled returns whether a stall has been reported.
func (m *StallMonitor) IsStalled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stalled
}
