package cluster

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// Element is one entry of the global sequence.
// Nr is the element's original global index and travels with the value,
// so the final layout shows where every element came from.
type Element struct {
	Nr  int     `json:"nr"`
	Val float64 `json:"val"`
}

// Greater reports whether e sorts after other.
// Only Val takes part; equal values never swap.
func (e Element) Greater(other Element) bool {
	return e.Val > other.Val
}

// String formats the element the way the MPI report prints it: (nr, val).
func (e Element) String() string {
	return fmt.Sprintf("(%d, %.1f)", e.Nr, e.Val)
}

// HighlightKind classifies why a local index is highlighted after a step.
type HighlightKind string

const (
	// HighlightCompare marks the two elements of a local compare.
	HighlightCompare HighlightKind = "compare"
	// HighlightSwap marks an element replaced by a boundary exchange.
	HighlightSwap HighlightKind = "swap"
	// HighlightKeep marks an element a boundary exchange left in place.
	HighlightKeep HighlightKind = "keep"
	// HighlightSend marks the tail element sent to the right neighbour.
	HighlightSend HighlightKind = "send"
)

// Highlight points at one local index of a rank.
type Highlight struct {
	Kind  HighlightKind `json:"kind"`
	Index int           `json:"index"`
}

// RankStats are the operation counters of a single rank.
type RankStats struct {
	Steps        uint64 `json:"steps"`
	Comparisons  uint64 `json:"comparisons"`
	Swaps        uint64 `json:"swaps"`
	Sends        uint64 `json:"sends"`
	Receives     uint64 `json:"receives"`
	BlockedTicks uint64 `json:"blocked_ticks"`
}

// RankView is the read-only picture of one rank after a tick.
type RankView struct {
	State      string      `json:"state"`
	Status     string      `json:"status"`
	Elements   []Element   `json:"elements"`
	Highlights []Highlight `json:"highlights,omitempty"`
	Stats      RankStats   `json:"stats"`
	Index      int         `json:"index"`
	PassIndex  int         `json:"pass_index"`
	Blocked    bool        `json:"blocked"`
	Finished   bool        `json:"finished"`
}

// Values returns the rank's values in local order.
func (v RankView) Values() []float64 {
	out := make([]float64, len(v.Elements))
	for i, e := range v.Elements {
		out[i] = e.Val
	}
	return out
}

// Snapshot aggregates every rank's view after a tick.
type Snapshot struct {
	Ranks       []RankView `json:"ranks"`
	Tick        int        `json:"tick"`
	InFlight    int        `json:"in_flight"`
	TotalSwaps  uint64     `json:"total_swaps"`
	AllFinished bool       `json:"all_finished"`
}

// Values concatenates the ranks' values in rank order.
func (s Snapshot) Values() []float64 {
	var out []float64
	for _, r := range s.Ranks {
		out = append(out, r.Values()...)
	}
	return out
}

// BlockedRanks lists the indices of ranks blocked in this snapshot.
func (s Snapshot) BlockedRanks() []int {
	var out []int
	for _, r := range s.Ranks {
		if r.Blocked {
			out = append(out, r.Index)
		}
	}
	return out
}

// Sorted reports whether the concatenated values are non-descending.
func (s Snapshot) Sorted() bool {
	return slices.IsSorted(s.Values())
}

// Observer receives a snapshot after every tick.
// Returning an error stops the run that feeds it.
type Observer interface {
	Observe(Snapshot) error
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Snapshot) error

// Observe calls f(s).
func (f ObserverFunc) Observe(s Snapshot) error {
	return f(s)
}
