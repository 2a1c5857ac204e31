// Package partition implements the fixed geometry of the global sequence:
// how N elements split into P equal contiguous chunks, and which part of
// each chunk takes part in a given bubble-sort pass.
package partition

import (
	"errors"
	"fmt"
)

var (
	// ErrTooFewRanks is returned when fewer than two ranks are requested.
	ErrTooFewRanks = errors.New("at least two ranks are required")

	// ErrUnevenSplit is returned when the total length is not a multiple of the rank count.
	ErrUnevenSplit = errors.New("total length must be divisible by the rank count")

	// ErrChunkTooSmall is returned when a rank would own fewer than two elements.
	ErrChunkTooSmall = errors.New("each rank must own at least two elements")

	// ErrIndexOutOfRange is returned by Locate for an index outside [0, N).
	ErrIndexOutOfRange = errors.New("global index out of range")
)

// Layout describes the partitioning of a global sequence of Total elements
// across Ranks ranks, each owning LocalLen consecutive elements.
//
// Partitioning model:
//
//	global index:  0 1 2 | 3 4 5 | 6 7 8
//	rank:          ──0── | ──1── | ──2──
//	local index:   0 1 2 | 0 1 2 | 0 1 2
//
// Invariants:
//   - global = rank*LocalLen + local
//   - Partition boundaries never move
//   - Layout is an immutable value, safe to share and copy
//
// Pass window:
//
// In pass k the bubble travels from index 0 to limit = N-1-k; everything
// right of limit is already in its final place. A rank whose first index is
// beyond limit has no work left in this or any later pass.
type Layout struct {
	ranks    int // Number of ranks (P)
	total    int // Length of the global sequence (N)
	localLen int // Elements per rank (L = N/P)
}

// NewLayout validates the rank count and total length and returns the layout.
//
// Parameters:
//   - ranks: number of ranks, must be >= 2
//   - total: global sequence length, must be divisible by ranks
//
// Returns:
//   - The layout on success
//   - ErrTooFewRanks, ErrUnevenSplit or ErrChunkTooSmall wrapped with the offending values
//
// Example:
//
//	layout, err := partition.NewLayout(3, 9)
//	// layout.LocalLen() == 3
func NewLayout(ranks, total int) (Layout, error) {
	if ranks < 2 {
		return Layout{}, fmt.Errorf("%w: got %d", ErrTooFewRanks, ranks)
	}
	if total <= 0 || total%ranks != 0 {
		return Layout{}, fmt.Errorf("%w: n=%d, p=%d", ErrUnevenSplit, total, ranks)
	}
	localLen := total / ranks
	if localLen < 2 {
		return Layout{}, fmt.Errorf("%w: n=%d, p=%d gives %d", ErrChunkTooSmall, total, ranks, localLen)
	}
	return Layout{ranks: ranks, total: total, localLen: localLen}, nil
}

// Ranks returns the number of ranks.
func (l Layout) Ranks() int { return l.ranks }

// Total returns the length of the global sequence.
func (l Layout) Total() int { return l.total }

// LocalLen returns the number of elements each rank owns.
func (l Layout) LocalLen() int { return l.localLen }

// GlobalStart returns the global index of the rank's first element.
func (l Layout) GlobalStart(rank int) int {
	return rank * l.localLen
}

// GlobalEnd returns the global index of the rank's last element.
func (l Layout) GlobalEnd(rank int) int {
	return l.GlobalStart(rank) + l.localLen - 1
}

// GlobalIndex maps a rank and local index to the global index.
func (l Layout) GlobalIndex(rank, local int) int {
	return l.GlobalStart(rank) + local
}

// Locate maps a global index to its owning rank and local index.
//
// Returns:
//   - rank and local index for 0 <= global < Total
//   - ErrIndexOutOfRange otherwise
func (l Layout) Locate(global int) (rank, local int, err error) {
	if global < 0 || global >= l.total {
		return 0, 0, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, global, l.total)
	}
	return global / l.localLen, global % l.localLen, nil
}

// Limit returns the last global index the bubble reaches in the given pass.
// Negative once every pass has run.
func (l Layout) Limit(pass int) int {
	return l.total - 1 - pass
}

// Active reports whether the rank still takes part in the given pass.
// A rank whose first index equals the limit is still active: it has no local
// compares but must answer its left neighbour's boundary probe.
func (l Layout) Active(rank, pass int) bool {
	return l.Limit(pass) >= l.GlobalStart(rank)
}

// StopsIn reports whether the bubble of the given pass ends inside the rank.
func (l Layout) StopsIn(rank, pass int) bool {
	return l.Limit(pass) <= l.GlobalEnd(rank)
}

// LocalLimit returns the number of local compares the rank performs in the
// given pass: up to the limit if the bubble stops inside the rank, otherwise
// across the whole chunk.
func (l Layout) LocalLimit(rank, pass int) int {
	if l.StopsIn(rank, pass) {
		return l.Limit(pass) - l.GlobalStart(rank)
	}
	return l.localLen - 1
}

// SendsRight reports whether the rank probes its right neighbour at the end
// of the given pass.
func (l Layout) SendsRight(rank, pass int) bool {
	return rank < l.ranks-1 && !l.StopsIn(rank, pass)
}

// Passes returns the number of passes after which every rank is inactive.
func (l Layout) Passes() int {
	return l.total
}

// MaxTicks bounds the number of ticks a full simulation needs.
//
// Each rank spends at most L+4 of its own steps on a pass (init, boundary
// receive and send, L-1 compares plus the closing step, right send and
// receive) and a pass has to travel through all P ranks before the last
// return reaches rank 0's neighbour chain, so a pass completes within
// P*(L+6) ticks. N passes plus one finishing tick per rank bound the run.
func (l Layout) MaxTicks() int {
	return l.total*l.ranks*(l.localLen+6) + l.ranks
}
