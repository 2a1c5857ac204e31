package rank

import (
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/exp/slices"

	"github.com/dreamware/bubblering/internal/cluster"
	"github.com/dreamware/bubblering/internal/mailbox"
	"github.com/dreamware/bubblering/internal/partition"
)

var (
	// ErrRankOutOfRange is returned when the rank index is outside the layout
	ErrRankOutOfRange = errors.New("rank index out of range")

	// ErrWrongLength is returned when the initial slice does not match the chunk size
	ErrWrongLength = errors.New("initial slice length does not match the layout")
)

// Rank is one participant of the distributed bubble sort
// It owns a fixed chunk of the global sequence and only exchanges
// boundary elements with its neighbours through the mailbox
type Rank struct {
	mb         mailbox.Mailbox     // Injected message substrate
	layout     partition.Layout    // Partition geometry
	local      []cluster.Element   // Owned chunk, mutated only by Step
	status     string              // Description of the last step
	highlights []cluster.Highlight // Local indices touched by the last step
	stats      *Stats              // Operation counters
	index      int                 // Rank number, immutable
	pass       int                 // Completed passes
	cursor     int                 // Position of the local scan
	state      State               // Protocol state
	staged     cluster.Element     // Element waiting to be sent
	hasStaged  bool                // Whether staged holds a value
	blocked    bool                // Waiting for an undelivered message
}

// Stats tracks operation counts for a rank
type Stats struct {
	Steps        uint64 // Steps that ran protocol logic
	Comparisons  uint64 // Element comparisons, boundary and local
	Swaps        uint64 // Comparisons that exchanged two elements
	Sends        uint64 // Messages sent
	Receives     uint64 // Messages received
	BlockedTicks uint64 // Steps spent waiting for a message
}

// New creates a rank owning a copy of values
func New(index int, layout partition.Layout, values []cluster.Element, mb mailbox.Mailbox) (*Rank, error) {
	if index < 0 || index >= layout.Ranks() {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrRankOutOfRange, index, layout.Ranks())
	}
	if len(values) != layout.LocalLen() {
		return nil, fmt.Errorf("%w: rank %d got %d elements, want %d", ErrWrongLength, index, len(values), layout.LocalLen())
	}
	return &Rank{
		mb:     mb,
		layout: layout,
		local:  slices.Clone(values),
		status: "waiting to start",
		stats:  &Stats{},
		index:  index,
		state:  StateInitPass,
	}, nil
}

// Step advances the rank by at most one protocol transition
// A finished rank is left untouched
func (r *Rank) Step() {
	if r.state == StateFinished {
		return
	}
	atomic.AddUint64(&r.stats.Steps, 1)
	r.highlights = nil
	r.blocked = false

	if !r.layout.Active(r.index, r.pass) {
		r.state = StateFinished
		r.status = fmt.Sprintf("finished after %d passes", r.pass)
		return
	}

	switch r.state {
	case StateInitPass:
		r.initPass()
	case StateLeftRecv:
		r.leftRecv()
	case StateLeftSend:
		r.leftSend()
	case StateLocalSort:
		r.localSort()
	case StateRightSend:
		r.rightSend()
	case StateRightRecv:
		r.rightRecv()
	default:
		panic(fmt.Sprintf("rank %d: unknown state %v", r.index, r.state))
	}
}

func (r *Rank) hasLeft() bool {
	return r.index > 0
}

func (r *Rank) initPass() {
	if r.hasLeft() {
		r.state = StateLeftRecv
		r.status = fmt.Sprintf("pass %d: expecting boundary element from P%d", r.pass, r.index-1)
		return
	}
	r.state = StateLocalSort
	r.cursor = 0
	r.status = fmt.Sprintf("pass %d: starting local scan", r.pass)
}

func (r *Rank) leftRecv() {
	left := r.index - 1
	v, ok := r.mb.Receive(left, r.index, mailbox.TagForward)
	if !ok {
		r.wait(fmt.Sprintf("step 1: waiting for data from P%d", left))
		return
	}
	atomic.AddUint64(&r.stats.Receives, 1)
	atomic.AddUint64(&r.stats.Comparisons, 1)

	head := r.local[0]
	if v.Greater(head) {
		// The larger element stays on the right side of the boundary
		r.local[0] = v
		r.stage(head)
		atomic.AddUint64(&r.stats.Swaps, 1)
		r.highlight(cluster.HighlightSwap, 0)
		r.status = fmt.Sprintf("step 1: received %.1f from P%d; %.1f > %.1f, swap", v.Val, left, v.Val, head.Val)
	} else {
		r.stage(v)
		r.highlight(cluster.HighlightKeep, 0)
		r.status = fmt.Sprintf("step 1: received %.1f from P%d; %.1f <= %.1f, no swap", v.Val, left, v.Val, head.Val)
	}
	r.state = StateLeftSend
}

func (r *Rank) leftSend() {
	left := r.index - 1
	e := r.unstage()
	r.mb.Send(r.index, left, mailbox.TagReturn, e)
	atomic.AddUint64(&r.stats.Sends, 1)
	r.status = fmt.Sprintf("step 1: returning %.1f to P%d", e.Val, left)
	r.state = StateLocalSort
	r.cursor = 0
}

func (r *Rank) localSort() {
	localLimit := r.layout.LocalLimit(r.index, r.pass)
	if r.cursor < localLimit {
		j := r.cursor
		a, b := r.local[j], r.local[j+1]
		atomic.AddUint64(&r.stats.Comparisons, 1)
		r.highlight(cluster.HighlightCompare, j)
		r.highlight(cluster.HighlightCompare, j+1)
		if a.Greater(b) {
			r.local[j], r.local[j+1] = b, a
			atomic.AddUint64(&r.stats.Swaps, 1)
			r.status = fmt.Sprintf("step 2: compare [%d] vs [%d]; %.1f > %.1f, swap", j, j+1, a.Val, b.Val)
		} else {
			r.status = fmt.Sprintf("step 2: compare [%d] vs [%d]; ok", j, j+1)
		}
		r.cursor++
		return
	}

	if r.layout.SendsRight(r.index, r.pass) {
		r.state = StateRightSend
		r.status = fmt.Sprintf("step 2: local scan done, probing P%d", r.index+1)
		return
	}
	r.endPass("step 2: local scan done")
}

func (r *Rank) rightSend() {
	right := r.index + 1
	last := r.layout.LocalLen() - 1
	r.stage(r.local[last])
	e := r.unstage()
	r.mb.Send(r.index, right, mailbox.TagForward, e)
	atomic.AddUint64(&r.stats.Sends, 1)
	r.highlight(cluster.HighlightSend, last)
	r.status = fmt.Sprintf("step 3: sending %.1f to P%d", e.Val, right)
	r.state = StateRightRecv
}

func (r *Rank) rightRecv() {
	right := r.index + 1
	v, ok := r.mb.Receive(right, r.index, mailbox.TagReturn)
	if !ok {
		r.wait(fmt.Sprintf("step 3: waiting for return from P%d", right))
		return
	}
	atomic.AddUint64(&r.stats.Receives, 1)

	last := r.layout.LocalLen() - 1
	old := r.local[last]
	r.local[last] = v
	if v != old {
		r.highlight(cluster.HighlightSwap, last)
		r.endPass(fmt.Sprintf("step 3: received %.1f from P%d, boundary swapped", v.Val, right))
	} else {
		r.highlight(cluster.HighlightKeep, last)
		r.endPass(fmt.Sprintf("step 3: received %.1f from P%d, no swap", v.Val, right))
	}
}

func (r *Rank) endPass(status string) {
	r.pass++
	r.state = StateInitPass
	r.status = fmt.Sprintf("%s; pass %d complete", status, r.pass)
}

func (r *Rank) wait(status string) {
	r.blocked = true
	r.status = status
	atomic.AddUint64(&r.stats.BlockedTicks, 1)
}

func (r *Rank) stage(e cluster.Element) {
	r.staged = e
	r.hasStaged = true
}

func (r *Rank) unstage() cluster.Element {
	e := r.staged
	r.staged = cluster.Element{}
	r.hasStaged = false
	return e
}

func (r *Rank) highlight(kind cluster.HighlightKind, index int) {
	r.highlights = append(r.highlights, cluster.Highlight{Kind: kind, Index: index})
}

// Index returns the rank number
func (r *Rank) Index() int {
	return r.index
}

// State returns the current protocol state
func (r *Rank) State() State {
	return r.state
}

// PassIndex returns the number of completed passes
func (r *Rank) PassIndex() int {
	return r.pass
}

// Blocked reports whether the last step waited for an undelivered message
func (r *Rank) Blocked() bool {
	return r.blocked
}

// Finished reports whether the rank reached its terminal state
func (r *Rank) Finished() bool {
	return r.state == StateFinished
}

// Status returns the description of the last step
func (r *Rank) Status() string {
	return r.status
}

// Highlights returns a copy of the local indices touched by the last step
func (r *Rank) Highlights() []cluster.Highlight {
	return slices.Clone(r.highlights)
}

// Elements returns a copy of the local chunk
func (r *Rank) Elements() []cluster.Element {
	return slices.Clone(r.local)
}

// Staged returns the element waiting to be sent, if any
func (r *Rank) Staged() (cluster.Element, bool) {
	return r.staged, r.hasStaged
}

// Lent reports whether the tail element is out on a boundary probe
// While lent, the authoritative copy is in flight or held by the right neighbour
func (r *Rank) Lent() bool {
	return r.state == StateRightRecv
}

// GetStats returns current rank statistics
func (r *Rank) GetStats() Stats {
	return Stats{
		Steps:        atomic.LoadUint64(&r.stats.Steps),
		Comparisons:  atomic.LoadUint64(&r.stats.Comparisons),
		Swaps:        atomic.LoadUint64(&r.stats.Swaps),
		Sends:        atomic.LoadUint64(&r.stats.Sends),
		Receives:     atomic.LoadUint64(&r.stats.Receives),
		BlockedTicks: atomic.LoadUint64(&r.stats.BlockedTicks),
	}
}

// View returns the read-only picture of the rank
func (r *Rank) View() cluster.RankView {
	stats := r.GetStats()
	return cluster.RankView{
		Index:      r.index,
		Elements:   r.Elements(),
		PassIndex:  r.pass,
		State:      r.state.String(),
		Status:     r.status,
		Blocked:    r.blocked,
		Finished:   r.Finished(),
		Highlights: r.Highlights(),
		Stats: cluster.RankStats{
			Steps:        stats.Steps,
			Comparisons:  stats.Comparisons,
			Swaps:        stats.Swaps,
			Sends:        stats.Sends,
			Receives:     stats.Receives,
			BlockedTicks: stats.BlockedTicks,
		},
	}
}
