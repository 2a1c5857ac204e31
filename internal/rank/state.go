package rank

import "fmt"

// State is a step of the per-rank bubble-sort protocol
type State int

const (
	// StateInitPass starts a pass; rank 0 goes straight to the local scan
	StateInitPass State = iota
	// StateLeftRecv waits for the left neighbour's tail element
	StateLeftRecv
	// StateLeftSend returns the smaller boundary element to the left neighbour
	StateLeftSend
	// StateLocalSort performs one local compare-and-swap per step
	StateLocalSort
	// StateRightSend sends this rank's tail element to the right neighbour
	StateRightSend
	// StateRightRecv waits for the right neighbour's answer
	StateRightRecv
	// StateFinished is terminal: the pass window no longer reaches this rank
	StateFinished
)

var stateNames = [...]string{
	StateInitPass:  "init_pass",
	StateLeftRecv:  "boundary_left_recv",
	StateLeftSend:  "boundary_left_send",
	StateLocalSort: "local_sort",
	StateRightSend: "boundary_right_send",
	StateRightRecv: "boundary_right_recv",
	StateFinished:  "finished",
}

// String returns the state name used in snapshots
func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Waiting reports whether the state depends on a message from a neighbour
func (s State) Waiting() bool {
	return s == StateLeftRecv || s == StateRightRecv
}
