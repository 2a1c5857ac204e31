// Package rank implements one participant of the distributed bubble sort: a
// state machine that owns a fixed chunk of the global sequence and advances
// by at most one protocol transition per Step.
//
// # Overview
//
// A rank never reads another rank's data. Boundary elements cross partition
// edges only through the injected mailbox. Each pass of the sort runs three
// blocks, the same ones a message-passing program would run:
//
//	Step 1  boundary with the left neighbour   (ranks > 0)
//	        receive its tail, keep the larger, return the smaller
//	Step 2  local scan                          (one compare per Step)
//	Step 3  boundary with the right neighbour   (if the pass window continues)
//	        send our tail, wait for the smaller element to come back
//
// # State Machine
//
//	             ┌────────────── rank 0 ──────────────┐
//	             │                                    ▼
//	InitPass ──▶ LeftRecv ──▶ LeftSend ──▶ LocalSort ──▶ RightSend ──▶ RightRecv
//	   ▲  │        (wait)                   │  (loop)                  (wait)  │
//	   │  │                                 │ window ends here                 │
//	   │  └──▶ Finished                     ▼                                  │
//	   └──────────────────────────── pass complete ◀───────────────────────────┘
//
// Every Step first checks the pass window: once limit = N-1-pass lies left of
// the rank's first global index the rank becomes Finished and never changes
// again.
//
// # Blocking
//
// A receive that finds nothing sets Blocked and leaves the rank in the same
// state with its data untouched; the next Step retries. Waiting is the
// protocol's normal condition and is never reported as an error.
//
// # Statistics
//
// Counters (comparisons, swaps, sends, receives, blocked ticks) are updated
// with sync/atomic so GetStats may be called while a runner steps the rank.
// All other accessors expect steps to be serialized by the caller.
package rank
