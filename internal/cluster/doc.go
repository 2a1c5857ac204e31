// Package cluster holds the value types shared by every layer of the
// bubble-sort simulation: the elements being sorted, the per-rank views a
// coordinator publishes after each tick, and the Observer seam through which
// presentation code reads them.
//
// # Overview
//
// Nothing in this package owns mutable simulation state. A Snapshot is a deep
// copy taken by the coordinator; callers may keep, mutate or serialize it
// without affecting the running simulation.
//
// # Snapshot Layout
//
//	Snapshot
//	├── Tick          number of ticks applied so far
//	├── AllFinished   every rank reached the finished state
//	├── TotalSwaps    swaps summed over all ranks
//	├── InFlight      messages buffered in the mailbox
//	└── Ranks[i]      RankView
//	    ├── Elements    local slice, in local order
//	    ├── PassIndex   completed passes
//	    ├── State       state machine state name
//	    ├── Status      human readable description of the last step
//	    ├── Blocked     waiting for an undelivered message
//	    └── Highlights  local indices touched by the last step
//
// # Observers
//
// The coordinator calls Observer.Observe after every tick of a run. Trace
// recorders and progress printers implement it; ObserverFunc adapts plain
// functions:
//
//	obs := cluster.ObserverFunc(func(s cluster.Snapshot) error {
//	    log.Printf("tick %d blocked=%v", s.Tick, s.BlockedRanks())
//	    return nil
//	})
//
// # JSON
//
// All types carry JSON tags; the trace package writes snapshots as JSON lines.
package cluster
