// Package coordinator drives a simulated distributed bubble sort, owning every
// rank and the mailbox between them and advancing the system one tick at a
// time.
//
// # Overview
//
// The coordinator plays the part of the job launcher in a message passing
// runtime. It validates the configuration, hands each rank its chunk of the
// global sequence and then steps the ranks in a fixed order. No rank ever
// sees another rank's memory; all cross-boundary traffic goes through the
// mailbox.
//
// # Architecture
//
//	┌──────────────────────────────────────────┐
//	│              COORDINATOR                 │
//	├──────────────────────────────────────────┤
//	│                                          │
//	│   ┌────────┐   ┌────────┐   ┌────────┐   │
//	│   │ Rank 0 │   │ Rank 1 │   │ Rank 2 │   │
//	│   └───┬────┘   └───┬────┘   └───┬────┘   │
//	│       │            │            │        │
//	│   ┌───┴────────────┴────────────┴────┐   │
//	│   │             Mailbox              │   │
//	│   │   (from, to, tag) -> element     │   │
//	│   └──────────────────────────────────┘   │
//	│                                          │
//	│   ┌──────────────────────────────────┐   │
//	│   │          Stall Monitor           │   │
//	│   └──────────────────────────────────┘   │
//	└──────────────────────────────────────────┘
//
// # Tick Semantics
//
// One tick steps every rank exactly once, rank 0 first. Each step performs at
// most one protocol transition:
//   - Step 1: receive the left neighbour's tail, compare with the local head,
//     return the smaller element
//   - Step 2: one compare-and-swap of the local scan
//   - Step 3: send the local tail right and wait for the returned element
//
// A rank whose message has not arrived marks itself blocked and retries on the
// next tick. Because ranks are stepped in order, a message sent by rank i is
// visible to rank i+1 within the same tick.
//
// # Termination
//
// Pass k compares positions up to N-1-k. A rank whose first global index lies
// beyond that limit finishes; the simulation is terminal once all ranks have.
// Termination is guaranteed within MaxTicks; Run reports
// ErrTickBudgetExceeded if that bound is crossed.
//
// # Invariants
//
//   - Conservation: Inventory returns the same multiset after every tick
//   - Determinism: identical configurations yield identical snapshots
//   - Stability: equal values keep the order of their original indices
//   - Swap count: the total equals the inversion count of the input
//
// # Stall Detection
//
// StallMonitor watches the snapshots of a run. When every unfinished rank is
// blocked for DefaultStallThreshold consecutive ticks, Run stops with
// ErrStalled. A correct mailbox never triggers this.
//
// # Usage Example
//
//	coord, err := coordinator.New(coordinator.Config{
//	    Partitions: [][]float64{{99, 95, 10}, {50, 45, 40}, {80, 5, 2}},
//	    Ranks:      3,
//	    Total:      9,
//	    Logger:     log.Default(),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ticks, err := coord.Run(ctx, nil)
//	fmt.Println(ticks, coord.TotalSwaps(), coord.Values())
//
// # See Also
//
// Related packages:
//   - internal/rank: the per-rank state machine
//   - internal/mailbox: the message substrate
//   - internal/partition: chunk geometry and pass limits
//   - internal/trace: recording snapshots of a run
package coordinator
