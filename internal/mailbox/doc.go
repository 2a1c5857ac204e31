// Package mailbox provides the message substrate between ranks: a set of
// single-slot channels keyed by (sender, receiver, tag).
//
// # Overview
//
// Ranks never look at each other's data. Every value that crosses a
// partition boundary is sent into the mailbox by one rank and popped by its
// neighbour. Delivery is pull-based and exactly-once:
//
//	Send(0, 1, TagForward, e)      slot (0→1, forward) = e
//	Receive(0, 1, TagForward)      → e, true; slot now empty
//	Receive(0, 1, TagForward)      → zero, false ("not yet available")
//
// A receive that finds nothing is the normal way a rank learns it must wait;
// it is never an error.
//
// # Slots
//
// Each key holds at most one value. A second Send before the first is
// received overwrites it. The bubble-sort protocol sends at most once per
// boundary exchange before waiting on the answer, so an overwrite indicates a
// protocol fault; Stats counts them.
//
//	┌──────────┐  forward (r→r+1)  ┌──────────┐
//	│  rank r  │ ────────────────▶ │ rank r+1 │
//	│          │ ◀──────────────── │          │
//	└──────────┘  return (r+1→r)   └──────────┘
//
// # Thread Safety
//
// MemoryMailbox guards its map with a mutex, so Send and Receive are atomic
// per key even when ranks are stepped from several goroutines. The
// coordinator itself steps ranks serially.
package mailbox
