package mailbox

import (
	"fmt"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/dreamware/bubblering/internal/cluster"
)

// Tag distinguishes the two directions of a boundary exchange
type Tag int

const (
	// TagForward carries a rank's tail element to its right neighbour
	TagForward Tag = iota
	// TagReturn carries the smaller element back to the left neighbour
	TagReturn
)

// String returns the tag name used in status text and traces
func (t Tag) String() string {
	switch t {
	case TagForward:
		return "forward"
	case TagReturn:
		return "return"
	default:
		return fmt.Sprintf("tag(%d)", int(t))
	}
}

// Key identifies a single-slot channel between two ranks
type Key struct {
	From int // Sending rank
	To   int // Receiving rank
	Tag  Tag // Direction of the exchange
}

// Message is an element buffered under a key
type Message struct {
	Key
	Element cluster.Element
}

// Mailbox defines the point-to-point message substrate between ranks
// All implementations must make Send and Receive atomic per key
type Mailbox interface {
	// Send buffers e under (from, to, tag)
	// Overwrites any value still unreceived under the same key
	Send(from, to int, tag Tag, e cluster.Element)

	// Receive pops the value buffered under (from, to, tag)
	// Returns false if nothing has been sent yet; this is not an error
	Receive(from, to int, tag Tag) (cluster.Element, bool)

	// Pending returns the in-flight messages ordered by key
	Pending() []Message

	// Stats returns mailbox statistics
	Stats() Stats
}

// Stats contains statistics about a mailbox
type Stats struct {
	Sends      uint64 `json:"sends"`      // Number of Send calls
	Receives   uint64 `json:"receives"`   // Receive calls that delivered a value
	Misses     uint64 `json:"misses"`     // Receive calls that found nothing
	Overwrites uint64 `json:"overwrites"` // Sends that replaced an unreceived value
	InFlight   int    `json:"in_flight"`  // Values currently buffered
}

// MemoryMailbox implements Mailbox with an in-memory map
// Uses sync.Mutex so ranks may be stepped from several goroutines
type MemoryMailbox struct {
	mu    sync.Mutex              // Protects slots and stats
	slots map[Key]cluster.Element // At most one value per key
	stats Stats
}

// NewMemoryMailbox creates an empty mailbox
func NewMemoryMailbox() *MemoryMailbox {
	return &MemoryMailbox{
		slots: make(map[Key]cluster.Element),
	}
}

// Send stores e under the key, replacing an unreceived value
func (m *MemoryMailbox) Send(from, to int, tag Tag, e cluster.Element) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := Key{From: from, To: to, Tag: tag}
	if _, exists := m.slots[key]; exists {
		m.stats.Overwrites++
	}
	m.slots[key] = e
	m.stats.Sends++
}

// Receive removes and returns the value stored under the key
// Each value is delivered exactly once
func (m *MemoryMailbox) Receive(from, to int, tag Tag) (cluster.Element, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := Key{From: from, To: to, Tag: tag}
	e, exists := m.slots[key]
	if !exists {
		m.stats.Misses++
		return cluster.Element{}, false
	}
	delete(m.slots, key)
	m.stats.Receives++
	return e, true
}

// Pending returns a copy of the buffered messages
// Ordered by sender, receiver, then tag so traces are reproducible
func (m *MemoryMailbox) Pending() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Message, 0, len(m.slots))
	for key, e := range m.slots {
		out = append(out, Message{Key: key, Element: e})
	}
	slices.SortFunc(out, func(a, b Message) int {
		return compareKeys(a.Key, b.Key)
	})
	return out
}

// Stats returns mailbox statistics
func (m *MemoryMailbox) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := m.stats
	stats.InFlight = len(m.slots)
	return stats
}

func compareKeys(a, b Key) int {
	switch {
	case a.From != b.From:
		return a.From - b.From
	case a.To != b.To:
		return a.To - b.To
	default:
		return int(a.Tag) - int(b.Tag)
	}
}
