// Package coordinator implements the simulation driver for the distributed
// bubble sort. See doc.go for complete package documentation.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/dreamware/bubblering/internal/cluster"
	"github.com/dreamware/bubblering/internal/mailbox"
	"github.com/dreamware/bubblering/internal/partition"
	"github.com/dreamware/bubblering/internal/rank"
)

// DefaultStallThreshold is the number of consecutive fully blocked ticks Run
// tolerates before giving up.
const DefaultStallThreshold = 3

var (
	// ErrInvalidConfig matches every construction error.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrTickBudgetExceeded is returned by Run when the simulation does not
	// terminate within MaxTicks.
	ErrTickBudgetExceeded = errors.New("tick budget exceeded")

	// ErrPartitionCount is returned when the number of partitions differs from the rank count.
	ErrPartitionCount = errors.New("partition count does not match rank count")

	// ErrPartitionLength is returned when a partition does not hold N/P values.
	ErrPartitionLength = errors.New("partition length does not match N/P")

	// ErrNotANumber is returned for NaN values, which have no order.
	ErrNotANumber = errors.New("value is NaN")
)

// ConfigError describes why a Coordinator could not be constructed.
// errors.Is(err, ErrInvalidConfig) holds for every ConfigError; Unwrap
// exposes the specific cause.
type ConfigError struct {
	Err   error  // Specific cause
	Field string // Offending configuration field
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrInvalidConfig, e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Is reports whether target is ErrInvalidConfig.
func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfig }

// Config holds the inputs of a simulation.
type Config struct {
	// Mailbox carries boundary messages between ranks.
	// Nil means a fresh MemoryMailbox.
	Mailbox mailbox.Mailbox

	// Logger receives rank completion and run messages.
	// Nil discards them.
	Logger *log.Logger

	// Partitions holds the initial values of each rank, in rank order.
	Partitions [][]float64

	// Ranks is the number of ranks (P), at least 2.
	Ranks int

	// Total is the global sequence length (N), divisible by Ranks with
	// at least two elements per rank.
	Total int

	// StallThreshold overrides DefaultStallThreshold for Run.
	StallThreshold int
}

// Coordinator owns every rank and the mailbox between them, and advances the
// whole system one micro-step per rank per tick.
//
// Tick order is fixed (rank 0 to P-1), so two coordinators built from the same
// configuration produce identical snapshots after every tick.
//
// Concurrency Model:
//   - Tick takes the write lock; ranks are stepped serially
//   - Snapshot and the other readers take the read lock
//   - Returned data is always a copy
type Coordinator struct {
	mb             mailbox.Mailbox
	logger         *log.Logger
	ranks          []*rank.Rank
	layout         partition.Layout
	mu             sync.RWMutex
	ticks          int
	stallThreshold int
}

// New validates cfg and builds the ranks.
//
// Every element is tagged with its original global index. A configuration
// error yields a *ConfigError and no Coordinator.
//
// Example:
//
//	coord, err := coordinator.New(coordinator.Config{
//	    Partitions: [][]float64{{99, 95, 10}, {50, 45, 40}, {80, 5, 2}},
//	    Ranks:      3,
//	    Total:      9,
//	})
func New(cfg Config) (*Coordinator, error) {
	layout, err := partition.NewLayout(cfg.Ranks, cfg.Total)
	if err != nil {
		return nil, &ConfigError{Field: "ranks/total", Err: err}
	}
	if len(cfg.Partitions) != cfg.Ranks {
		return nil, &ConfigError{
			Field: "partitions",
			Err:   fmt.Errorf("%w: got %d, want %d", ErrPartitionCount, len(cfg.Partitions), cfg.Ranks),
		}
	}
	for i, part := range cfg.Partitions {
		if len(part) != layout.LocalLen() {
			return nil, &ConfigError{
				Field: fmt.Sprintf("partitions[%d]", i),
				Err:   fmt.Errorf("%w: got %d, want %d", ErrPartitionLength, len(part), layout.LocalLen()),
			}
		}
		for j, v := range part {
			if math.IsNaN(v) {
				return nil, &ConfigError{Field: fmt.Sprintf("partitions[%d][%d]", i, j), Err: ErrNotANumber}
			}
		}
	}

	mb := cfg.Mailbox
	if mb == nil {
		mb = mailbox.NewMemoryMailbox()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	threshold := cfg.StallThreshold
	if threshold <= 0 {
		threshold = DefaultStallThreshold
	}

	c := &Coordinator{
		mb:             mb,
		logger:         logger,
		layout:         layout,
		stallThreshold: threshold,
		ranks:          make([]*rank.Rank, cfg.Ranks),
	}
	for i, part := range cfg.Partitions {
		elements := make([]cluster.Element, len(part))
		for j, v := range part {
			elements[j] = cluster.Element{Nr: layout.GlobalIndex(i, j), Val: v}
		}
		r, err := rank.New(i, layout, elements, mb)
		if err != nil {
			return nil, &ConfigError{Field: fmt.Sprintf("partitions[%d]", i), Err: err}
		}
		c.ranks[i] = r
	}
	return c, nil
}

// Tick steps every rank exactly once, in rank order.
// After the terminal state Tick is a no-op and the tick counter stays put.
func (c *Coordinator) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.terminalLocked() {
		return
	}
	c.ticks++
	for _, r := range c.ranks {
		wasFinished := r.Finished()
		r.Step()
		if !wasFinished && r.Finished() {
			c.logger.Printf("tick %d: rank %d finished after %d passes", c.ticks, r.Index(), r.PassIndex())
		}
	}
	if c.terminalLocked() {
		c.logger.Printf("tick %d: all %d ranks finished, %d swaps", c.ticks, len(c.ranks), c.totalSwapsLocked())
	}
}

// IsTerminal reports whether every rank is finished.
func (c *Coordinator) IsTerminal() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.terminalLocked()
}

func (c *Coordinator) terminalLocked() bool {
	for _, r := range c.ranks {
		if !r.Finished() {
			return false
		}
	}
	return true
}

// Snapshot returns a deep copy of every rank's observable state.
func (c *Coordinator) Snapshot() cluster.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	views := make([]cluster.RankView, len(c.ranks))
	for i, r := range c.ranks {
		views[i] = r.View()
	}
	return cluster.Snapshot{
		Ranks:       views,
		Tick:        c.ticks,
		InFlight:    c.mb.Stats().InFlight,
		TotalSwaps:  c.totalSwapsLocked(),
		AllFinished: c.terminalLocked(),
	}
}

// Run ticks until every rank is finished, handing each snapshot to obs.
//
// Run stops early when:
//   - ctx is cancelled (returns ctx.Err())
//   - obs returns an error (returned wrapped)
//   - every unfinished rank stays blocked for the stall threshold (ErrStalled)
//   - MaxTicks ticks pass without termination (ErrTickBudgetExceeded)
//
// Returns the number of ticks applied so far.
func (c *Coordinator) Run(ctx context.Context, obs cluster.Observer) (int, error) {
	monitor := NewStallMonitor(c.stallThreshold)
	monitor.SetOnStalled(func(tick int, blocked []int) {
		c.logger.Printf("tick %d: ranks %v cannot advance", tick, blocked)
	})
	budget := c.MaxTicks()

	for !c.IsTerminal() {
		if err := ctx.Err(); err != nil {
			return c.Ticks(), err
		}
		if c.Ticks() >= budget {
			return c.Ticks(), fmt.Errorf("%w: %d ticks", ErrTickBudgetExceeded, budget)
		}

		c.Tick()
		snap := c.Snapshot()
		if obs != nil {
			if err := obs.Observe(snap); err != nil {
				return snap.Tick, fmt.Errorf("observer: %w", err)
			}
		}
		if err := monitor.Observe(snap); err != nil {
			return snap.Tick, err
		}
	}

	c.logger.Printf("run complete after %d ticks", c.Ticks())
	return c.Ticks(), nil
}

// MaxTicks returns the bound within which a simulation terminates.
func (c *Coordinator) MaxTicks() int {
	return c.layout.MaxTicks()
}

// Ticks returns the number of ticks applied.
func (c *Coordinator) Ticks() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ticks
}

// Layout returns the partition geometry.
func (c *Coordinator) Layout() partition.Layout {
	return c.layout
}

// Values returns the concatenation of the ranks' values in rank order.
func (c *Coordinator) Values() []float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]float64, 0, c.layout.Total())
	for _, r := range c.ranks {
		for _, e := range r.Elements() {
			out = append(out, e.Val)
		}
	}
	return out
}

// Elements returns the concatenation of the ranks' elements in rank order.
func (c *Coordinator) Elements() []cluster.Element {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]cluster.Element, 0, c.layout.Total())
	for _, r := range c.ranks {
		out = append(out, r.Elements()...)
	}
	return out
}

// TotalSwaps returns the swaps performed by all ranks.
func (c *Coordinator) TotalSwaps() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.totalSwapsLocked()
}

func (c *Coordinator) totalSwapsLocked() uint64 {
	var total uint64
	for _, r := range c.ranks {
		total += r.GetStats().Swaps
	}
	return total
}

// Inventory returns every element held anywhere in the system, ordered by
// value then original index.
//
// An element is counted where its authoritative copy lives:
//   - a rank's local slice, except a tail lent out on a boundary probe
//   - a rank's staged element awaiting send
//   - the mailbox
//
// The inventory is identical after every tick.
func (c *Coordinator) Inventory() []cluster.Element {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]cluster.Element, 0, c.layout.Total())
	for _, r := range c.ranks {
		elements := r.Elements()
		if r.Lent() {
			elements = elements[:len(elements)-1]
		}
		out = append(out, elements...)
		if staged, ok := r.Staged(); ok {
			out = append(out, staged)
		}
	}
	for _, msg := range c.mb.Pending() {
		out = append(out, msg.Element)
	}

	slices.SortFunc(out, compareElements)
	return out
}

func compareElements(a, b cluster.Element) int {
	switch {
	case a.Val < b.Val:
		return -1
	case a.Val > b.Val:
		return 1
	default:
		return a.Nr - b.Nr
	}
}
