package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/bubblering/internal/cluster"
	"github.com/dreamware/bubblering/internal/mailbox"
	"github.com/dreamware/bubblering/internal/partition"
)

// recordingMailbox wraps a MemoryMailbox and records every send
type recordingMailbox struct {
	*mailbox.MemoryMailbox
	sent []mailbox.Message
}

func newRecordingMailbox() *recordingMailbox {
	return &recordingMailbox{MemoryMailbox: mailbox.NewMemoryMailbox()}
}

func (m *recordingMailbox) Send(from, to int, tag mailbox.Tag, e cluster.Element) {
	m.sent = append(m.sent, mailbox.Message{Key: mailbox.Key{From: from, To: to, Tag: tag}, Element: e})
	m.MemoryMailbox.Send(from, to, tag, e)
}

func elements(start int, values ...float64) []cluster.Element {
	out := make([]cluster.Element, len(values))
	for i, v := range values {
		out[i] = cluster.Element{Nr: start + i, Val: v}
	}
	return out
}

func vals(es []cluster.Element) []float64 {
	out := make([]float64, len(es))
	for i, e := range es {
		out[i] = e.Val
	}
	return out
}

func newRank(t *testing.T, index, ranks, total int, mb mailbox.Mailbox, values ...float64) *Rank {
	t.Helper()
	layout, err := partition.NewLayout(ranks, total)
	require.NoError(t, err)
	r, err := New(index, layout, elements(index*layout.LocalLen(), values...), mb)
	require.NoError(t, err)
	return r
}

// TestNew tests rank creation and validation
func TestNew(t *testing.T) {
	layout, err := partition.NewLayout(3, 9)
	require.NoError(t, err)
	mb := mailbox.NewMemoryMailbox()

	t.Run("valid rank", func(t *testing.T) {
		values := elements(3, 50, 45, 40)
		r, err := New(1, layout, values, mb)
		require.NoError(t, err)

		assert.Equal(t, 1, r.Index())
		assert.Equal(t, StateInitPass, r.State())
		assert.Equal(t, 0, r.PassIndex())
		assert.False(t, r.Blocked())
		assert.False(t, r.Finished())
		assert.Equal(t, values, r.Elements())

		// The rank owns a copy
		values[0].Val = 1
		assert.Equal(t, 50.0, r.Elements()[0].Val)
	})

	t.Run("rank out of range", func(t *testing.T) {
		_, err := New(3, layout, elements(0, 1, 2, 3), mb)
		assert.ErrorIs(t, err, ErrRankOutOfRange)
		_, err = New(-1, layout, elements(0, 1, 2, 3), mb)
		assert.ErrorIs(t, err, ErrRankOutOfRange)
	})

	t.Run("wrong slice length", func(t *testing.T) {
		_, err := New(0, layout, elements(0, 1, 2), mb)
		assert.ErrorIs(t, err, ErrWrongLength)
	})
}

// TestRankZeroSkipsLeftExchange tests that rank 0 starts with the local scan
func TestRankZeroSkipsLeftExchange(t *testing.T) {
	r := newRank(t, 0, 2, 4, mailbox.NewMemoryMailbox(), 3, 1)

	r.Step()
	assert.Equal(t, StateLocalSort, r.State())
	assert.False(t, r.Blocked())
}

// TestBlockedThenResumed tests that a rank waiting on its left neighbour
// stays put until the message arrives
func TestBlockedThenResumed(t *testing.T) {
	mb := mailbox.NewMemoryMailbox()
	r := newRank(t, 1, 2, 4, mb, 5, 7)

	r.Step()
	require.Equal(t, StateLeftRecv, r.State())

	for i := 0; i < 3; i++ {
		r.Step()
		assert.True(t, r.Blocked(), "step %d should block", i)
		assert.Equal(t, StateLeftRecv, r.State())
		assert.Equal(t, []float64{5, 7}, vals(r.Elements()))
		assert.Contains(t, r.Status(), "waiting for data from P0")
	}
	assert.Equal(t, uint64(3), r.GetStats().BlockedTicks)

	mb.Send(0, 1, mailbox.TagForward, cluster.Element{Nr: 1, Val: 2})
	r.Step()
	assert.False(t, r.Blocked())
	assert.Equal(t, StateLeftSend, r.State())
}

// TestLeftBoundaryExchange tests both outcomes of the left boundary compare
func TestLeftBoundaryExchange(t *testing.T) {
	t.Run("incoming larger is kept", func(t *testing.T) {
		mb := newRecordingMailbox()
		r := newRank(t, 1, 2, 4, mb, 5, 7)
		r.Step()

		mb.MemoryMailbox.Send(0, 1, mailbox.TagForward, cluster.Element{Nr: 1, Val: 10})
		r.Step()

		assert.Equal(t, []float64{10, 7}, vals(r.Elements()))
		staged, ok := r.Staged()
		require.True(t, ok)
		assert.Equal(t, cluster.Element{Nr: 2, Val: 5}, staged)
		assert.Equal(t, []cluster.Highlight{{Kind: cluster.HighlightSwap, Index: 0}}, r.Highlights())
		assert.Equal(t, uint64(1), r.GetStats().Swaps)

		r.Step()
		assert.Equal(t, StateLocalSort, r.State())
		_, ok = r.Staged()
		assert.False(t, ok)
		require.Len(t, mb.sent, 1)
		assert.Equal(t, mailbox.Key{From: 1, To: 0, Tag: mailbox.TagReturn}, mb.sent[0].Key)
		assert.Equal(t, 5.0, mb.sent[0].Element.Val)
	})

	t.Run("incoming smaller is returned", func(t *testing.T) {
		mb := newRecordingMailbox()
		r := newRank(t, 1, 2, 4, mb, 5, 7)
		r.Step()

		mb.MemoryMailbox.Send(0, 1, mailbox.TagForward, cluster.Element{Nr: 1, Val: 3})
		r.Step()

		assert.Equal(t, []float64{5, 7}, vals(r.Elements()))
		assert.Equal(t, []cluster.Highlight{{Kind: cluster.HighlightKeep, Index: 0}}, r.Highlights())
		assert.Equal(t, uint64(0), r.GetStats().Swaps)
		assert.Equal(t, uint64(1), r.GetStats().Comparisons)

		r.Step()
		require.Len(t, mb.sent, 1)
		assert.Equal(t, cluster.Element{Nr: 1, Val: 3}, mb.sent[0].Element)
	})

	t.Run("equal values do not swap", func(t *testing.T) {
		mb := newRecordingMailbox()
		r := newRank(t, 1, 2, 4, mb, 5, 7)
		r.Step()

		mb.MemoryMailbox.Send(0, 1, mailbox.TagForward, cluster.Element{Nr: 1, Val: 5})
		r.Step()
		assert.Equal(t, 2, r.Elements()[0].Nr)
	})
}

// TestLocalSortOneComparePerStep tests that the local scan advances one
// comparison per step
func TestLocalSortOneComparePerStep(t *testing.T) {
	// Rank 0 of a 2x4 layout scans its whole chunk in pass 0
	mb := mailbox.NewMemoryMailbox()
	r := newRank(t, 0, 2, 8, mb, 4, 3, 2, 1)
	r.Step() // init -> local sort

	expected := [][]float64{
		{3, 4, 2, 1},
		{3, 2, 4, 1},
		{3, 2, 1, 4},
	}
	for i, want := range expected {
		r.Step()
		assert.Equal(t, want, vals(r.Elements()), "after compare %d", i)
		assert.Equal(t, StateLocalSort, r.State())
		assert.Len(t, r.Highlights(), 2)
	}
	assert.Equal(t, uint64(3), r.GetStats().Comparisons)
	assert.Equal(t, uint64(3), r.GetStats().Swaps)

	// Scan done; the window continues into rank 1
	r.Step()
	assert.Equal(t, StateRightSend, r.State())
}

// TestRightBoundaryExchange tests the probe of the right neighbour
func TestRightBoundaryExchange(t *testing.T) {
	mb := newRecordingMailbox()
	r := newRank(t, 0, 2, 4, mb, 3, 1)

	r.Step() // init
	r.Step() // compare [0] vs [1]
	assert.Equal(t, []float64{1, 3}, vals(r.Elements()))
	r.Step() // scan done
	require.Equal(t, StateRightSend, r.State())

	r.Step()
	assert.Equal(t, StateRightRecv, r.State())
	assert.True(t, r.Lent())
	require.Len(t, mb.sent, 1)
	assert.Equal(t, mailbox.Key{From: 0, To: 1, Tag: mailbox.TagForward}, mb.sent[0].Key)
	assert.Equal(t, 3.0, mb.sent[0].Element.Val)
	assert.Equal(t, []cluster.Highlight{{Kind: cluster.HighlightSend, Index: 1}}, r.Highlights())

	r.Step()
	assert.True(t, r.Blocked())
	assert.Equal(t, 0, r.PassIndex())

	mb.MemoryMailbox.Send(1, 0, mailbox.TagReturn, cluster.Element{Nr: 2, Val: 2})
	r.Step()
	assert.False(t, r.Blocked())
	assert.False(t, r.Lent())
	assert.Equal(t, []float64{1, 2}, vals(r.Elements()))
	assert.Equal(t, 1, r.PassIndex())
	assert.Equal(t, StateInitPass, r.State())
	assert.Contains(t, r.Status(), "pass 1 complete")
}

// TestFinishedIsTerminal tests that a rank leaves the protocol once the pass
// window no longer reaches it
func TestFinishedIsTerminal(t *testing.T) {
	mb := mailbox.NewMemoryMailbox()
	r := newRank(t, 1, 2, 4, mb, 9, 8)

	// Pass 0: limit 3, one local compare
	r.Step()
	mb.Send(0, 1, mailbox.TagForward, cluster.Element{Nr: 1, Val: 1})
	r.Step()
	r.Step()
	r.Step() // compare
	r.Step() // window ends here
	require.Equal(t, 1, r.PassIndex())

	// Pass 1: limit 2 is our first index; answer the probe, no compares
	r.Step()
	require.Equal(t, StateLeftRecv, r.State())
	mb.Send(0, 1, mailbox.TagForward, cluster.Element{Nr: 0, Val: 0})
	r.Step()
	r.Step()
	r.Step()
	require.Equal(t, 2, r.PassIndex())

	// Pass 2: limit 1 is left of us
	r.Step()
	require.True(t, r.Finished())
	assert.False(t, r.Blocked())

	view := r.View()
	stats := r.GetStats()
	for i := 0; i < 5; i++ {
		r.Step()
	}
	assert.Equal(t, view, r.View())
	assert.Equal(t, stats, r.GetStats())
}

// TestUnknownStatePanics tests the exhaustive state switch
func TestUnknownStatePanics(t *testing.T) {
	r := newRank(t, 0, 2, 4, mailbox.NewMemoryMailbox(), 1, 2)
	r.state = State(42)
	assert.Panics(t, func() { r.Step() })
}

// TestStateString tests state names
func TestStateString(t *testing.T) {
	assert.Equal(t, "init_pass", StateInitPass.String())
	assert.Equal(t, "boundary_left_recv", StateLeftRecv.String())
	assert.Equal(t, "local_sort", StateLocalSort.String())
	assert.Equal(t, "finished", StateFinished.String())
	assert.Equal(t, "state(42)", State(42).String())

	assert.True(t, StateLeftRecv.Waiting())
	assert.True(t, StateRightRecv.Waiting())
	assert.False(t, StateLocalSort.Waiting())
}

// TestView tests the snapshot view of a rank
func TestView(t *testing.T) {
	r := newRank(t, 0, 2, 4, mailbox.NewMemoryMailbox(), 3, 1)
	r.Step()
	r.Step()

	view := r.View()
	assert.Equal(t, 0, view.Index)
	assert.Equal(t, "local_sort", view.State)
	assert.Equal(t, []float64{1, 3}, view.Values())
	assert.Equal(t, uint64(1), view.Stats.Swaps)
	assert.Equal(t, uint64(2), view.Stats.Steps)

	// Views are copies
	view.Elements[0].Val = 99
	assert.Equal(t, 1.0, r.Elements()[0].Val)
}
