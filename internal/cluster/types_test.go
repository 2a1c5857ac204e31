package cluster

import (
	"encoding/json"
	"errors"
	"testing"
)

// TestElementGreater tests that ordering only looks at Val
func TestElementGreater(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Element
		expected bool
	}{
		{name: "larger value", a: Element{Nr: 0, Val: 9.5}, b: Element{Nr: 1, Val: 1.0}, expected: true},
		{name: "smaller value", a: Element{Nr: 0, Val: 1.0}, b: Element{Nr: 1, Val: 9.5}, expected: false},
		{name: "equal values do not order", a: Element{Nr: 5, Val: 3.3}, b: Element{Nr: 1, Val: 3.3}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Greater(tt.b); got != tt.expected {
				t.Errorf("Expected %v.Greater(%v) = %v, got %v", tt.a, tt.b, tt.expected, got)
			}
		})
	}
}

// TestElementString tests the report format of an element
func TestElementString(t *testing.T) {
	e := Element{Nr: 3, Val: 4.25}
	if got := e.String(); got != "(3, 4.2)" && got != "(3, 4.3)" {
		t.Errorf("Expected (3, 4.2) style output, got %s", got)
	}
	if got := (Element{Nr: 12, Val: 9}).String(); got != "(12, 9.0)" {
		t.Errorf("Expected (12, 9.0), got %s", got)
	}
}

// TestSnapshotHelpers tests the aggregate helpers on Snapshot
func TestSnapshotHelpers(t *testing.T) {
	snap := Snapshot{
		Ranks: []RankView{
			{Index: 0, Elements: []Element{{Nr: 0, Val: 1}, {Nr: 1, Val: 2}}},
			{Index: 1, Elements: []Element{{Nr: 2, Val: 3}, {Nr: 3, Val: 4}}, Blocked: true},
			{Index: 2, Elements: []Element{{Nr: 4, Val: 5}, {Nr: 5, Val: 6}}, Blocked: true},
		},
	}

	t.Run("values in rank order", func(t *testing.T) {
		values := snap.Values()
		expected := []float64{1, 2, 3, 4, 5, 6}
		if len(values) != len(expected) {
			t.Fatalf("Expected %d values, got %d", len(expected), len(values))
		}
		for i := range expected {
			if values[i] != expected[i] {
				t.Errorf("Expected values[%d] = %v, got %v", i, expected[i], values[i])
			}
		}
	})

	t.Run("sorted", func(t *testing.T) {
		if !snap.Sorted() {
			t.Error("Expected snapshot to be sorted")
		}
		unsorted := Snapshot{Ranks: []RankView{
			{Elements: []Element{{Val: 2}, {Val: 1}}},
		}}
		if unsorted.Sorted() {
			t.Error("Expected snapshot to be unsorted")
		}
	})

	t.Run("blocked ranks", func(t *testing.T) {
		blocked := snap.BlockedRanks()
		if len(blocked) != 2 || blocked[0] != 1 || blocked[1] != 2 {
			t.Errorf("Expected blocked ranks [1 2], got %v", blocked)
		}
	})
}

// TestSnapshotJSON tests the field names a trace file relies on
func TestSnapshotJSON(t *testing.T) {
	snap := Snapshot{
		Tick:        7,
		AllFinished: true,
		Ranks: []RankView{
			{Index: 1, PassIndex: 2, State: "finished", Elements: []Element{{Nr: 4, Val: 1.5}}},
		},
	}

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("Failed to marshal Snapshot: %v", err)
	}

	var jsonMap map[string]interface{}
	if err := json.Unmarshal(data, &jsonMap); err != nil {
		t.Fatalf("Failed to unmarshal JSON: %v", err)
	}

	for _, field := range []string{"ranks", "tick", "in_flight", "total_swaps", "all_finished"} {
		if _, ok := jsonMap[field]; !ok {
			t.Errorf("Missing %s field", field)
		}
	}

	ranks := jsonMap["ranks"].([]interface{})
	rank := ranks[0].(map[string]interface{})
	if rank["pass_index"] != float64(2) {
		t.Errorf("Expected pass_index 2, got %v", rank["pass_index"])
	}
	if _, ok := rank["highlights"]; ok {
		t.Error("Expected empty highlights to be omitted")
	}
}

// TestObserverFunc tests the function adapter
func TestObserverFunc(t *testing.T) {
	var seen []int
	obs := ObserverFunc(func(s Snapshot) error {
		seen = append(seen, s.Tick)
		if s.Tick == 2 {
			return errors.New("stop")
		}
		return nil
	})

	if err := obs.Observe(Snapshot{Tick: 1}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := obs.Observe(Snapshot{Tick: 2}); err == nil {
		t.Error("Expected error from observer")
	}
	if len(seen) != 2 {
		t.Errorf("Expected 2 observed ticks, got %d", len(seen))
	}
}
