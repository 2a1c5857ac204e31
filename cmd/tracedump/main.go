package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dreamware/bubblering/internal/cluster"
	"github.com/dreamware/bubblering/internal/trace"
)

type summaryJSON struct {
	Ticks        int       `json:"ticks"`
	TotalSwaps   uint64    `json:"total_swaps"`
	BlockedTicks []uint64  `json:"blocked_ticks_per_rank"`
	Passes       []int     `json:"passes_per_rank"`
	Finished     bool      `json:"finished"`
	Sorted       bool      `json:"sorted"`
	Values       []float64 `json:"values"`
}

func main() {
	asJSON := flag.Bool("json", false, "Print snapshots as JSON lines instead of a tick table")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: tracedump [-json] <trace>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	r, err := trace.Open(flag.Arg(0))
	if err != nil {
		fatalf("%v", err)
	}
	defer r.Close()

	if *asJSON {
		err = dumpJSON(r, os.Stdout)
	} else {
		err = dumpTable(r, os.Stdout)
	}
	if err != nil {
		fatalf("%v", err)
	}
}

func dumpJSON(r *trace.Reader, out io.Writer) error {
	enc := json.NewEncoder(out)
	for {
		s, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
	}
}

func dumpTable(r *trace.Reader, out io.Writer) error {
	var last cluster.Snapshot
	seen := false
	for {
		s, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(out, tickLine(s))
		last, seen = s, true
	}
	if !seen {
		return errors.New("trace holds no snapshots")
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summarize(last)); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// tickLine renders one snapshot as
// "tick 12  swaps 7  in-flight 1  blocked [1 2]  passes 2/1/1".
func tickLine(s cluster.Snapshot) string {
	passes := make([]string, len(s.Ranks))
	for i, view := range s.Ranks {
		mark := ""
		if view.Finished {
			mark = "*"
		}
		passes[i] = fmt.Sprintf("%d%s", view.PassIndex, mark)
	}
	blocked := s.BlockedRanks()
	if blocked == nil {
		blocked = []int{}
	}
	return fmt.Sprintf("tick %d  swaps %d  in-flight %d  blocked %v  passes %s",
		s.Tick, s.TotalSwaps, s.InFlight, blocked, strings.Join(passes, "/"))
}

func summarize(s cluster.Snapshot) summaryJSON {
	sum := summaryJSON{
		Ticks:        s.Tick,
		TotalSwaps:   s.TotalSwaps,
		BlockedTicks: make([]uint64, len(s.Ranks)),
		Passes:       make([]int, len(s.Ranks)),
		Finished:     s.AllFinished,
		Sorted:       s.Sorted(),
		Values:       s.Values(),
	}
	for i, view := range s.Ranks {
		sum.BlockedTicks[i] = view.Stats.BlockedTicks
		sum.Passes[i] = view.PassIndex
	}
	return sum
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
