package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/dreamware/bubblering/internal/cluster"
	"github.com/dreamware/bubblering/internal/coordinator"
	"github.com/dreamware/bubblering/internal/scenario"
	"github.com/dreamware/bubblering/internal/trace"
)

// listLimit is the largest sequence printed in full.
const listLimit = 20

type options struct {
	scenario string // YAML path or built-in name
	trace    string
	ranks    int
	total    int
	seed     int64
	verbose  bool
}

func main() {
	opts, err := optionsFromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		log.Println("interrupted, stopping simulation")
		cancel()
	}()

	if err := run(ctx, opts, os.Stdout); err != nil {
		log.Fatalf("bubblesim: %v", err)
	}
}

func optionsFromEnv() (options, error) {
	opts := options{
		scenario: getenv("BUBBLESIM_SCENARIO", ""),
		trace:    getenv("BUBBLESIM_TRACE", ""),
	}
	var err error
	if opts.ranks, err = strconv.Atoi(getenv("BUBBLESIM_RANKS", "3")); err != nil {
		return options{}, fmt.Errorf("BUBBLESIM_RANKS: %w", err)
	}
	if opts.total, err = strconv.Atoi(getenv("BUBBLESIM_TOTAL", "9")); err != nil {
		return options{}, fmt.Errorf("BUBBLESIM_TOTAL: %w", err)
	}
	if opts.seed, err = strconv.ParseInt(getenv("BUBBLESIM_SEED", "1"), 10, 64); err != nil {
		return options{}, fmt.Errorf("BUBBLESIM_SEED: %w", err)
	}
	if v := getenv("BUBBLESIM_VERBOSE", ""); v != "" {
		if opts.verbose, err = strconv.ParseBool(v); err != nil {
			return options{}, fmt.Errorf("BUBBLESIM_VERBOSE: %w", err)
		}
	}
	return opts, nil
}

// loadScenario resolves the scenario option: a built-in name, a YAML file,
// or, when empty, a generated sequence.
func loadScenario(opts options) (scenario.Scenario, error) {
	if opts.scenario == "" {
		s := scenario.Generated("generated", opts.ranks, opts.total, opts.seed)
		if err := s.Validate(); err != nil {
			return scenario.Scenario{}, err
		}
		return s, nil
	}
	s, err := scenario.Builtin(opts.scenario)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, scenario.ErrUnknownScenario) {
		return scenario.Scenario{}, err
	}
	return scenario.Load(opts.scenario)
}

func run(ctx context.Context, opts options, out io.Writer) error {
	sc, err := loadScenario(opts)
	if err != nil {
		return err
	}

	cfg := sc.Config()
	cfg.Logger = log.Default()
	coord, err := coordinator.New(cfg)
	if err != nil {
		return err
	}
	log.Printf("scenario %q: %d ranks, %d elements, tick budget %d", sc.Name, sc.Ranks, sc.Total, coord.MaxTicks())

	total := coord.Layout().Total()
	if total <= listLimit {
		fmt.Fprintf(out, "Input:%s\n", formatElements(coord.Elements()))
	}

	var observers []cluster.Observer
	if opts.trace != "" {
		tw, err := trace.Create(opts.trace)
		if err != nil {
			return err
		}
		defer func() {
			if err := tw.Close(); err != nil {
				log.Printf("trace: %v", err)
			}
		}()
		observers = append(observers, tw)
	}
	if opts.verbose {
		observers = append(observers, cluster.ObserverFunc(logStatuses))
	}

	ticks, err := coord.Run(ctx, fanOut(observers))
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "ticks = %d\n", ticks)
	fmt.Fprintf(out, "n_swaps = %d\n", coord.TotalSwaps())
	for _, view := range coord.Snapshot().Ranks {
		first, last := view.Elements[0], view.Elements[len(view.Elements)-1]
		fmt.Fprintf(out, "P%d: %s %s\n", view.Index, first, last)
	}
	if total <= listLimit {
		fmt.Fprintf(out, "Output:%s\n", formatElements(coord.Elements()))
	}
	return nil
}

// fanOut combines observers; nil when there are none.
func fanOut(observers []cluster.Observer) cluster.Observer {
	if len(observers) == 0 {
		return nil
	}
	return cluster.ObserverFunc(func(s cluster.Snapshot) error {
		for _, obs := range observers {
			if err := obs.Observe(s); err != nil {
				return err
			}
		}
		return nil
	})
}

func logStatuses(s cluster.Snapshot) error {
	for _, view := range s.Ranks {
		log.Printf("tick %d P%d [%s] %s", s.Tick, view.Index, view.State, view.Status)
	}
	return nil
}

func formatElements(elements []cluster.Element) string {
	var b []byte
	for _, e := range elements {
		b = append(b, ' ')
		b = append(b, e.String()...)
	}
	return string(b)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
