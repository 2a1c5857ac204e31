// Package scenario loads simulation inputs from YAML files and generates
// seeded inputs the way the MPI benchmark does.
//
// A scenario either lists the partitions explicitly:
//
//	name: mixed-stress
//	ranks: 3
//	partitions:
//	  - [99, 95, 10]
//	  - [50, 45, 40]
//	  - [80, 5, 2]
//
// or asks for a generated sequence:
//
//	name: random-12
//	ranks: 4
//	total: 12
//	seed: 7
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"github.com/dreamware/bubblering/internal/coordinator"
	"github.com/dreamware/bubblering/internal/partition"
)

var (
	// ErrUnknownScenario is returned by Builtin for an unregistered name.
	ErrUnknownScenario = errors.New("unknown scenario")

	// ErrAmbiguous is returned when a scenario has both partitions and a seed.
	ErrAmbiguous = errors.New("scenario sets both partitions and seed")
)

// Scenario describes the input of one simulation.
type Scenario struct {
	Name       string      `yaml:"name"`
	Ranks      int         `yaml:"ranks"`
	Total      int         `yaml:"total,omitempty"`
	Seed       *int64      `yaml:"seed,omitempty"`
	Partitions [][]float64 `yaml:"partitions,omitempty"`
}

// Generated builds a scenario whose values come from Generate.
func Generated(name string, ranks, total int, seed int64) Scenario {
	return Scenario{Name: name, Ranks: ranks, Total: total, Seed: &seed}
}

// Parse decodes a scenario from YAML and validates it.
// Unknown fields are rejected.
func Parse(r io.Reader) (Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return Scenario{}, fmt.Errorf("decode scenario: empty document")
		}
		return Scenario{}, fmt.Errorf("decode scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Scenario{}, err
	}
	return s, nil
}

// Load reads and parses the scenario file at path.
func Load(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	s, err := Parse(bytes.NewReader(data))
	if err != nil {
		return Scenario{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Marshal encodes the scenario as YAML.
func (s Scenario) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

// Validate checks the scenario against the partition geometry.
// Explicit partitions fill in Total when it is omitted.
func (s *Scenario) Validate() error {
	if len(s.Partitions) > 0 {
		if s.Seed != nil {
			return ErrAmbiguous
		}
		count := 0
		for _, p := range s.Partitions {
			count += len(p)
		}
		if s.Total == 0 {
			s.Total = count
		}
		if count != s.Total {
			return fmt.Errorf("scenario %q: partitions hold %d values, total is %d", s.Name, count, s.Total)
		}
	}
	if _, err := partition.NewLayout(s.Ranks, s.Total); err != nil {
		return fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	return nil
}

// Values returns the global input sequence.
func (s Scenario) Values() []float64 {
	if len(s.Partitions) > 0 {
		var out []float64
		for _, p := range s.Partitions {
			out = append(out, p...)
		}
		return out
	}
	var seed int64
	if s.Seed != nil {
		seed = *s.Seed
	}
	return Generate(s.Total, seed)
}

// Split returns the input sequence cut into one partition per rank.
// The scenario must be valid.
func (s Scenario) Split() [][]float64 {
	if len(s.Partitions) > 0 {
		out := make([][]float64, len(s.Partitions))
		for i, p := range s.Partitions {
			out[i] = slices.Clone(p)
		}
		return out
	}
	values := s.Values()
	localLen := s.Total / s.Ranks
	out := make([][]float64, s.Ranks)
	for r := range out {
		out[r] = values[r*localLen : (r+1)*localLen]
	}
	return out
}

// Config returns a coordinator configuration for the scenario.
func (s Scenario) Config() coordinator.Config {
	return coordinator.Config{
		Partitions: s.Split(),
		Ranks:      s.Ranks,
		Total:      s.Total,
	}
}

// Generate returns n values in [0, 9.9] with one decimal.
// Element i is drawn from a source seeded with seed*(i+5), so a value depends
// only on its index and the seed, never on how the sequence is partitioned.
func Generate(n int, seed int64) []float64 {
	out := make([]float64, n)
	for i := range out {
		rng := rand.New(rand.NewSource(seed * int64(i+5)))
		out[i] = float64(rng.Intn(100)) / 10
	}
	return out
}

var builtins = map[string]Scenario{
	"mixed-stress": {
		Name:       "mixed-stress",
		Ranks:      3,
		Total:      9,
		Partitions: [][]float64{{99, 95, 10}, {50, 45, 40}, {80, 5, 2}},
	},
	"reversed": {
		Name:       "reversed",
		Ranks:      4,
		Total:      8,
		Partitions: [][]float64{{8, 7}, {6, 5}, {4, 3}, {2, 1}},
	},
	"sorted": {
		Name:       "sorted",
		Ranks:      2,
		Total:      6,
		Partitions: [][]float64{{1, 2, 3}, {4, 5, 6}},
	},
	"duplicates": {
		Name:       "duplicates",
		Ranks:      3,
		Total:      9,
		Partitions: [][]float64{{3, 1, 3}, {1, 3, 1}, {3, 1, 3}},
	},
}

// Builtin returns a copy of a named scenario shipped with the simulator.
func Builtin(name string) (Scenario, error) {
	s, ok := builtins[name]
	if !ok {
		return Scenario{}, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
	}
	s.Partitions = s.Split()
	return s, nil
}

// BuiltinNames returns the names accepted by Builtin, sorted.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
