package litmus

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"

	"github.com/icsa-caps/mc2lib/codegen"
	"github.com/icsa-caps/mc2lib/codegen/amd64"
	mc "github.com/icsa-caps/mc2lib/memconsistency"
)

// RunConfig describes a randomly generated test program.
type RunConfig struct {
	// Threads is the number of threads of the test program.
	Threads int `json:"threads"`

	// OpsPerThread is the number of operations drawn for each thread,
	// not counting the final return.
	OpsPerThread int `json:"ops_per_thread"`

	// MinAddr and MaxAddr bound the inclusive window the test
	// locations are drawn from. A narrow window makes the threads
	// contend, which is the point of a litmus test.
	MinAddr uint64 `json:"min_addr"`
	MaxAddr uint64 `json:"max_addr"`

	// Weights sets the relative frequency of each operation kind.
	Weights amd64.OpWeights `json:"weights"`
}

// DefaultRunConfig returns a small two-thread program over four
// contended locations.
func DefaultRunConfig() *RunConfig {
	return &RunConfig{
		Threads:      2,
		OpsPerThread: 8,
		MinAddr:      0x10,
		MaxAddr:      0x13,
		Weights:      amd64.DefaultOpWeights(),
	}
}

// LoadRunConfig loads a RunConfig from a JSON file. Fields absent from
// the file keep their defaults.
func LoadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run config file: %w", err)
	}

	config := DefaultRunConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse run config: %w", err)
	}

	return config, nil
}

// SaveConfig writes the RunConfig to a JSON file.
func (c *RunConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize run config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration describes a buildable program.
func (c *RunConfig) Validate() error {
	if c.Threads <= 0 {
		return fmt.Errorf("threads must be > 0")
	}
	if c.OpsPerThread <= 0 {
		return fmt.Errorf("ops_per_thread must be > 0")
	}
	if c.MaxAddr < c.MinAddr {
		return fmt.Errorf("address window [0x%X, 0x%X] is empty",
			c.MinAddr, c.MaxAddr)
	}
	total := c.Weights.Read + c.Weights.Write + c.Weights.ReadModifyWrite +
		c.Weights.Fence + c.Weights.CacheFlush + c.Weights.Delay
	if total <= 0 {
		return fmt.Errorf("no positive operation weights")
	}
	return nil
}

// BuildRandom draws a random test program from the configuration. Each
// thread gets OpsPerThread operations followed by a return. The same
// seed draws the same program.
func BuildRandom(c *RunConfig, seed int64) ([]codegen.Op, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run config: %w", err)
	}
	factory := amd64.NewRandomFactory(mc.Addr(c.MinAddr), mc.Addr(c.MaxAddr),
		c.Weights)
	rng := rand.New(rand.NewSource(seed))
	pids := make([]mc.Pid, c.Threads)
	for i := range pids {
		pids[i] = mc.Pid(i)
	}
	ops := factory.MakeSequence(rng, pids, c.OpsPerThread)
	for _, pid := range pids {
		ops = append(ops, amd64.NewReturn(pid))
	}
	return ops, nil
}
