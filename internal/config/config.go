// Package config handles jsstack.toml runtime configuration.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"

	"jsstack/pkg/memory"
	"jsstack/pkg/stack"
)

// Config is the runtime configuration.
type Config struct {
	Stack       Stack       `toml:"stack"`
	Interpreter Interpreter `toml:"interpreter"`
}

// Stack configures the execution stack. Sizes are in slots.
type Stack struct {
	Capacity          int    `toml:"capacity"`
	Guard             int    `toml:"guard"`
	CommitGranularity int    `toml:"commit_granularity"`
	MaxExcessCapacity int    `toml:"max_excess_capacity"`
	Debug             bool   `toml:"debug"`
	FenceSize         int    `toml:"fence_size"`
	TrapWords         int    `toml:"trap_words"`
	Backend           string `toml:"backend"`
}

// Interpreter configures the VM loop.
type Interpreter struct {
	MaxSteps int    `toml:"max_steps"`
	Entry    string `toml:"entry"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Stack: Stack{
			Capacity:          512 * 1024,
			Guard:             4096,
			CommitGranularity: stack.DefaultCommitGranularity,
			MaxExcessCapacity: stack.DefaultMaxExcessCapacity,
			Debug:             stack.DebugBuild,
			FenceSize:         stack.DefaultFenceSize,
			TrapWords:         stack.DefaultTrapWords,
			Backend:           "heap",
		},
		Interpreter: Interpreter{
			MaxSteps: 0,
			Entry:    "main",
		},
	}
}

// Load reads a TOML file on top of the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("cannot read %s: %w", path, err)
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every problem with the configuration at once.
func (c Config) Validate() error {
	var errs *multierror.Error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = multierror.Append(errs, fmt.Errorf(format, args...))
		}
	}

	s := c.Stack
	check(s.Capacity > 0, "stack.capacity must be positive, got %d", s.Capacity)
	check(s.Guard >= 0, "stack.guard must not be negative, got %d", s.Guard)
	check(s.Capacity+s.Guard <= memory.MaxWords, "stack.capacity + stack.guard must not exceed %d slots", memory.MaxWords)
	check(s.CommitGranularity > 0, "stack.commit_granularity must be positive, got %d", s.CommitGranularity)
	check(s.MaxExcessCapacity >= s.CommitGranularity,
		"stack.max_excess_capacity (%d) must be at least stack.commit_granularity (%d)", s.MaxExcessCapacity, s.CommitGranularity)
	check(s.FenceSize >= 0, "stack.fence_size must not be negative, got %d", s.FenceSize)
	check(s.TrapWords >= 0, "stack.trap_words must not be negative, got %d", s.TrapWords)
	if _, err := memory.AllocatorFor(s.Backend); err != nil {
		check(false, "stack.backend: %v", err)
	}

	check(c.Interpreter.MaxSteps >= 0, "interpreter.max_steps must not be negative, got %d", c.Interpreter.MaxSteps)
	check(c.Interpreter.Entry != "", "interpreter.entry must not be empty")

	return errs.ErrorOrNil()
}

// StackOptions translates the configuration into stack options.
func (c Config) StackOptions() ([]stack.Option, error) {
	alloc, err := memory.AllocatorFor(c.Stack.Backend)
	if err != nil {
		return nil, err
	}

	opts := []stack.Option{
		stack.WithAllocator(alloc),
		stack.WithCommitGranularity(c.Stack.CommitGranularity),
		stack.WithMaxExcessCapacity(c.Stack.MaxExcessCapacity),
	}
	if c.Stack.Debug {
		opts = append(opts, stack.WithValidator(stack.NewFenceValidator(c.Stack.FenceSize, c.Stack.TrapWords)))
	} else {
		opts = append(opts, stack.WithValidator(stack.NopValidator{}))
	}
	return opts, nil
}

// ErrNoConfig is returned by Find when no configuration file exists.
var ErrNoConfig = errors.New("no configuration file")

// Find returns the first of the candidate paths that exists.
func Find(candidates ...string) (string, error) {
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", ErrNoConfig
}
