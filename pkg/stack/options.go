package stack

import (
	"github.com/charmbracelet/log"

	"jsstack/pkg/memory"
	"jsstack/pkg/value"
)

// Option is a configuration function for a Stack.
type Option func(*Stack)

// WithAllocator sets how the region is reserved. The default is
// memory.ReserveHeap.
func WithAllocator(alloc memory.Allocator) Option {
	return func(s *Stack) {
		s.allocator = alloc
	}
}

// WithCommitGranularity sets the number of words committed per slow-path
// grow.
func WithCommitGranularity(words int) Option {
	return func(s *Stack) {
		s.commitGranularity = words
	}
}

// WithMaxExcessCapacity sets how many committed words may be kept after the
// stack fully unwinds. Anything at or above the threshold is released.
func WithMaxExcessCapacity(words int) Option {
	return func(s *Stack) {
		s.maxExcessCapacity = words
	}
}

// WithValidator replaces the validator chosen at build time.
func WithValidator(v Validator) Option {
	return func(s *Stack) {
		s.validator = v
	}
}

// WithDefaultValue sets the value used to pad missing arguments.
func WithDefaultValue(v value.Value) Option {
	return func(s *Stack) {
		s.defaultValue = v
	}
}

// WithLogger sets the logger used on slow paths.
func WithLogger(logger *log.Logger) Option {
	return func(s *Stack) {
		s.logger = logger
	}
}
