package worker

import (
	"fmt"
	"time"
)

// Config holds the configuration for the background task worker.
type Config struct {
	// Interval is how often every registered task runs. Tasks also run
	// once immediately on Start.
	// Default: 1 hour
	Interval time.Duration

	// TaskTimeout is the maximum time a single task run is allowed.
	// If a run exceeds this timeout, its context is canceled.
	// Default: 5 minutes
	TaskTimeout time.Duration

	// ShutdownTimeout is how long Stop waits for a running task.
	// Default: 30 seconds
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Interval:        time.Hour,
		TaskTimeout:     5 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Interval < 1*time.Second {
		return fmt.Errorf("interval must be at least 1 second, got %v", c.Interval)
	}
	if c.TaskTimeout < 1*time.Second {
		return fmt.Errorf("task timeout must be at least 1 second, got %v", c.TaskTimeout)
	}
	if c.TaskTimeout > c.Interval {
		return fmt.Errorf("task timeout (%v) must not exceed interval (%v)", c.TaskTimeout, c.Interval)
	}
	if c.ShutdownTimeout < 1*time.Second {
		return fmt.Errorf("shutdown timeout must be at least 1 second, got %v", c.ShutdownTimeout)
	}
	return nil
}
