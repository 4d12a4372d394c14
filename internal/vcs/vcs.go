// Package vcs delegates source checkout to an external version-control
// tool (spec §1 "Out of scope": source-repository cloning and build
// invocation are delegated to an external VCS tool). This package is the
// seam: it builds and runs a command line and reports success/failure, it
// does not implement any VCS protocol itself.
//
// Checkout failures against one working directory are circuit-broken with
// sony/gobreaker so a persistently broken checkout (e.g. a stale remote, a
// disk-full working tree) fails fast instead of retrying a doomed clone on
// every job dispatch.
package vcs

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/sony/gobreaker"
)

// Checkout describes how to bring a working directory to a given commit.
// Command defaults to "git" but is overridable for tests and for
// alternative VCS tools.
type Checkout struct {
	Command string
}

// DefaultCommand is the external VCS binary invoked when Command is empty.
const DefaultCommand = "git"

func (c Checkout) command() string {
	if c.Command != "" {
		return c.Command
	}
	return DefaultCommand
}

// Checkouts manages one circuit breaker per working directory so a failing
// checkout against slot N does not trip the breaker for slot M.
type Checkouts struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	checkout Checkout
}

// NewCheckouts constructs a Checkouts using the given Checkout configuration.
func NewCheckouts(checkout Checkout) *Checkouts {
	return &Checkouts{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		checkout: checkout,
	}
}

func (c *Checkouts) breakerFor(dir string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	if b, ok := c.breakers[dir]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "vcs-checkout:" + dir,
		MaxRequests: 1,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	c.breakers[dir] = b
	return b
}

// Ensure checks out commit into dir if it is not already current, recording
// stdout/stderr to the given writer (the slot's error log, by convention).
func (c *Checkouts) Ensure(ctx context.Context, dir, commit string, currentCommit string, log io.Writer) error {
	if currentCommit == commit {
		return nil
	}

	breaker := c.breakerFor(dir)
	_, err := breaker.Execute(func() (any, error) {
		return nil, c.runCheckout(ctx, dir, commit, log)
	})
	if err != nil {
		return fmt.Errorf("vcs: checkout %s in %s: %w", commit, dir, err)
	}
	return nil
}

func (c *Checkouts) runCheckout(ctx context.Context, dir, commit string, log io.Writer) error {
	cmd := exec.CommandContext(ctx, c.checkout.command(), "checkout", commit)
	cmd.Dir = dir
	cmd.Stdout = log
	cmd.Stderr = log
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run %s checkout: %w", c.checkout.command(), err)
	}
	return nil
}
