// Package poll implements the polling loops used for long-running Power
// Platform operations: a generic status poller and a monitor for
// Operation-Location URLs.
package poll

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pacx-labs/pacx/internal/logging"
)

// Status is the decoded JSON payload of one poll.
type Status map[string]any

// ErrTimeout is returned when the deadline passes before the operation
// reaches a terminal state.
var ErrTimeout = errors.New("polling timed out before the operation completed")

// Options controls poll cadence. Zero values fall back to the defaults.
type Options struct {
	Interval time.Duration
	Timeout  time.Duration
}

const (
	defaultInterval = 2 * time.Second
	defaultTimeout  = 10 * time.Minute
)

func (o Options) interval() time.Duration {
	if o.Interval > 0 {
		return o.Interval
	}
	return defaultInterval
}

func (o Options) timeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return defaultTimeout
}

// maxConsecutiveFetchFailures bounds how many failed polls in a row are
// tolerated before the poller gives up. The HTTP layer already retries
// transient faults, so repeated failures here mean the operation URL or the
// credential is bad.
const maxConsecutiveFetchFailures = 3

// Until repeatedly calls fetch until done reports true, the timeout elapses,
// or ctx is canceled. The last status is always returned so callers can
// inspect partial progress. Fetch errors abort the loop after
// maxConsecutiveFetchFailures in a row; a timeout after at least one failed
// fetch returns the last fetch error, otherwise ErrTimeout.
func Until(ctx context.Context, fetch func(ctx context.Context) (Status, error), done func(Status) bool, opts Options) (Status, error) {
	deadline := time.Now().Add(opts.timeout())
	ticker := time.NewTicker(opts.interval())
	defer ticker.Stop()

	var (
		last     Status
		lastErr  error
		failures int
	)
	for {
		status, err := fetch(ctx)
		if err == nil {
			last = status
			lastErr = nil
			failures = 0
			if p, ok := Progress(status); ok {
				logging.L().Debug("operation progress", zap.Int("percent", p))
			}
			if done(status) {
				return last, nil
			}
		} else {
			lastErr = err
			failures++
			logging.L().Debug("poll fetch failed", zap.Error(err), zap.Int("consecutive", failures))
			if failures >= maxConsecutiveFetchFailures {
				return last, fmt.Errorf("polling aborted after %d consecutive failures: %w", failures, err)
			}
		}
		if time.Now().After(deadline) {
			if lastErr != nil {
				return last, lastErr
			}
			return last, ErrTimeout
		}
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Progress extracts a percentage from the common progress field spellings.
func Progress(s Status) (int, bool) {
	for _, key := range []string{"percentComplete", "progress", "percent", "percentagecomplete", "completionPercent"} {
		if v, ok := s[key]; ok {
			switch n := v.(type) {
			case float64:
				return int(n), true
			case int:
				return n, true
			}
		}
	}
	return 0, false
}

// terminalStates covers the state spellings seen across the Power Platform
// operation surfaces.
var terminalStates = map[string]struct{}{
	"succeeded": {},
	"completed": {},
	"failed":    {},
	"canceled":  {},
	"cancelled": {},
	"faulted":   {},
	"error":     {},
}

// IsTerminal reports whether the status/state field of s names a terminal
// operation state (case-insensitive).
func IsTerminal(s Status) bool {
	return isTerminalState(StateOf(s))
}

func isTerminalState(state string) bool {
	_, ok := terminalStates[strings.ToLower(state)]
	return ok
}

// StateOf returns the first non-empty of the conventional state fields.
func StateOf(s Status) string {
	for _, key := range []string{"status", "state", "provisioningState"} {
		if v, ok := s[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
