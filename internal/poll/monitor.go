package poll

import (
	"context"
)

// Fetcher is the subset of the HTTP client the monitor needs. It is
// satisfied by a closure over httpx.Client.Get so this package stays free of
// transport concerns.
type Fetcher func(ctx context.Context, url string) (Status, error)

// Monitor polls an Operation-Location URL until the payload reaches a
// terminal state or the timeout elapses, returning the last payload.
func Monitor(ctx context.Context, fetch Fetcher, operationURL string, opts Options) (Status, error) {
	return Until(ctx, func(ctx context.Context) (Status, error) {
		return fetch(ctx, operationURL)
	}, func(s Status) bool {
		if IsTerminal(s) {
			return true
		}
		// Some surfaces omit a state but stamp a completion time.
		if _, ok := s["endTime"]; ok {
			return true
		}
		if _, ok := s["completedOn"]; ok {
			return true
		}
		return false
	}, opts)
}
