// Package retrying decorates a Fetcher with bounded attempts and exponential backoff.
package retrying

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/coffee-map-sync/internal/crawler"
	"github.com/JakeFAU/coffee-map-sync/internal/metrics"
)

// Fetcher retries transient failures of the wrapped Fetcher.
type Fetcher struct {
	next   crawler.Fetcher
	policy crawler.RetryPolicy
	pauser crawler.Pauser
	logger *zap.Logger
}

// New wraps next. A nil pauser sleeps on a real timer; a nil logger discards output.
func New(next crawler.Fetcher, policy crawler.RetryPolicy, pauser crawler.Pauser, logger *zap.Logger) *Fetcher {
	if pauser == nil {
		pauser = crawler.TimerPauser{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		next:   next,
		policy: policy,
		pauser: pauser,
		logger: logger.Named("fetcher"),
	}
}

// Fetch tries the request up to the policy's attempt cap. Terminal failures
// return immediately; exhaustion returns *crawler.RetriesExhaustedError.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	var lastErr error
	maxAttempts := f.policy.Attempts()
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		start := time.Now()
		resp, err := f.next.Fetch(ctx, request)
		if err == nil {
			metrics.ObserveFetch(request.URL, "ok", time.Since(start))
			resp.Attempts = attempt
			return resp, nil
		}
		lastErr = err

		if crawler.IsTerminal(err) {
			metrics.ObserveFetch(request.URL, "terminal", time.Since(start))
			f.logger.Warn("fetch failed terminally",
				zap.String("url", request.URL),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return crawler.FetchResponse{}, fmt.Errorf("fetch %s: %w", request.URL, err)
		}
		metrics.ObserveFetch(request.URL, "transient", time.Since(start))

		if !f.policy.ShouldRetry(err, attempt) {
			break
		}
		delay := f.policy.Backoff(attempt)
		metrics.ObserveRetry(request.URL)
		f.logger.Warn("fetch failed, retrying",
			zap.String("url", request.URL),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Duration("backoff", delay),
			zap.Error(err))
		f.pauser.Pause(ctx, delay)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return crawler.FetchResponse{}, fmt.Errorf("fetch %s: %w", request.URL, ctxErr)
		}
	}

	f.logger.Error("fetch retries exhausted",
		zap.String("url", request.URL),
		zap.Int("attempts", maxAttempts),
		zap.Error(lastErr))
	return crawler.FetchResponse{}, &crawler.RetriesExhaustedError{
		URL:      request.URL,
		Attempts: maxAttempts,
		Err:      lastErr,
	}
}
