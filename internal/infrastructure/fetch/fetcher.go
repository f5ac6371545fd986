package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"SejmAudit/internal/config"
	"SejmAudit/internal/ports"
)

const userAgent = "SejmAudit/1.0"

// Fetcher performs all outbound retrieval. Every call passes through one
// shared rate limiter; transient failures (network errors, 5xx, 429) are
// retried with exponential backoff plus jitter, other 4xx fail immediately.
type Fetcher struct {
	client          *http.Client
	limiter         *rate.Limiter
	maxAttempts     int
	attemptTimeout  time.Duration
	initialInterval time.Duration
	maxInterval     time.Duration
	logger          *slog.Logger
}

var _ ports.Fetcher = (*Fetcher)(nil)

// New builds a fetcher from configuration. The limiter is owned by the
// fetcher and shared across all concurrent callers.
func New(cfg config.FetchConfig, client *http.Client, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}
	return &Fetcher{
		client:          client,
		limiter:         rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst),
		maxAttempts:     cfg.MaxAttempts,
		attemptTimeout:  cfg.Timeout(),
		initialInterval: 500 * time.Millisecond,
		maxInterval:     30 * time.Second,
		logger:          logger,
	}
}

// Fetch retrieves the raw response body for url.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = f.initialInterval
	bo.MaxInterval = f.maxInterval
	bo.MaxElapsedTime = 0

	var lastErr error
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, &TimeoutError{URL: url, Err: err}
		}

		data, retryAfter, err := f.attempt(ctx, url)
		if err == nil {
			return data, nil
		}

		var perm *PermanentError
		if errors.As(err, &perm) {
			return nil, err
		}
		lastErr = err

		if attempt == f.maxAttempts {
			break
		}

		delay := bo.NextBackOff()
		if retryAfter > delay {
			delay = retryAfter
		}
		f.debug("retrying", "url", url, "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &TimeoutError{URL: url, Err: ctx.Err()}
		}
	}

	var timeout *TimeoutError
	if errors.As(lastErr, &timeout) {
		return nil, lastErr
	}
	return nil, &TransientError{URL: url, Attempts: f.maxAttempts, Err: lastErr}
}

// FetchJSON retrieves url and decodes the body into v.
func (f *Fetcher) FetchJSON(ctx context.Context, url string, v any) error {
	data, err := f.Fetch(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// attempt performs one HTTP round trip. The returned duration is the
// server-provided Retry-After hint, zero when absent.
func (f *Fetcher) attempt(ctx context.Context, url string) ([]byte, time.Duration, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, &PermanentError{URL: url, StatusCode: 0}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, 0, &TimeoutError{URL: url, Err: err}
		}
		return nil, 0, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, 0, fmt.Errorf("read body %s: %w", url, err)
		}
		return data, 0, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, retryAfterHint(resp), fmt.Errorf("rate limited: %s", resp.Status)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, 0, fmt.Errorf("server error: %s", resp.Status)
	default:
		return nil, 0, &PermanentError{URL: url, StatusCode: resp.StatusCode}
	}
}

func retryAfterHint(resp *http.Response) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(raw); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 0
}

func (f *Fetcher) debug(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}
