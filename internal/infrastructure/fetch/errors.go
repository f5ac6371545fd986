package fetch

import "fmt"

// TransientError reports that a retryable failure persisted through every
// configured attempt.
type TransientError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("fetch %s: retries exhausted after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError reports a non-retryable response (4xx other than 429).
type PermanentError struct {
	URL        string
	StatusCode int
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("fetch %s: permanent failure: status %d", e.URL, e.StatusCode)
}

// TimeoutError reports that the call exceeded its deadline.
type TimeoutError struct {
	URL string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("fetch %s: timed out: %v", e.URL, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }
