package harvest

import "errors"

// Fetch outcome taxonomy. Fetchers and the pipeline wrap these so retry and
// pacing logic can classify failures with errors.Is.
var (
	// ErrRateLimited marks a 429-equivalent response; it triggers backoff.
	ErrRateLimited = errors.New("rate limited")
	// ErrHardFailure marks a non-retryable HTTP failure or exhausted transport error.
	ErrHardFailure = errors.New("fetch failed")
	// ErrRobotsDisallowed marks a URL the robots policy refused.
	ErrRobotsDisallowed = errors.New("disallowed by robots policy")
)
