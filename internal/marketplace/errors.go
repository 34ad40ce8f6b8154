package marketplace

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

var (
	ErrConfigMissingBaseURL      = errors.New("marketplace: base url is required")
	ErrConfigMissingMerchantID   = errors.New("marketplace: merchant id is required")
	ErrConfigMissingClientID     = errors.New("marketplace: client id is required")
	ErrConfigMissingClientSecret = errors.New("marketplace: client secret is required")
	ErrUnsupportedTransition     = errors.New("marketplace: status cannot be pushed")
	ErrInvalidResponse           = errors.New("marketplace: invalid response")
)

const defaultRetryAfter = 60 * time.Second

// StatusError is returned for every non-2xx answer of the marketplace API.
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("marketplace: %s failed with status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("marketplace: %s failed with status %d: %s", e.Operation, e.StatusCode, e.Body)
}

func newStatusError(operation string, res *http.Response, body []byte) *StatusError {
	err := &StatusError{
		Operation:  operation,
		StatusCode: res.StatusCode,
		Body:       truncate(string(body), 512),
	}

	if res.StatusCode == http.StatusTooManyRequests {
		err.RetryAfter = defaultRetryAfter
		if seconds, convErr := strconv.Atoi(res.Header.Get("Retry-After")); convErr == nil && seconds > 0 {
			err.RetryAfter = time.Duration(seconds) * time.Second
		}
	}

	return err
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not a StatusError.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
