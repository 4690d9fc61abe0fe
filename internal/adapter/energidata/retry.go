package energidata

import (
	"context"
	"net/http"
	"time"
)

const maxBackoff = 10 * time.Second

// retryable reports whether a failed request is worth repeating: transport
// errors, rate limiting and server-side failures.
func retryable(ctx context.Context, status int, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if err != nil {
		return true
	}
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
