package llm

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/Enchanted-Dev-stack/we-study/internal/errs"
)

// HTTPStatusCoder is implemented by provider errors that carry a response status.
type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

var (
	rateLimitMarkers   = []string{"429", "too many requests", "rate limit", "ratelimit", "quota", "resource_exhausted"}
	unavailableMarkers = []string{
		"500", "502", "503", "504", "internal server error", "bad gateway", "unavailable",
		"overloaded", "timeout", "timed out", "connection refused", "connection reset",
	}
)

// Classify maps a provider error onto the pipeline taxonomy. Errors that are
// neither rate limits nor server-side failures are Unretryable.
func Classify(err error) errs.Kind {
	if err == nil {
		return errs.KindUnknown
	}
	var typed *errs.Error
	if errors.As(err, &typed) {
		return typed.Kind
	}

	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		return classifyStatus(sc.HTTPStatusCode())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.KindProviderUnavailable
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errs.KindProviderUnavailable
	}

	msg := strings.ToLower(err.Error())
	for _, m := range rateLimitMarkers {
		if strings.Contains(msg, m) {
			return errs.KindRateLimited
		}
	}
	for _, m := range unavailableMarkers {
		if strings.Contains(msg, m) {
			return errs.KindProviderUnavailable
		}
	}
	return errs.KindUnretryable
}

func classifyStatus(code int) errs.Kind {
	switch {
	case code == 429:
		return errs.KindRateLimited
	case code == 408 || (code >= 500 && code <= 599):
		return errs.KindProviderUnavailable
	default:
		return errs.KindUnretryable
	}
}
