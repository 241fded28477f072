package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can render distinct messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidConfiguration
	KindRateLimited
	KindProviderUnavailable
	KindMalformedResponse
	KindContentUnavailable
	KindUnretryable
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindInvalidConfiguration:
		return "invalid_configuration"
	case KindRateLimited:
		return "rate_limited"
	case KindProviderUnavailable:
		return "provider_unavailable"
	case KindMalformedResponse:
		return "malformed_response"
	case KindContentUnavailable:
		return "content_unavailable"
	case KindUnretryable:
		return "unretryable"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Retryable reports whether the generation client may retry a failure of this kind.
func (k Kind) Retryable() bool {
	return k == KindRateLimited || k == KindProviderUnavailable || k == KindMalformedResponse
}

// Sentinels for errors.Is. An *Error matches the sentinel of its Kind.
var (
	InvalidConfiguration = &Error{Kind: KindInvalidConfiguration}
	RateLimited          = &Error{Kind: KindRateLimited}
	ProviderUnavailable  = &Error{Kind: KindProviderUnavailable}
	MalformedResponse    = &Error{Kind: KindMalformedResponse}
	ContentUnavailable   = &Error{Kind: KindContentUnavailable}
	Unretryable          = &Error{Kind: KindUnretryable}
	Persistence          = &Error{Kind: KindPersistence}
)

// Error is the typed failure surfaced by the generation pipeline.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Kind, so errors.Is(err, errs.RateLimited) works
// regardless of Op and cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// UserMessage is the caller-facing text for a failure kind.
func UserMessage(kind Kind) string {
	switch kind {
	case KindInvalidConfiguration:
		return "The generator is misconfigured. Please contact support."
	case KindRateLimited:
		return "The AI provider is rate limiting requests. Please retry later."
	case KindProviderUnavailable:
		return "The AI provider is currently unavailable. Please retry later."
	case KindMalformedResponse:
		return "Could not understand the generated content. Please try again."
	case KindContentUnavailable:
		return "No content could be extracted from this source."
	case KindUnretryable:
		return "The AI provider rejected the request."
	case KindPersistence:
		return "Study material was generated but could not be saved."
	default:
		return "Something went wrong."
	}
}
