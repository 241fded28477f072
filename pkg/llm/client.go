package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/Enchanted-Dev-stack/we-study/internal/errs"
	"github.com/Enchanted-Dev-stack/we-study/internal/logger"
	"github.com/Enchanted-Dev-stack/we-study/internal/models"
	"github.com/Enchanted-Dev-stack/we-study/internal/types"
	"github.com/Enchanted-Dev-stack/we-study/pkg/repair"
)

const (
	DefaultMaxRetries       = 5
	DefaultInitialDelay     = 10 * time.Second
	DefaultServerErrorDelay = 15 * time.Second
	DefaultMaxRepairRetries = 2

	// NoRetries disables a retry budget.
	NoRetries = -1

	maxBackoffShift = 20
)

// RetryEvent describes a retry the client is about to perform.
type RetryEvent struct {
	Chunk   int
	Kind    errs.Kind
	Attempt int // 1-based, counted within the budget of Kind
	Delay   time.Duration
	Err     error
}

// ClientConfig represents the configuration for a generation client.
// Zero values are replaced by defaults. A retry budget set to NoRetries is
// disabled; other negative values are rejected.
type ClientConfig struct {
	// MaxRetries caps rate-limit and server-error retries together. It counts
	// retries after the first call.
	MaxRetries       int
	InitialDelay     time.Duration
	ServerErrorDelay time.Duration
	// MaxRepairRetries caps re-generations after an unrepairable response.
	MaxRepairRetries int
	OnRetry          func(RetryEvent)
}

// Client turns one chunk into a PartialDocument: render, call, repair, retry.
type Client struct {
	provider types.Provider
	prompt   *Prompt
	config   ClientConfig
	log      *logger.Logger
}

// NewClient creates a generation client. A nil prompt uses DefaultTemplate.
func NewClient(provider types.Provider, prompt *Prompt, config ClientConfig, log *logger.Logger) (*Client, error) {
	if provider == nil {
		return nil, errs.Newf(errs.KindInvalidConfiguration, "new client", "provider is required")
	}
	if config.MaxRetries < NoRetries || config.MaxRepairRetries < NoRetries || config.InitialDelay < 0 || config.ServerErrorDelay < 0 {
		return nil, errs.Newf(errs.KindInvalidConfiguration, "new client", "retry settings cannot be negative")
	}
	config.MaxRetries = retryBudget(config.MaxRetries, DefaultMaxRetries)
	config.MaxRepairRetries = retryBudget(config.MaxRepairRetries, DefaultMaxRepairRetries)
	if config.InitialDelay == 0 {
		config.InitialDelay = DefaultInitialDelay
	}
	if config.ServerErrorDelay == 0 {
		config.ServerErrorDelay = DefaultServerErrorDelay
	}
	if prompt == nil {
		var err error
		if prompt, err = NewPrompt(DefaultTemplate); err != nil {
			return nil, errs.New(errs.KindInvalidConfiguration, "new client", err)
		}
	}

	return &Client{
		provider: provider,
		prompt:   prompt,
		config:   config,
		log:      logger.OrNop(log),
	}, nil
}

func retryBudget(n, def int) int {
	switch n {
	case 0:
		return def
	case NoRetries:
		return 0
	}
	return n
}

// Config returns the effective configuration.
func (c *Client) Config() ClientConfig {
	return c.config
}

// Generate produces the PartialDocument for chunk. Failures are *errs.Error of
// kind RateLimited, ProviderUnavailable, MalformedResponse or Unretryable;
// context cancellation is returned unchanged.
func (c *Client) Generate(ctx context.Context, chunk models.Chunk) (*models.PartialDocument, error) {
	prompt, err := c.prompt.Render(chunk)
	if err != nil {
		return nil, errs.New(errs.KindInvalidConfiguration, "render prompt", err)
	}

	var (
		doc       *models.PartialDocument
		lastErr   error
		lastKind  errs.Kind
		transient int
		repairs   int
	)

	backoff := retry.BackoffFunc(func() (time.Duration, bool) {
		var (
			delay   time.Duration
			attempt int
		)
		switch lastKind {
		case errs.KindRateLimited:
			transient++
			if transient > c.config.MaxRetries {
				return 0, true
			}
			attempt = transient
			delay = BackoffDelay(c.config.InitialDelay, transient)
		case errs.KindProviderUnavailable:
			transient++
			if transient > c.config.MaxRetries {
				return 0, true
			}
			attempt = transient
			delay = c.config.ServerErrorDelay
		case errs.KindMalformedResponse:
			repairs++
			if repairs > c.config.MaxRepairRetries {
				return 0, true
			}
			attempt = repairs
		default:
			return 0, true
		}

		c.log.Warn("retrying generation",
			"chunk", chunk.Index,
			"kind", lastKind.String(),
			"attempt", attempt,
			"delay", delay,
			"error", lastErr,
		)
		if c.config.OnRetry != nil {
			c.config.OnRetry(RetryEvent{
				Chunk:   chunk.Index,
				Kind:    lastKind,
				Attempt: attempt,
				Delay:   delay,
				Err:     lastErr,
			})
		}
		return delay, false
	})

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		raw, err := c.provider.Complete(ctx, prompt)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			kind := Classify(err)
			lastErr = typed(kind, "complete", err)
			if !kind.Retryable() {
				return lastErr
			}
			lastKind = kind
			return retry.RetryableError(lastErr)
		}

		parsed, trace, err := repairWithTrace(raw)
		if err != nil {
			lastErr, lastKind = err, errs.KindMalformedResponse
			c.log.Debug("unrepairable response", "chunk", chunk.Index, "length", len(raw))
			return retry.RetryableError(err)
		}
		if trace != repair.StageDirect {
			c.log.Debug("repaired response", "chunk", chunk.Index, "stage", trace)
		}
		doc = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func repairWithTrace(raw string) (*models.PartialDocument, string, error) {
	res, err := repair.RepairWithTrace(raw)
	if err != nil {
		return nil, "", err
	}
	return res.Document, res.Stage, nil
}

// typed wraps err in an *errs.Error of kind unless it already is one.
func typed(kind errs.Kind, op string, err error) error {
	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}
	return errs.New(kind, op, err)
}

// BackoffDelay is initial * 2^(n-1) for the n-th retry.
func BackoffDelay(initial time.Duration, n int) time.Duration {
	if n < 1 {
		n = 1
	}
	shift := n - 1
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	return initial * time.Duration(1<<uint(shift))
}
