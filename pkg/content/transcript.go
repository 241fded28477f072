package content

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Enchanted-Dev-stack/we-study/internal/errs"
	"github.com/Enchanted-Dev-stack/we-study/internal/logger"
)

type TranscriptConfig struct {
	BaseURL    string
	Language   string
	Timeout    time.Duration
	RetryCount int
}

// Transcript is the transcript service response body.
type Transcript struct {
	VideoID  string    `json:"videoId"`
	Language string    `json:"language"`
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

type apiError struct {
	Message string `json:"message"`
}

// TranscriptSource fetches video transcripts from a transcript service.
type TranscriptSource struct {
	config TranscriptConfig
	client *resty.Client
	log    *logger.Logger
}

func NewTranscriptSource(config TranscriptConfig, log *logger.Logger) (*TranscriptSource, error) {
	if config.BaseURL == "" {
		return nil, errs.Newf(errs.KindInvalidConfiguration, "new transcript source", "transcript service url is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Language == "" {
		config.Language = "en"
	}
	if config.RetryCount == 0 {
		config.RetryCount = 2
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
		SetTimeout(config.Timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(config.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)
	client.AddRetryCondition(retryCondition)

	return &TranscriptSource{
		config: config,
		client: client,
		log:    logger.OrNop(log),
	}, nil
}

func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= 500 || code == 429 || code == 408
}

// Extract returns the transcript of the video rawURL points to.
func (s *TranscriptSource) Extract(ctx context.Context, rawURL string) (string, error) {
	id, ok := VideoID(rawURL)
	if !ok {
		return "", errs.Newf(errs.KindContentUnavailable, "fetch transcript", "no video id in %q", rawURL)
	}
	t, err := s.Fetch(ctx, id)
	if err != nil {
		return "", err
	}
	return t.PlainText(), nil
}

// Fetch requests the transcript of video id.
func (s *TranscriptSource) Fetch(ctx context.Context, id string) (*Transcript, error) {
	var result Transcript
	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetQueryParam("lang", s.config.Language).
		SetResult(&result).
		SetError(&apiError{}).
		Get("/transcripts/{id}")
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errs.New(errs.KindContentUnavailable, "fetch transcript", err)
	}
	if resp.IsError() {
		msg := resp.Status()
		if apiErr, ok := resp.Error().(*apiError); ok && apiErr.Message != "" {
			msg = apiErr.Message
		}
		return nil, errs.Newf(errs.KindContentUnavailable, "fetch transcript", "transcript service returned %d for %s: %s", resp.StatusCode(), id, msg)
	}

	if result.VideoID == "" {
		result.VideoID = id
	}
	s.log.Debug("transcript fetched", "video", id, "segments", len(result.Segments), "bytes", len(result.Text))
	return &result, nil
}

// PlainText is Text when the service sent one, otherwise the segments joined
// by spaces.
func (t *Transcript) PlainText() string {
	if strings.TrimSpace(t.Text) != "" {
		return strings.TrimSpace(t.Text)
	}
	parts := make([]string, 0, len(t.Segments))
	for _, seg := range t.Segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

func (t *Transcript) String() string {
	return fmt.Sprintf("transcript %s (%s, %d segments)", t.VideoID, t.Language, len(t.Segments))
}
