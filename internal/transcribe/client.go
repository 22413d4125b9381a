package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"podcast-ai-backend/internal/models"
)

// ErrInvalidURL marks a syntactically invalid audio URL; never retried.
var ErrInvalidURL = errors.New("audio url is not a valid absolute url")

// ErrTimeout marks a single HTTP call exceeding the request timeout.
var ErrTimeout = errors.New("transcription request timed out")

// ErrRateLimited marks 429 retry exhaustion during polling.
var ErrRateLimited = errors.New("transcription provider rate limit exceeded")

// ErrPollExhausted marks a job that never reached a terminal status
// within the allowed polling attempts.
var ErrPollExhausted = errors.New("transcription polling attempts exhausted")

const (
	defaultRequestTimeout   = 30 * time.Second
	defaultPollInitial      = 2 * time.Second
	defaultPollFactor       = 1.5
	defaultPollMax          = 30 * time.Second
	defaultPollAttempts     = 40
	defaultRateLimitRetries = 5
	defaultRateLimitBase    = 1 * time.Second
)

// speechModels is the provider model preference list: primary first,
// legacy fallback second.
var speechModels = []string{"universal-2", "universal"}

// Client wraps the external speech-to-text API: submission, capped
// exponential-backoff polling and normalization into the canonical
// transcript shape.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	pollInitial      time.Duration
	pollFactor       float64
	pollMax          time.Duration
	pollAttempts     int
	rateLimitRetries int
	rateLimitBase    time.Duration
}

// Option overrides a polling or retry knob, mostly for tests.
type Option func(*Client)

func WithPolling(initial, max time.Duration, factor float64, attempts int) Option {
	return func(c *Client) {
		c.pollInitial = initial
		c.pollMax = max
		c.pollFactor = factor
		c.pollAttempts = attempts
	}
}

func WithRateLimitRetry(base time.Duration, retries int) Option {
	return func(c *Client) {
		c.rateLimitBase = base
		c.rateLimitRetries = retries
	}
}

func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultRequestTimeout,
		},
		pollInitial:      defaultPollInitial,
		pollFactor:       defaultPollFactor,
		pollMax:          defaultPollMax,
		pollAttempts:     defaultPollAttempts,
		rateLimitRetries: defaultRateLimitRetries,
		rateLimitBase:    defaultRateLimitBase,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type startRequest struct {
	AudioURL      string   `json:"audio_url"`
	SpeechModels  []string `json:"speech_models"`
	SpeakerLabels bool     `json:"speaker_labels"`
	AutoChapters  bool     `json:"auto_chapters"`
}

type startResponse struct {
	ID string `json:"id"`
}

type transcriptResponse struct {
	ID                 string              `json:"id"`
	Status             string              `json:"status"` // queued | processing | completed | error
	Text               string              `json:"text"`
	Words              []providerWord      `json:"words"`
	Segments           []providerSegment   `json:"segments"`
	Utterances         []providerUtterance `json:"utterances"`
	AutoChaptersResult []providerChapter   `json:"auto_chapters_result"`
	Error              string              `json:"error"`
}

type providerWord struct {
	Text  string `json:"text"`
	Start int64  `json:"start"` // ms
	End   int64  `json:"end"`   // ms
}

type providerSegment struct {
	Start int64          `json:"start"`
	End   int64          `json:"end"`
	Text  string         `json:"text"`
	Words []providerWord `json:"words,omitempty"`
}

type providerUtterance struct {
	Speaker    string   `json:"speaker"`
	Start      *int64   `json:"start"`
	End        *int64   `json:"end"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
}

type providerChapter struct {
	Start    *int64 `json:"start"`
	End      *int64 `json:"end"`
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	Gist     string `json:"gist"`
}

// Transcribe converts an audio URL into the canonical transcript,
// hiding the provider's async job model behind one blocking call.
func (c *Client) Transcribe(ctx context.Context, audioURL string) (*models.Transcript, error) {
	parsed, err := url.Parse(audioURL)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, audioURL)
	}

	id, err := c.submit(ctx, audioURL)
	if err != nil {
		return nil, err
	}

	resp, err := c.awaitCompletion(ctx, id)
	if err != nil {
		return nil, err
	}
	return normalizeTranscript(resp), nil
}

func (c *Client) submit(ctx context.Context, audioURL string) (string, error) {
	reqBody := startRequest{
		AudioURL:      audioURL,
		SpeechModels:  speechModels,
		SpeakerLabels: true,
		AutoChapters:  true,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/transcript", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", wrapTransportErr("failed to start transcription", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to start transcription: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result startResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}
	if result.ID == "" {
		return "", fmt.Errorf("transcript id is empty in response, body: %s", string(body))
	}
	return result.ID, nil
}

// awaitCompletion polls on a capped exponential backoff. 429 responses
// use their own retry counter and do not count as poll attempts.
func (c *Client) awaitCompletion(ctx context.Context, id string) (*transcriptResponse, error) {
	interval := c.pollInitial
	rateLimitHits := 0

	for attempt := 0; attempt < c.pollAttempts; attempt++ {
		resp, status, body, err := c.getTranscript(ctx, id)
		if err != nil {
			return nil, err
		}

		switch {
		case status == http.StatusTooManyRequests:
			rateLimitHits++
			if rateLimitHits > c.rateLimitRetries {
				return nil, fmt.Errorf("%w: transcript %s after %d retries, body: %s",
					ErrRateLimited, id, rateLimitHits-1, body)
			}
			if err := sleepCtx(ctx, c.rateLimitBase<<(rateLimitHits-1)); err != nil {
				return nil, err
			}
			attempt-- // rate-limit retries do not consume poll attempts
			continue

		case status != http.StatusOK:
			// Transient provider hiccup; keep polling.

		case resp.Status == "completed":
			return resp, nil

		case resp.Status == "error":
			return nil, fmt.Errorf("transcription failed for transcript %s: %s", id, resp.Error)
		}

		if err := sleepCtx(ctx, interval); err != nil {
			return nil, err
		}
		interval = time.Duration(float64(interval) * c.pollFactor)
		if interval > c.pollMax {
			interval = c.pollMax
		}
	}

	return nil, fmt.Errorf("%w: transcript %s after %d attempts", ErrPollExhausted, id, c.pollAttempts)
}

func (c *Client) getTranscript(ctx context.Context, id string) (*transcriptResponse, int, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/transcript/"+id, nil)
	if err != nil {
		return nil, 0, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, "", wrapTransportErr("failed to poll transcription", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, string(body), nil
	}

	var result transcriptResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, 0, "", fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}
	return &result, resp.StatusCode, string(body), nil
}

// wrapTransportErr tags timeouts so callers can tell them apart from
// other transport failures.
func wrapTransportErr(msg string, err error) error {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%s: %w: %v", msg, ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", msg, ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// sleepCtx suspends without busy-polling, honoring cancellation.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
