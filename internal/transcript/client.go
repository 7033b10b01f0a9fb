// Package transcript fetches the spoken text of a captured video from the
// transcript service and flattens whatever shape it returns into one string.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"thirdcoast.systems/haul/pkg/utils/language"
)

const (
	defaultTimeout = 60 * time.Second
	maxBodyBytes   = 8 << 20
)

// ErrNoTranscript is returned when the service has no captions for the video.
var ErrNoTranscript = errors.New("no transcript available")

// StatusError is a non-2xx answer from the transcript service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transcript: unexpected status %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	baseURL  string
	apiKey   string
	fallback language.Tag
	http     *http.Client
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithDefaultLanguage sets the hint sent when a request carries none.
func WithDefaultLanguage(tag language.Tag) Option {
	return func(c *Client) { c.fallback = tag }
}

func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type Request struct {
	VideoURL string
	Language language.Tag
}

// Fetch returns the whitespace-normalized transcript for req.VideoURL.
func (c *Client) Fetch(ctx context.Context, req Request) (string, error) {
	videoURL := strings.TrimSpace(req.VideoURL)
	if videoURL == "" {
		return "", fmt.Errorf("transcript: video url is required")
	}

	u, err := url.Parse(c.baseURL + "/transcript")
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("url", videoURL)
	if lang := req.Language.Or(c.fallback).Base(); lang != "" {
		q.Set("lang", lang)
	}
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Accept", "application/json, text/vtt;q=0.9, text/plain;q=0.8")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("transcript: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNoTranscript
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("transcript: read body: %w", err)
	}

	text, err := Normalize(resp.Header.Get("Content-Type"), body)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", ErrNoTranscript
	}
	return text, nil
}
