// Package extraction asks a language model which products a transcript
// mentions and parses the answer into category groups.
package extraction

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultModel     = "claude-sonnet-4-5"
	defaultMaxTokens = 2048
	requestTimeout   = 90 * time.Second
	// long transcripts are cut before prompting
	maxTranscriptRunes = 24000
)

type KnownCategory struct {
	Name        string
	Description string
}

type Product struct {
	Name             string
	Description      string
	Icon             *string
	MentionedContext string
}

type Group struct {
	Category    string
	Description string
	// Known is set when Category matched one of the caller's categories.
	Known    bool
	Products []Product
}

type Client struct {
	api       anthropic.Client
	model     string
	maxTokens int64
}

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int64
	HTTPClient *http.Client
}

func NewClient(cfg Config) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(2),
		option.WithRequestTimeout(requestTimeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	c := &Client{
		api:       anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.maxTokens <= 0 {
		c.maxTokens = defaultMaxTokens
	}
	return c
}

// Extract returns the products mentioned in transcript. A reply that cannot
// be parsed yields no groups and no error; transport and API failures are
// returned.
func (c *Client) Extract(ctx context.Context, transcript string, known []KnownCategory) ([]Group, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, nil
	}

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(0),
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(transcript, known))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("extraction request: %w", err)
	}

	var out strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	return ParseProducts(out.String(), known), nil
}
