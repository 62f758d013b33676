// Package anthropic provides a model.Composer backed by the Anthropic Claude
// Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/collabmesh/model"
)

// Options configures the Anthropic composer (temperature, model id, max
// tokens, API key, endpoint).
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	// BaseURL overrides the API endpoint.
	BaseURL string
}

// Composer wraps the Anthropic Messages API behind model.Composer.
type Composer struct {
	client *anthropic.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.9,
		MaxTokens:   128,
	}
}

// NewComposer creates a new Anthropic composer using the official client.
func NewComposer(optFns ...func(o *Options)) *Composer {
	opts := defaultOptions()

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := anthropic.NewClient(clientOpts...)

	return NewComposerFromClient(&client, func(o *Options) { *o = opts })
}

// NewComposerFromClient creates a new Anthropic composer from an existing client.
func NewComposerFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Composer {
	opts := defaultOptions()

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Composer{
		client: client,
		opts:   opts,
	}
}

// Compose implements model.Composer.
func (c *Composer) Compose(ctx context.Context, req model.Request) (string, error) {
	system, user := model.Prompt(req)

	params := anthropic.MessageNewParams{
		Model:       c.opts.Model,
		MaxTokens:   c.opts.MaxTokens,
		Temperature: anthropic.Float(c.opts.Temperature),
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.AsText().Text)
		}
	}

	text := model.Clean(b.String(), model.DefaultMaxLength)
	if text == "" {
		return "", model.ErrEmptyCompletion
	}
	return text, nil
}

// Info returns metadata describing this Anthropic composer.
func (c *Composer) Info() model.Info {
	return model.Info{
		Name:     string(c.opts.Model),
		Provider: "anthropic",
	}
}
