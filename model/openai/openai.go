// Package openai provides a model.Composer backed by the OpenAI Chat
// Completions API.
package openai

import (
	"context"
	"fmt"

	"github.com/hupe1980/collabmesh/model"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Options configure the OpenAI composer.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Composer wraps the OpenAI Chat Completions API behind model.Composer.
type Composer struct {
	client *openai.Client
	opts   Options
}

// NewComposer creates a new OpenAI composer using the official client. The
// request options are passed to the client, e.g. option.WithAPIKey.
func NewComposer(clientOpts []option.RequestOption, optFns ...func(o *Options)) *Composer {
	client := openai.NewClient(clientOpts...)
	return NewComposerFromClient(&client, optFns...)
}

// NewComposerFromClient creates a new OpenAI composer from an existing client.
func NewComposerFromClient(client *openai.Client, optFns ...func(o *Options)) *Composer {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.9,
		MaxCompletionTokens: 128,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Composer{client: client, opts: opts}
}

// Compose implements model.Composer.
func (c *Composer) Compose(ctx context.Context, req model.Request) (string, error) {
	system, user := model.Prompt(req)

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Model:               c.opts.Model,
		Temperature:         openai.Float(c.opts.Temperature),
		MaxCompletionTokens: openai.Int(c.opts.MaxCompletionTokens),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned: %w", model.ErrEmptyCompletion)
	}

	text := model.Clean(resp.Choices[0].Message.Content, model.DefaultMaxLength)
	if text == "" {
		return "", model.ErrEmptyCompletion
	}
	return text, nil
}

// Info returns metadata describing this OpenAI composer.
func (c *Composer) Info() model.Info {
	return model.Info{
		Name:     c.opts.Model,
		Provider: "openai",
	}
}
