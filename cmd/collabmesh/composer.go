package main

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/hupe1980/collabmesh/config"
	"github.com/hupe1980/collabmesh/logging"
	"github.com/hupe1980/collabmesh/model"
	anthropicmodel "github.com/hupe1980/collabmesh/model/anthropic"
	openaimodel "github.com/hupe1980/collabmesh/model/openai"
	"github.com/openai/openai-go/option"
)

// newComposer builds the agent composer for cfg. A nil composer lets the
// session use canned snippets drawn from its own random source. LLM
// providers fall back to canned snippets on errors.
func newComposer(cfg config.ComposerConfig, logger logging.Logger) (model.Composer, error) {
	var primary model.Composer

	switch cfg.Provider {
	case "", config.ProviderCanned:
		return nil, nil
	case config.ProviderAnthropic:
		primary = anthropicmodel.NewComposer(func(o *anthropicmodel.Options) {
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
			if cfg.Model != "" {
				o.Model = anthropic.Model(cfg.Model)
			}
		})
	case config.ProviderOpenAI:
		var clientOpts []option.RequestOption
		if cfg.APIKey != "" {
			clientOpts = append(clientOpts, option.WithAPIKey(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
		}
		primary = openaimodel.NewComposer(clientOpts, func(o *openaimodel.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
		})
	default:
		return nil, fmt.Errorf("unknown composer provider %q", cfg.Provider)
	}

	return model.NewFallback(
		model.WithTimeout(primary, cfg.Timeout),
		model.NewCanned(),
		logging.ForComponent(logger, "composer"),
	), nil
}
