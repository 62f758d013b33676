// Package model defines the provider-agnostic Composer abstraction that
// simulated agents use to produce the text they type and the comments they
// post.
//
// The package ships a Canned composer that draws from fixed snippet lists and
// needs no network. Providers (see the anthropic and openai subpackages)
// implement Composer against hosted language models; wrap them with
// NewFallback so an unreachable provider degrades to canned text instead of
// stalling an agent.
package model
