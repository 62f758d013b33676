package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/hupe1980/collabmesh/core"
	"github.com/hupe1980/collabmesh/logging"
)

// Kind selects what a composer is asked to write.
type Kind string

const (
	// KindText is a sentence appended to a document block.
	KindText Kind = "text"
	// KindComment is a short review comment.
	KindComment Kind = "comment"
)

// DefaultMaxLength bounds composed text in runes.
const DefaultMaxLength = 120

// ErrEmptyCompletion is returned when a provider answers with no usable text.
var ErrEmptyCompletion = errors.New("empty completion")

// Request is the context handed to a Composer.
type Request struct {
	Kind Kind
	// User is the agent that will type or post the result.
	User core.User
	// Block is the block being edited or commented on. It is zero for
	// whiteboard comments.
	Block core.DocBlock
}

// Info contains metadata about a composer implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "canned", "openai", "anthropic"
}

// Composer produces short pieces of text for agent actions.
type Composer interface {
	Compose(ctx context.Context, req Request) (string, error)

	// Info returns information about the composer implementation.
	Info() Info
}

// Prompt renders the system and user prompt for provider-backed composers.
func Prompt(req Request) (system, user string) {
	system = fmt.Sprintf(
		"You are %s, a participant in a shared document editing session. Reply with a single short sentence of at most %d characters and nothing else.",
		req.User.Name, DefaultMaxLength,
	)

	var b strings.Builder
	switch req.Kind {
	case KindComment:
		b.WriteString("Write a brief review comment")
	default:
		b.WriteString("Write one sentence to append")
	}
	if req.Block.ID != "" {
		fmt.Fprintf(&b, " for this %s block:\n\n%s", req.Block.Type, req.Block.Content)
	} else {
		b.WriteString(" about a whiteboard sketch.")
	}
	return system, b.String()
}

// Clean normalizes provider output to a single trimmed line of at most max
// runes. Surrounding quotes are removed.
func Clean(s string, max int) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'`")
	s = strings.TrimFunc(s, unicode.IsSpace)
	if max > 0 {
		if r := []rune(s); len(r) > max {
			s = strings.TrimSpace(string(r[:max]))
		}
	}
	return s
}

// Fallback tries a primary composer and falls back to a secondary one when the
// primary fails or returns nothing.
type Fallback struct {
	primary   Composer
	secondary Composer
	logger    logging.Logger
}

// NewFallback wraps primary with secondary.
func NewFallback(primary, secondary Composer, logger logging.Logger) *Fallback {
	return &Fallback{primary: primary, secondary: secondary, logger: logging.OrNoOp(logger)}
}

// Compose implements Composer.
func (f *Fallback) Compose(ctx context.Context, req Request) (string, error) {
	text, err := f.primary.Compose(ctx, req)
	if err == nil && text != "" {
		return text, nil
	}
	if err == nil {
		err = ErrEmptyCompletion
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	f.logger.Warn("Composer failed, using fallback",
		"provider", f.primary.Info().Provider,
		"kind", string(req.Kind),
		"error", err,
	)
	return f.secondary.Compose(ctx, req)
}

// Info reports the primary composer.
func (f *Fallback) Info() Info { return f.primary.Info() }

// WithTimeout bounds every Compose call of c by d. A non-positive d returns c.
func WithTimeout(c Composer, d time.Duration) Composer {
	if d <= 0 {
		return c
	}
	return &timeoutComposer{Composer: c, timeout: d}
}

type timeoutComposer struct {
	Composer
	timeout time.Duration
}

func (t *timeoutComposer) Compose(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Composer.Compose(ctx, req)
}
