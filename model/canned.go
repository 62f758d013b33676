package model

import (
	"context"

	"github.com/hupe1980/collabmesh/core"
)

// DefaultTexts are appended to blocks by agents.
var DefaultTexts = []string{
	"Great idea!",
	"What do you think about this approach?",
	"Let me add some details here.",
	"I'll update this section.",
	"This needs more work.",
	"Perfect, let's continue.",
	"Adding my thoughts...",
	"Consider this alternative.",
}

// DefaultComments are posted by agents.
var DefaultComments = []string{
	"Nice work here!",
	"Can we discuss this?",
	"I have a question about this.",
	"Love this idea!",
	"Should we revise this?",
	"Let's circle back on this.",
	"Looks good to me.",
	"Can you clarify this point?",
}

// CannedOptions configures a Canned composer.
type CannedOptions struct {
	Texts    []string
	Comments []string
	Rand     core.Rand
}

// Canned picks uniformly from fixed snippet lists.
type Canned struct {
	texts    []string
	comments []string
	rand     core.Rand
}

// NewCanned creates a Canned composer.
func NewCanned(optFns ...func(o *CannedOptions)) *Canned {
	opts := CannedOptions{
		Texts:    DefaultTexts,
		Comments: DefaultComments,
		Rand:     core.DefaultRand(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if len(opts.Texts) == 0 {
		opts.Texts = DefaultTexts
	}
	if len(opts.Comments) == 0 {
		opts.Comments = DefaultComments
	}

	return &Canned{texts: opts.Texts, comments: opts.Comments, rand: opts.Rand}
}

// Compose implements Composer. It never fails unless ctx is done.
func (c *Canned) Compose(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if req.Kind == KindComment {
		return core.Pick(c.rand, c.comments), nil
	}
	return core.Pick(c.rand, c.texts), nil
}

// Info implements Composer.
func (c *Canned) Info() Info { return Info{Name: "snippets", Provider: "canned"} }
