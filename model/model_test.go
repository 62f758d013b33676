package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hupe1980/collabmesh/core"
	"github.com/hupe1980/collabmesh/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubComposer struct {
	text  string
	err   error
	calls int
}

func (s *stubComposer) Compose(context.Context, Request) (string, error) {
	s.calls++
	return s.text, s.err
}

func (s *stubComposer) Info() Info { return Info{Name: "stub", Provider: "stub"} }

func TestCanned_PicksByKind(t *testing.T) {
	c := NewCanned(func(o *CannedOptions) {
		o.Rand = testutil.NewScriptedRand().WithInts(2, 6)
	})

	text, err := c.Compose(context.Background(), Request{Kind: KindText})
	require.NoError(t, err)
	assert.Equal(t, DefaultTexts[2], text)

	comment, err := c.Compose(context.Background(), Request{Kind: KindComment})
	require.NoError(t, err)
	assert.Equal(t, DefaultComments[6], comment)
	assert.Equal(t, "canned", c.Info().Provider)
}

func TestCanned_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewCanned().Compose(ctx, Request{Kind: KindText})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"trims", "  hello  ", 0, "hello"},
		{"first line", "one\ntwo", 0, "one"},
		{"quotes", "\"quoted\"", 0, "quoted"},
		{"truncates", "abcdefgh", 4, "abcd"},
		{"runes", "äöüß", 2, "äö"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in, tt.max))
		})
	}
}

func TestPrompt(t *testing.T) {
	sys, user := Prompt(Request{
		Kind:  KindComment,
		User:  core.User{Name: "Aisha"},
		Block: core.DocBlock{ID: "block-1", Type: core.BlockHeading, Content: "Welcome"},
	})
	assert.Contains(t, sys, "Aisha")
	assert.Contains(t, user, "review comment")
	assert.Contains(t, user, "Welcome")

	_, user = Prompt(Request{Kind: KindComment})
	assert.Contains(t, user, "whiteboard")
}

func TestFallback(t *testing.T) {
	ctx := context.Background()
	secondary := &stubComposer{text: "canned"}

	t.Run("primary wins", func(t *testing.T) {
		f := NewFallback(&stubComposer{text: "llm"}, secondary, nil)
		got, err := f.Compose(ctx, Request{})
		require.NoError(t, err)
		assert.Equal(t, "llm", got)
	})

	t.Run("error falls back", func(t *testing.T) {
		f := NewFallback(&stubComposer{err: errors.New("down")}, secondary, nil)
		got, err := f.Compose(ctx, Request{})
		require.NoError(t, err)
		assert.Equal(t, "canned", got)
	})

	t.Run("empty falls back", func(t *testing.T) {
		f := NewFallback(&stubComposer{}, secondary, nil)
		got, err := f.Compose(ctx, Request{})
		require.NoError(t, err)
		assert.Equal(t, "canned", got)
		assert.Equal(t, "stub", f.Info().Provider)
	})

	t.Run("cancelled context does not fall back", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		sec := &stubComposer{text: "canned"}
		f := NewFallback(&stubComposer{err: context.Canceled}, sec, nil)
		_, err := f.Compose(cctx, Request{})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, sec.calls)
	})
}

type deadlineComposer struct{ deadline time.Time }

func (d *deadlineComposer) Compose(ctx context.Context, _ Request) (string, error) {
	d.deadline, _ = ctx.Deadline()
	return "ok", nil
}

func (d *deadlineComposer) Info() Info { return Info{Provider: "deadline"} }

func TestWithTimeout(t *testing.T) {
	inner := &deadlineComposer{}
	assert.Same(t, Composer(inner), WithTimeout(inner, 0))

	c := WithTimeout(inner, time.Minute)
	got, err := c.Compose(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.WithinDuration(t, time.Now().Add(time.Minute), inner.deadline, 5*time.Second)
	assert.Equal(t, "deadline", c.Info().Provider)
}
