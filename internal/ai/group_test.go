package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	name  string
	text  string
	err   error
	calls int
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return p.text, nil
}

func TestGroupGenerator_FailsOverToNextProvider(t *testing.T) {
	primary := &scriptedProvider{name: "a", err: &ProviderError{Provider: "a", Kind: FailureTimeout}}
	secondary := &scriptedProvider{name: "b", text: "answer from b"}
	group := NewGroupGenerator([]GeneratorEntry{
		{Name: "a", Model: "m1", Provider: primary},
		{Name: "b", Model: "m2", Provider: secondary},
	})

	text, provider, err := group.Generate(context.Background(), "question")
	require.NoError(t, err)
	require.Equal(t, "answer from b", text)
	require.Equal(t, "b", provider)
	require.Equal(t, 1, primary.calls)
	require.Equal(t, 1, secondary.calls)
}

func TestGroupGenerator_DoesNotFailOverOnSuccess(t *testing.T) {
	primary := &scriptedProvider{name: "a", text: "I don't have enough information in the provided context to answer this question."}
	secondary := &scriptedProvider{name: "b", text: "should not run"}
	group := NewGroupGenerator([]GeneratorEntry{
		{Name: "a", Provider: primary},
		{Name: "b", Provider: secondary},
	})

	text, provider, err := group.Generate(context.Background(), "question")
	require.NoError(t, err)
	require.Equal(t, "a", provider)
	require.Contains(t, text, "don't have enough information")
	require.Zero(t, secondary.calls)
}

func TestGroupGenerator_ExhaustionReturnsLastError(t *testing.T) {
	authErr := &ProviderError{Provider: "a", Kind: FailureAuth, Status: 401}
	rateErr := &ProviderError{Provider: "b", Kind: FailureRateLimit, Status: 429}
	group := NewGroupGenerator([]GeneratorEntry{
		{Name: "a", Provider: &scriptedProvider{name: "a", err: authErr}},
		{Name: "b", Provider: &scriptedProvider{name: "b", err: rateErr}},
	})

	_, _, err := group.Generate(context.Background(), "question")
	require.ErrorIs(t, err, rateErr)
}

func TestGroupGenerator_SkipsNilProviders(t *testing.T) {
	only := &scriptedProvider{name: "b", text: "ok"}
	group := NewGroupGenerator([]GeneratorEntry{
		{Name: "a"},
		{Name: "b", Provider: only},
	})
	text, provider, err := group.Generate(context.Background(), "q")
	require.NoError(t, err)
	require.Equal(t, "ok", text)
	require.Equal(t, "b", provider)
}

func TestProviderError_Retryable(t *testing.T) {
	require.True(t, (&ProviderError{Kind: FailureTimeout}).Retryable())
	require.True(t, (&ProviderError{Kind: FailureRateLimit}).Retryable())
	require.True(t, (&ProviderError{Kind: FailureServer}).Retryable())
	require.True(t, (&ProviderError{Kind: FailureNetwork}).Retryable())
	require.False(t, (&ProviderError{Kind: FailureAuth}).Retryable())
	require.False(t, (&ProviderError{Kind: FailureBadInput}).Retryable())
}

func TestClassifyStatus(t *testing.T) {
	require.Equal(t, FailureAuth, classifyStatus(401))
	require.Equal(t, FailureAuth, classifyStatus(403))
	require.Equal(t, FailureRateLimit, classifyStatus(429))
	require.Equal(t, FailureTimeout, classifyStatus(504))
	require.Equal(t, FailureServer, classifyStatus(500))
	require.Equal(t, FailureBadInput, classifyStatus(400))
}
