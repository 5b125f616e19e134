package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsanders/revgate/pkg/review"
)

func TestLoadDefaultCatalogIsValid(t *testing.T) {
	c, err := LoadDefault()
	require.NoError(t, err)
	require.NotEmpty(t, c.SupportedNames())
}

func TestGetResolvesByFullNameAndAlias(t *testing.T) {
	c, err := LoadDefault()
	require.NoError(t, err)

	byName, err := c.Get("gpt-4o")
	require.NoError(t, err)
	require.Equal(t, review.ProviderOpenAI, byName.ProviderName)

	byAlias, err := c.Get("gpt4o")
	require.NoError(t, err)
	require.Same(t, byName, byAlias)
}

func TestGetUnsupportedModel(t *testing.T) {
	c, err := LoadDefault()
	require.NoError(t, err)

	_, err = c.Get("no-such-model")
	require.Error(t, err)
	var unsupported *UnsupportedModelError
	require.ErrorAs(t, err, &unsupported)
}

func TestLoadRejectsMissingContextLimit(t *testing.T) {
	bad := []byte(`
models:
  - full_name: broken-model
    provider: openai
    pricing: {input: 1, output: 2}
`)
	_, err := Load(bad)
	require.Error(t, err)
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	bad := []byte(`
models:
  - full_name: broken-model
    provider: not-a-real-provider
    context_limit: 1000
    pricing: {input: 1, output: 2}
`)
	_, err := Load(bad)
	require.Error(t, err)
}

func TestLoadRejectsOpenRouterNativeModelWithoutOpenRouterName(t *testing.T) {
	bad := []byte(`
models:
  - full_name: router-only-model
    provider: openrouter
    context_limit: 1000
    pricing: {input: 1, output: 2}
`)
	_, err := Load(bad)
	require.Error(t, err)
}

func TestTypedAccessors(t *testing.T) {
	c, err := LoadDefault()
	require.NoError(t, err)

	limit, err := c.ContextLimit("gpt-4o")
	require.NoError(t, err)
	require.Equal(t, 128000, limit)

	provider, err := c.ProviderFor("claude-sonnet-4-5")
	require.NoError(t, err)
	require.Equal(t, review.ProviderAnthropic, provider)

	pricing, err := c.Pricing("gemini-2-5-flash")
	require.NoError(t, err)
	require.Greater(t, pricing.OutputPerMillion, pricing.InputPerMillion)
}
