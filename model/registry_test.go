package model_test

import (
	"encoding/json"
	"testing"

	"github.com/c360studio/longform/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Resolve(t *testing.T) {
	registry := model.NewRegistry(
		map[model.Capability]*model.CapabilityConfig{
			model.CapabilityDrafting: {
				Preferred: []string{"primary", "secondary"},
				Fallback:  []string{"local"},
			},
		},
		map[string]*model.EndpointConfig{
			"primary": {Provider: "openai", Model: "gpt-test"},
		},
	)
	registry.SetDefault("local")

	assert.Equal(t, "primary", registry.Resolve(model.CapabilityDrafting))
	assert.Equal(t, "local", registry.Resolve(model.CapabilityFast),
		"unknown capability falls back to default model")
}

func TestRegistry_GetFallbackChain(t *testing.T) {
	registry := model.NewRegistry(
		map[model.Capability]*model.CapabilityConfig{
			model.CapabilityReviewing: {
				Preferred: []string{"a", "b"},
				Fallback:  []string{"c"},
			},
		},
		nil,
	)

	chain := registry.GetFallbackChain(model.CapabilityReviewing)
	assert.Equal(t, []string{"a", "b", "c"}, chain)

	registry.SetDefault("fallback-only")
	chain = registry.GetFallbackChain(model.CapabilityPlanning)
	assert.Equal(t, []string{"fallback-only"}, chain)
}

func TestRegistry_Endpoints(t *testing.T) {
	registry := model.NewDefaultRegistry()

	ep := registry.GetEndpoint("claude-sonnet")
	require.NotNil(t, ep)
	assert.Equal(t, "anthropic", ep.Provider)

	assert.Nil(t, registry.GetEndpoint("no-such-model"))

	registry.SetEndpoint("custom", &model.EndpointConfig{
		Provider: "openai",
		URL:      "https://example.com/v1",
		Model:    "custom-model",
	})
	ep = registry.GetEndpoint("custom")
	require.NotNil(t, ep)
	assert.Equal(t, "custom-model", ep.Model)
}

func TestCapability_Parse(t *testing.T) {
	assert.Equal(t, model.CapabilityPlanning, model.ParseCapability("planning"))
	assert.Equal(t, model.Capability(""), model.ParseCapability("bogus"))
	assert.True(t, model.CapabilityDrafting.IsValid())
	assert.False(t, model.Capability("bogus").IsValid())
}

func TestCapabilityForStage(t *testing.T) {
	assert.Equal(t, model.CapabilityPlanning, model.CapabilityForStage("outline"))
	assert.Equal(t, model.CapabilityReviewing, model.CapabilityForStage("quality_review"))
	assert.Equal(t, model.CapabilityDrafting, model.CapabilityForStage("unknown-stage"))
}

func TestRegistry_JSONRoundTrip(t *testing.T) {
	registry := model.NewDefaultRegistry()

	data, err := json.Marshal(registry)
	require.NoError(t, err)

	var decoded model.Registry
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.ElementsMatch(t, registry.ListEndpoints(), decoded.ListEndpoints())
	assert.ElementsMatch(t, registry.ListCapabilities(), decoded.ListCapabilities())
}
