package reference

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveExtractsCharacterAndLocationTokens(t *testing.T) {
	prompt := "A figure (nv1.png) stands in a dim alley (loc2.png), rain falling."
	res := Resolve(prompt, nil, "")
	assert.Equal(t, []string{"nv1"}, res.CharactersUsed)
	assert.Equal(t, "loc2", res.LocationUsed)
	assert.Equal(t, []string{"nv1.png", "loc2.png"}, res.ReferenceFiles)
}

func TestResolveNormalizesCaseAndUnderscore(t *testing.T) {
	prompt := "Scene with (NV_001.png) at dusk."
	res := Resolve(prompt, nil, "")
	assert.Equal(t, []string{"nv001"}, res.CharactersUsed)
}

func TestResolveDedupesAndPreservesFirstOccurrenceOrder(t *testing.T) {
	prompt := "(nv2.png) meets (nv1.png) again, then (nv2.png) leaves."
	res := Resolve(prompt, nil, "")
	assert.Equal(t, []string{"nv2", "nv1"}, res.CharactersUsed)
}

func TestResolveFallsBackWhenPromptHasNoTokens(t *testing.T) {
	prompt := "An empty room, no figures present."
	res := Resolve(prompt, []string{"nv3"}, "loc5")
	assert.Equal(t, []string{"nv3"}, res.CharactersUsed)
	assert.Equal(t, "loc5", res.LocationUsed)
	assert.Equal(t, []string{"nv3.png", "loc5.png"}, res.ReferenceFiles)
}

func TestResolveEmptyPromptAndEmptyFallbackYieldsNothing(t *testing.T) {
	res := Resolve("", nil, "")
	assert.Empty(t, res.CharactersUsed)
	assert.Empty(t, res.LocationUsed)
	assert.Empty(t, res.ReferenceFiles)
}

func TestTokenForRendersCanonicalToken(t *testing.T) {
	assert.Equal(t, "(nv1.png)", TokenFor("NV1"))
	assert.Equal(t, "(loc2.png)", TokenFor("loc_2"))
}
