package scene

import (
	"fmt"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/scenepipe/scenepipe/pkg/reference"
)

// maxFallbackExcerpt bounds the SRT-text excerpt embedded in a fallback
// prompt (spec.md §4.7 step 2: "first 120 characters").
const maxFallbackExcerpt = 120

// fallbackPrompt builds a deterministic, unique prompt for a scene whose
// LLM-produced prompt was empty or judged duplicative. Unique because it
// is parameterized by scene_id, which is project-unique and stable. The
// director plan's own characters/location are embedded as literal
// (id.png) tokens so reference.Resolve extracts the same references from
// fallback text that it would have extracted from a real LLM prompt.
func fallbackPrompt(sceneID, segmentName, srtText string, characters []string, location string) string {
	excerpt := srtText
	if len(excerpt) > maxFallbackExcerpt {
		excerpt = excerpt[:maxFallbackExcerpt]
	}

	var tokens strings.Builder
	for _, c := range characters {
		if c == "" {
			continue
		}
		tokens.WriteString(" ")
		tokens.WriteString(reference.TokenFor(c))
	}
	if location != "" {
		tokens.WriteString(" ")
		tokens.WriteString(reference.TokenFor(location))
	}

	return fmt.Sprintf("Scene %s in %q:%s %s", sceneID, segmentName, tokens.String(), excerpt)
}

// duplicateRate reports the fraction of prompts in a batch that are
// exact or near-exact matches of some other prompt in the same batch
// (spec.md §4.7 step 2). An empty prompt never counts as a match of
// another empty prompt — emptiness is handled by the per-scene check,
// not the batch-wide rate.
func duplicateRate(prompts []string, similarity float64) float64 {
	n := len(prompts)
	if n == 0 {
		return 0
	}

	duplicate := make([]bool, n)
	for i := 0; i < n; i++ {
		if prompts[i] == "" {
			continue
		}
		for j := i + 1; j < n; j++ {
			if prompts[j] == "" || duplicate[i] && duplicate[j] {
				continue
			}
			if isNearDuplicate(prompts[i], prompts[j], similarity) {
				duplicate[i] = true
				duplicate[j] = true
			}
		}
	}

	count := 0
	for _, d := range duplicate {
		if d {
			count++
		}
	}
	return float64(count) / float64(n)
}

// isNearDuplicate reports whether a and b are exact or near-exact
// matches, measured by normalized Levenshtein similarity.
func isNearDuplicate(a, b string, similarity float64) bool {
	if a == b {
		return true
	}
	a = strings.TrimSpace(strings.ToLower(a))
	b = strings.TrimSpace(strings.ToLower(b))
	if a == b {
		return true
	}
	return levenshtein.Match(a, b, nil) >= similarity
}
