// Package reference extracts character and location tokens from
// LLM-generated prompt text and reconciles them against the director
// plan's own metadata, per spec.md §4.7 step 3. The extracted IDs are
// authoritative; the director plan is only a fallback.
package reference

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	characterTokenRe = regexp.MustCompile(`\(([nN][vV]_?\d+)\.png\)`)
	locationTokenRe  = regexp.MustCompile(`\(([lL][oO][cC]_?\d+)\.png\)`)
)

// Resolution is the reconciled reference metadata for one scene's prompt.
type Resolution struct {
	CharactersUsed []string
	LocationUsed   string
	ReferenceFiles []string
}

// Resolve extracts character/location tokens from prompt and falls back
// to the director plan's own values when the prompt carries none.
func Resolve(prompt string, fallbackCharacters []string, fallbackLocation string) Resolution {
	characters := extractCharacters(prompt)
	if len(characters) == 0 {
		characters = normalizeAll(fallbackCharacters)
	}

	location := extractLocation(prompt)
	if location == "" {
		location = normalize(fallbackLocation)
	}

	refs := make([]string, 0, len(characters)+1)
	seen := make(map[string]bool)
	for _, c := range characters {
		if !seen[c] {
			seen[c] = true
			refs = append(refs, c+".png")
		}
	}
	if location != "" && !seen[location] {
		refs = append(refs, location+".png")
	}

	return Resolution{
		CharactersUsed: characters,
		LocationUsed:   location,
		ReferenceFiles: refs,
	}
}

// extractCharacters returns unique character IDs in first-occurrence
// order, normalized to lowercase canonical form (e.g. "NV_001" → "nv001").
func extractCharacters(prompt string) []string {
	matches := characterTokenRe.FindAllStringSubmatch(prompt, -1)
	seen := make(map[string]bool)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		id := normalize(m[1])
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// extractLocation returns the first matched location ID, normalized, or
// "" if none is present.
func extractLocation(prompt string) string {
	m := locationTokenRe.FindStringSubmatch(prompt)
	if m == nil {
		return ""
	}
	return normalize(m[1])
}

// normalize canonicalizes an extracted or stored ID: lowercase, with any
// underscore separator removed (nv_001 and NV001 both become nv001).
func normalize(id string) string {
	if id == "" {
		return ""
	}
	id = strings.ToLower(id)
	id = strings.ReplaceAll(id, "_", "")
	return id
}

func normalizeAll(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if n := normalize(id); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// TokenFor renders the canonical "(id.png)" token for embedding an ID in
// fallback-generated prompt text.
func TokenFor(id string) string {
	return fmt.Sprintf("(%s.png)", normalize(id))
}
