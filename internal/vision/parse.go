package vision

import (
	"encoding/json"
	"strings"
)

// ParseResponse interprets a provider's textual response. Valid JSON becomes
// the Structured variant; anything else is carried verbatim as RawFallback.
func ParseResponse(provider, text string) ProviderResult {
	var s StructuredResult
	if err := json.Unmarshal([]byte(stripCodeFences(text)), &s); err != nil {
		return RawFallback(provider, text)
	}
	if s.Provider == "" {
		s.Provider = provider
	}
	return Structured(provider, &s)
}

// stripCodeFences removes markdown code blocks some models wrap JSON in.
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
