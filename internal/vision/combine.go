package vision

// DiscrepancyCurrencyCount is recorded when both providers detected
// currencies but disagree on how many.
const DiscrepancyCurrencyCount = "Different number of currencies detected"

// CombinedAnalysis is the comparison record built from both provider
// results. Consensus and Discrepancies are always initialized so they
// marshal as {} and [] rather than null.
type CombinedAnalysis struct {
	Comparison    string         `json:"comparison"`
	OpenAISummary ProviderResult `json:"openai_summary"`
	GeminiSummary ProviderResult `json:"gemini_summary"`
	Consensus     map[string]any `json:"consensus"`
	Discrepancies []string       `json:"discrepancies"`
}

// Combine merges two provider results into one comparison record. The
// heuristic is deliberately shallow: only detection-list lengths are
// compared, never individual currencies or denominations. RawFallback and
// Failed results contribute empty lists but are still carried verbatim.
func Combine(openaiRes, geminiRes ProviderResult) CombinedAnalysis {
	combined := CombinedAnalysis{
		Comparison:    "dual_ai_analysis",
		OpenAISummary: openaiRes,
		GeminiSummary: geminiRes,
		Consensus:     map[string]any{},
		Discrepancies: []string{},
	}

	openaiCurrencies := openaiRes.Detections()
	geminiCurrencies := geminiRes.Detections()

	if len(openaiCurrencies) > 0 && len(geminiCurrencies) > 0 {
		if len(openaiCurrencies) == len(geminiCurrencies) {
			combined.Consensus["currency_count_match"] = true
		} else {
			combined.Discrepancies = append(combined.Discrepancies, DiscrepancyCurrencyCount)
		}
	}

	return combined
}
