package vision

import (
	"context"
	"encoding/json"
)

// Detection is a single currency identified by a provider.
type Detection struct {
	CurrencyType string `json:"currency_type"`
	Denomination string `json:"denomination"`
	Quantity     int    `json:"quantity"`
	Confidence   string `json:"confidence"` // high/medium/low
}

// StructuredResult is a provider response that parsed as JSON. Fields are
// carried as the provider returned them; no validation beyond parse success.
type StructuredResult struct {
	CurrenciesDetected []Detection `json:"currencies_detected"`
	TotalValue         string      `json:"total_value,omitempty"`
	Notes              string      `json:"notes,omitempty"`
	Provider           string      `json:"provider,omitempty"`
}

// ResultKind tags which ProviderResult variant is populated.
type ResultKind int

const (
	KindStructured ResultKind = iota
	KindRawFallback
	KindFailed
)

func (k ResultKind) String() string {
	switch k {
	case KindStructured:
		return "structured"
	case KindRawFallback:
		return "raw_fallback"
	case KindFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ProviderResult is the outcome of one provider call. Exactly one variant
// is populated per call; Provider is always set so downstream consumers can
// attribute the result even when the call failed.
type ProviderResult struct {
	Kind       ResultKind
	Provider   string
	Structured *StructuredResult // KindStructured
	RawText    string            // KindRawFallback
	ErrMessage string            // KindFailed
}

// Structured wraps a parsed provider response.
func Structured(provider string, s *StructuredResult) ProviderResult {
	return ProviderResult{Kind: KindStructured, Provider: provider, Structured: s}
}

// RawFallback carries a response that was not valid JSON, verbatim.
func RawFallback(provider, text string) ProviderResult {
	return ProviderResult{Kind: KindRawFallback, Provider: provider, RawText: text}
}

// Failed captures a provider call error as data.
func Failed(provider string, err error) ProviderResult {
	return ProviderResult{Kind: KindFailed, Provider: provider, ErrMessage: err.Error()}
}

// Detections returns the structured detection list, or nil for the
// RawFallback and Failed variants.
func (r ProviderResult) Detections() []Detection {
	if r.Kind != KindStructured || r.Structured == nil {
		return nil
	}
	return r.Structured.CurrenciesDetected
}

// MarshalJSON emits the wire shape of whichever variant is populated:
// the structured object as-is, {"raw_response": ..., "provider": ...} or
// {"error": ..., "provider": ...}.
func (r ProviderResult) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case KindRawFallback:
		return json.Marshal(map[string]string{
			"raw_response": r.RawText,
			"provider":     r.Provider,
		})
	case KindFailed:
		return json.Marshal(map[string]string{
			"error":    r.ErrMessage,
			"provider": r.Provider,
		})
	default:
		return json.Marshal(r.Structured)
	}
}

// UnmarshalJSON detects the variant from the wire shape: an "error" key
// means Failed, a "raw_response" key means RawFallback, anything else is
// parsed as a structured result.
func (r *ProviderResult) UnmarshalJSON(data []byte) error {
	var probe struct {
		Error       *string `json:"error"`
		RawResponse *string `json:"raw_response"`
		Provider    string  `json:"provider"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	switch {
	case probe.Error != nil:
		*r = ProviderResult{Kind: KindFailed, Provider: probe.Provider, ErrMessage: *probe.Error}
	case probe.RawResponse != nil:
		*r = ProviderResult{Kind: KindRawFallback, Provider: probe.Provider, RawText: *probe.RawResponse}
	default:
		var s StructuredResult
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = ProviderResult{Kind: KindStructured, Provider: probe.Provider, Structured: &s}
	}
	return nil
}

// Analyzer performs one vision call against one provider. Call failures are
// captured into the returned ProviderResult, never surfaced as errors, so a
// partially available provider set still yields a result per provider.
// Attribution travels in the result's Provider field.
type Analyzer interface {
	// Analyze sends a base64-encoded image to the provider and returns
	// exactly one populated ProviderResult variant.
	Analyze(ctx context.Context, imageB64, mimeType string) ProviderResult
}
