package vision

import (
	"context"
	"encoding/base64"

	"golang.org/x/sync/errgroup"
)

// Orchestrator fans one image out to both providers concurrently and waits
// for both calls to finish before returning, regardless of individual
// failures.
type Orchestrator struct {
	openai Analyzer
	gemini Analyzer
}

// NewOrchestrator creates an orchestrator over the two provider adapters.
func NewOrchestrator(openai, gemini Analyzer) *Orchestrator {
	return &Orchestrator{openai: openai, gemini: gemini}
}

// Analyze encodes the image exactly once, hands the same encoded string to
// both adapters, and joins on both results. Adapters never return errors,
// so one provider's failure can neither cancel nor mask the other's result.
func (o *Orchestrator) Analyze(ctx context.Context, imageData []byte, mimeType string) (openaiRes, geminiRes ProviderResult) {
	imageB64 := base64.StdEncoding.EncodeToString(imageData)

	var g errgroup.Group
	g.Go(func() error {
		openaiRes = o.openai.Analyze(ctx, imageB64, mimeType)
		return nil
	})
	g.Go(func() error {
		geminiRes = o.gemini.Analyze(ctx, imageB64, mimeType)
		return nil
	})
	_ = g.Wait()

	return openaiRes, geminiRes
}
