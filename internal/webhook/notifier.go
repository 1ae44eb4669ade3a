package webhook

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"currency-lens/internal/storage"
)

// Notifier POSTs completed analyses to a configured webhook URL. Delivery
// failures are logged, never propagated.
type Notifier struct {
	httpClient *resty.Client
	url        string
}

// NewNotifier creates a notifier targeting the given URL.
func NewNotifier(url string) *Notifier {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json")

	return &Notifier{httpClient: client, url: url}
}

// NotifyAnalysis delivers a summary of the analysis record.
func (n *Notifier) NotifyAnalysis(ctx context.Context, rec *storage.AnalysisRecord) {
	payload := map[string]any{
		"analysis_id":       rec.ID,
		"user_id":           rec.UserID,
		"timestamp":         rec.CreatedAt,
		"combined_analysis": rec.Combined,
	}

	resp, err := n.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		Post(n.url)

	if err != nil {
		log.Warn().Err(err).Str("analysisId", rec.ID).Msg("webhook delivery failed")
		return
	}
	if resp.IsError() {
		log.Warn().Int("status", resp.StatusCode()).Str("analysisId", rec.ID).Msg("webhook delivery rejected")
		return
	}

	log.Info().Str("analysisId", rec.ID).Msg("webhook delivered")
}
