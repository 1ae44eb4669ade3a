package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"currency-lens/internal/storage"
	"currency-lens/internal/vision"
)

// ErrNotImage is returned when the uploaded file's declared type is not an
// image. The request is rejected before any provider call is made.
var ErrNotImage = errors.New("file must be an image")

// RecentAnalysesLimit is how many records the list operation returns.
const RecentAnalysesLimit = 10

// Notifier delivers a freshly persisted analysis record to an external
// receiver. Delivery is best-effort and must never fail the request.
type Notifier interface {
	NotifyAnalysis(ctx context.Context, rec *storage.AnalysisRecord)
}

// AnalysisService runs the dual-provider analysis and owns the record
// lifecycle around it.
type AnalysisService struct {
	orchestrator *vision.Orchestrator
	store        storage.Store
	notifier     Notifier // nil disables webhook delivery
}

// NewAnalysisService wires the orchestrator, record store and optional
// notifier together.
func NewAnalysisService(orchestrator *vision.Orchestrator, store storage.Store, notifier Notifier) *AnalysisService {
	return &AnalysisService{orchestrator: orchestrator, store: store, notifier: notifier}
}

// Analyze validates the upload, fans out to both providers, combines their
// results and persists the record. Provider failures are carried in the
// record as data; only validation and persistence failures return an error.
func (s *AnalysisService) Analyze(ctx context.Context, userID, filename, mimeType string, imageData []byte) (*storage.AnalysisRecord, error) {
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, ErrNotImage
	}

	openaiRes, geminiRes := s.orchestrator.Analyze(ctx, imageData, mimeType)
	combined := vision.Combine(openaiRes, geminiRes)

	rec := &storage.AnalysisRecord{
		ID:           uuid.NewString(),
		UserID:       userID,
		OpenAIResult: openaiRes,
		GeminiResult: geminiRes,
		Combined:     combined,
		Filename:     filename,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.store.InsertAnalysis(rec); err != nil {
		return nil, fmt.Errorf("failed to persist analysis: %w", err)
	}

	if s.notifier != nil {
		go s.notifier.NotifyAnalysis(context.WithoutCancel(ctx), rec)
	}

	return rec, nil
}

// GetAnalysis fetches one record, scoped to its owner.
// Returns nil, nil when absent or owned by a different user.
func (s *AnalysisService) GetAnalysis(id, userID string) (*storage.AnalysisRecord, error) {
	return s.store.GetAnalysis(id, userID)
}

// ListAnalyses returns the caller's most recent records, newest first.
func (s *AnalysisService) ListAnalyses(userID string) ([]storage.AnalysisRecord, error) {
	return s.store.ListAnalyses(userID, RecentAnalysesLimit)
}
