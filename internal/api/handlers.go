package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"currency-lens/internal/auth"
	"currency-lens/internal/service"
	"currency-lens/internal/storage"
)

// maxUploadSize caps in-memory multipart parsing at 10MB.
const maxUploadSize = 10 * 1024 * 1024

var (
	analyzeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "currency_analyze_duration_seconds",
		Help:    "Latency distribution of the analyze operation including both provider calls",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30},
	})

	providerResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "currency_provider_results_total",
		Help: "Provider call outcomes by provider and result variant",
	}, []string{"provider", "kind"})
)

// Handler bundles the HTTP endpoints with their collaborators.
type Handler struct {
	service  *service.AnalysisService
	store    storage.Store
	tokens   *auth.TokenIssuer
	notifier service.Notifier // nil disables the webhook endpoint's delivery
}

// NewHandler creates the HTTP handler set.
func NewHandler(svc *service.AnalysisService, store storage.Store, tokens *auth.TokenIssuer, notifier service.Notifier) *Handler {
	return &Handler{service: svc, store: store, tokens: tokens, notifier: notifier}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Register creates a new user and returns a bearer token.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	existing, err := h.store.GetUser(req.Username)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if existing != nil {
		respondWithError(w, http.StatusBadRequest, "Username already registered")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	user := &storage.User{
		Username:     req.Username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.store.CreateUser(user); err != nil {
		log.Error().Err(err).Str("username", req.Username).Msg("failed to create user")
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	h.respondWithToken(w, req.Username)
}

// Login authenticates an existing user and returns a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}

	user, err := h.store.GetUser(req.Username)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if user == nil || !auth.VerifyPassword(req.Password, user.PasswordHash) {
		w.Header().Set("WWW-Authenticate", "Bearer")
		respondWithError(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}

	h.respondWithToken(w, req.Username)
}

func (h *Handler) respondWithToken(w http.ResponseWriter, username string) {
	token, err := h.tokens.Issue(username)
	if err != nil {
		log.Error().Err(err).Str("username", username).Msg("failed to issue token")
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	respondWithJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

// AnalyzeCurrency accepts a multipart image upload, runs the dual-provider
// analysis and returns the persisted record.
func (h *Handler) AnalyzeCurrency(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(analyzeDuration)
	defer timer.ObserveDuration()

	username := userFromContext(r.Context())

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "File is required")
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to read upload")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	rec, err := h.service.Analyze(r.Context(), username, header.Filename, mimeType, imageData)
	if err != nil {
		if errors.Is(err, service.ErrNotImage) {
			respondWithError(w, http.StatusBadRequest, "File must be an image")
			return
		}
		log.Error().Err(err).Str("username", username).Msg("analyze failed")
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	providerResultsTotal.WithLabelValues("openai", rec.OpenAIResult.Kind.String()).Inc()
	providerResultsTotal.WithLabelValues("gemini", rec.GeminiResult.Kind.String()).Inc()

	respondWithJSON(w, http.StatusOK, map[string]any{
		"analysis_id":       rec.ID,
		"openai_result":     rec.OpenAIResult,
		"gemini_result":     rec.GeminiResult,
		"combined_analysis": rec.Combined,
		"timestamp":         rec.CreatedAt,
	})
}

// GetAnalysis returns one of the caller's analysis records by id.
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	username := userFromContext(r.Context())
	id := mux.Vars(r)["id"]

	rec, err := h.service.GetAnalysis(id, username)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if rec == nil {
		respondWithError(w, http.StatusNotFound, "Analysis not found")
		return
	}

	respondWithJSON(w, http.StatusOK, rec)
}

// ListAnalyses returns the caller's most recent analysis records.
func (h *Handler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	username := userFromContext(r.Context())

	records, err := h.service.ListAnalyses(username)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"analyses": records})
}

// TriggerWebhook re-delivers a stored analysis to the configured webhook URL.
func (h *Handler) TriggerWebhook(w http.ResponseWriter, r *http.Request) {
	username := userFromContext(r.Context())
	id := mux.Vars(r)["id"]

	rec, err := h.service.GetAnalysis(id, username)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if rec == nil {
		respondWithError(w, http.StatusNotFound, "Analysis not found")
		return
	}

	if h.notifier != nil {
		go h.notifier.NotifyAnalysis(context.WithoutCancel(r.Context()), rec)
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message":     "Webhook triggered",
		"analysis_id": rec.ID,
	})
}

// Health reports service liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "Currency Recognition API",
	})
}

// Root describes the service.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Currency Recognition API",
	})
}
