package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"currency-lens/internal/auth"
	"currency-lens/internal/service"
	"currency-lens/internal/storage"
	"currency-lens/internal/vision"
	"currency-lens/internal/webhook"
)

type fakeAnalyzer struct {
	result vision.ProviderResult
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, imageB64, mimeType string) vision.ProviderResult {
	return f.result
}

func newTestServer(t *testing.T, openaiRes, geminiRes vision.ProviderResult) *httptest.Server {
	return newTestServerWithNotifier(t, openaiRes, geminiRes, nil)
}

func newTestServerWithNotifier(t *testing.T, openaiRes, geminiRes vision.ProviderResult, notifier service.Notifier) *httptest.Server {
	t.Helper()

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	orchestrator := vision.NewOrchestrator(
		&fakeAnalyzer{result: openaiRes},
		&fakeAnalyzer{result: geminiRes},
	)
	svc := service.NewAnalysisService(orchestrator, store, notifier)
	tokens := auth.NewTokenIssuer("test-secret", 30*time.Minute)
	handler := NewHandler(svc, store, tokens, notifier)

	srv := httptest.NewServer(handler.Router())
	t.Cleanup(srv.Close)
	return srv
}

func registerUser(t *testing.T, srv *httptest.Server, username, password string) string {
	t.Helper()

	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/api/register", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var token struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&token))
	assert.Equal(t, "bearer", token.TokenType)
	require.NotEmpty(t, token.AccessToken)
	return token.AccessToken
}

func multipartUpload(t *testing.T, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func doAuthed(t *testing.T, method, url, token string, body io.Reader, contentType string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func structuredUSD(provider string) vision.ProviderResult {
	return vision.Structured(provider, &vision.StructuredResult{
		CurrenciesDetected: []vision.Detection{
			{CurrencyType: "USD", Denomination: "20", Quantity: 1, Confidence: "high"},
		},
		Provider: provider,
	})
}

func TestRegisterDuplicateRejected(t *testing.T) {
	srv := newTestServer(t, structuredUSD("openai-fake"), structuredUSD("gemini-fake"))
	registerUser(t, srv, "alice", "hunter2")

	body, _ := json.Marshal(map[string]string{"username": "alice", "password": "other"})
	resp, err := http.Post(srv.URL+"/api/register", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	out := decodeJSON(t, resp)
	assert.Equal(t, "Username already registered", out["detail"])
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t, structuredUSD("openai-fake"), structuredUSD("gemini-fake"))
	registerUser(t, srv, "alice", "hunter2")

	body, _ := json.Marshal(map[string]string{"username": "alice", "password": "hunter2"})
	resp, err := http.Post(srv.URL+"/api/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	body, _ = json.Marshal(map[string]string{"username": "alice", "password": "wrong"})
	resp, err = http.Post(srv.URL+"/api/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestAnalyzeRequiresAuth(t *testing.T) {
	srv := newTestServer(t, structuredUSD("openai-fake"), structuredUSD("gemini-fake"))

	body, contentType := multipartUpload(t, "bill.png", "image/png", []byte("png-bytes"))
	resp, err := http.Post(srv.URL+"/api/analyze-currency", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAnalyzeFlow(t *testing.T) {
	srv := newTestServer(t, structuredUSD("openai-fake"), structuredUSD("gemini-fake"))
	token := registerUser(t, srv, "alice", "hunter2")

	body, contentType := multipartUpload(t, "bill.png", "image/png", []byte("png-bytes"))
	resp := doAuthed(t, http.MethodPost, srv.URL+"/api/analyze-currency", token, body, contentType)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeJSON(t, resp)

	analysisID, _ := out["analysis_id"].(string)
	require.NotEmpty(t, analysisID)

	combined, ok := out["combined_analysis"].(map[string]any)
	require.True(t, ok)
	consensus, ok := combined["consensus"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, consensus["currency_count_match"])
	assert.Equal(t, []any{}, combined["discrepancies"])

	// Owner can fetch the record back
	resp = doAuthed(t, http.MethodGet, srv.URL+"/api/analysis/"+analysisID, token, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rec := decodeJSON(t, resp)
	assert.Equal(t, analysisID, rec["id"])
	assert.Equal(t, "alice", rec["user_id"])
	assert.Equal(t, "bill.png", rec["filename"])

	// A different user gets not-found for the same id
	otherToken := registerUser(t, srv, "bob", "hunter2")
	resp = doAuthed(t, http.MethodGet, srv.URL+"/api/analysis/"+analysisID, otherToken, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// List returns the record for its owner
	resp = doAuthed(t, http.MethodGet, srv.URL+"/api/analysis", token, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decodeJSON(t, resp)
	analyses, ok := list["analyses"].([]any)
	require.True(t, ok)
	assert.Len(t, analyses, 1)
}

func TestAnalyzeRejectsNonImage(t *testing.T) {
	srv := newTestServer(t, structuredUSD("openai-fake"), structuredUSD("gemini-fake"))
	token := registerUser(t, srv, "alice", "hunter2")

	body, contentType := multipartUpload(t, "doc.pdf", "application/pdf", []byte("%PDF"))
	resp := doAuthed(t, http.MethodPost, srv.URL+"/api/analyze-currency", token, body, contentType)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAnalyzeBothProvidersFailedStillSucceeds(t *testing.T) {
	srv := newTestServer(t,
		vision.RawFallback("openai-fake", "I see a solid color, no currency."),
		vision.RawFallback("gemini-fake", "No currency visible."),
	)
	token := registerUser(t, srv, "alice", "hunter2")

	body, contentType := multipartUpload(t, "solid.png", "image/png", []byte("png-bytes"))
	resp := doAuthed(t, http.MethodPost, srv.URL+"/api/analyze-currency", token, body, contentType)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeJSON(t, resp)

	combined, ok := out["combined_analysis"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{}, combined["consensus"])
	assert.Equal(t, []any{}, combined["discrepancies"])

	openaiResult, ok := out["openai_result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "I see a solid color, no currency.", openaiResult["raw_response"])
}

func TestGetUnknownAnalysisNotFound(t *testing.T) {
	srv := newTestServer(t, structuredUSD("openai-fake"), structuredUSD("gemini-fake"))
	token := registerUser(t, srv, "alice", "hunter2")

	resp := doAuthed(t, http.MethodGet, srv.URL+"/api/analysis/no-such-id", token, nil, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAnalyzeDeliversWebhook(t *testing.T) {
	received := make(chan map[string]any, 1)
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		received <- payload
	}))
	defer receiver.Close()

	srv := newTestServerWithNotifier(t, structuredUSD("openai-fake"), structuredUSD("gemini-fake"),
		webhook.NewNotifier(receiver.URL))
	token := registerUser(t, srv, "alice", "hunter2")

	body, contentType := multipartUpload(t, "bill.png", "image/png", []byte("png-bytes"))
	resp := doAuthed(t, http.MethodPost, srv.URL+"/api/analyze-currency", token, body, contentType)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeJSON(t, resp)

	select {
	case payload := <-received:
		assert.Equal(t, out["analysis_id"], payload["analysis_id"])
		assert.Equal(t, "alice", payload["user_id"])
		assert.NotEmpty(t, payload["timestamp"])
		assert.Contains(t, payload, "combined_analysis")
	case <-time.After(2 * time.Second):
		t.Fatal("webhook receiver got no delivery")
	}
}

func TestAnalyzeSucceedsWhenWebhookDeliveryFails(t *testing.T) {
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer receiver.Close()

	srv := newTestServerWithNotifier(t, structuredUSD("openai-fake"), structuredUSD("gemini-fake"),
		webhook.NewNotifier(receiver.URL))
	token := registerUser(t, srv, "alice", "hunter2")

	body, contentType := multipartUpload(t, "bill.png", "image/png", []byte("png-bytes"))
	resp := doAuthed(t, http.MethodPost, srv.URL+"/api/analyze-currency", token, body, contentType)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeJSON(t, resp)
	analysisID, _ := out["analysis_id"].(string)
	require.NotEmpty(t, analysisID)

	// Manual re-delivery also reports success regardless of the receiver
	resp = doAuthed(t, http.MethodPost, srv.URL+"/api/webhook/"+analysisID, token, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	triggered := decodeJSON(t, resp)
	assert.Equal(t, "Webhook triggered", triggered["message"])
	assert.Equal(t, analysisID, triggered["analysis_id"])
}

func TestTriggerWebhookUnknownAnalysisNotFound(t *testing.T) {
	srv := newTestServer(t, structuredUSD("openai-fake"), structuredUSD("gemini-fake"))
	token := registerUser(t, srv, "alice", "hunter2")

	resp := doAuthed(t, http.MethodPost, srv.URL+"/api/webhook/no-such-id", token, nil, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
