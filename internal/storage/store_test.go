package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"currency-lens/internal/vision"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testRecord(id, userID string, createdAt time.Time) *AnalysisRecord {
	detection := vision.Detection{CurrencyType: "USD", Denomination: "20", Quantity: 1, Confidence: "high"}
	openaiRes := vision.Structured("OpenAI GPT-4o-mini", &vision.StructuredResult{
		CurrenciesDetected: []vision.Detection{detection},
		Provider:           "OpenAI GPT-4o-mini",
	})
	geminiRes := vision.Failed("Google Gemini 2.0 Flash", errors.New("quota exceeded"))

	return &AnalysisRecord{
		ID:           id,
		UserID:       userID,
		OpenAIResult: openaiRes,
		GeminiResult: geminiRes,
		Combined:     vision.Combine(openaiRes, geminiRes),
		Filename:     "bill.png",
		CreatedAt:    createdAt,
	}
}

func TestCreateAndGetUser(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.CreateUser(&User{
		Username:     "alice",
		PasswordHash: "hashed",
		CreatedAt:    time.Now().UTC(),
	}))

	user, err := store.GetUser("alice")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "hashed", user.PasswordHash)

	missing, err := store.GetUser("bob")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCreateUserDuplicateFails(t *testing.T) {
	store := newTestStore(t)

	user := &User{Username: "alice", PasswordHash: "h", CreatedAt: time.Now().UTC()}
	require.NoError(t, store.CreateUser(user))
	assert.Error(t, store.CreateUser(user))
}

func TestAnalysisRoundTrip(t *testing.T) {
	store := newTestStore(t)

	rec := testRecord("analysis-1", "alice", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, store.InsertAnalysis(rec))

	got, err := store.GetAnalysis("analysis-1", "alice")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.UserID, got.UserID)
	assert.Equal(t, "bill.png", got.Filename)
	assert.Equal(t, vision.KindStructured, got.OpenAIResult.Kind)
	require.Len(t, got.OpenAIResult.Detections(), 1)
	assert.Equal(t, "USD", got.OpenAIResult.Detections()[0].CurrencyType)
	assert.Equal(t, vision.KindFailed, got.GeminiResult.Kind)
	assert.Equal(t, "quota exceeded", got.GeminiResult.ErrMessage)
	assert.Equal(t, "dual_ai_analysis", got.Combined.Comparison)
	assert.Empty(t, got.Combined.Consensus)
	assert.Empty(t, got.Combined.Discrepancies)
}

func TestGetAnalysisOwnerScoped(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.InsertAnalysis(testRecord("analysis-1", "alice", time.Now().UTC())))

	got, err := store.GetAnalysis("analysis-1", "bob")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListAnalysesOrderAndLimit(t *testing.T) {
	store := newTestStore(t)

	// alice-00 is the oldest record, alice-11 the newest
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	for i := 0; i < 12; i++ {
		rec := testRecord(fmt.Sprintf("alice-%02d", i), "alice", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.InsertAnalysis(rec))
	}
	require.NoError(t, store.InsertAnalysis(testRecord("bob-1", "bob", base)))

	records, err := store.ListAnalyses("alice", 10)
	require.NoError(t, err)
	require.Len(t, records, 10)

	// Newest first; no foreign records
	for i := range records {
		assert.Equal(t, "alice", records[i].UserID)
		if i > 0 {
			assert.True(t, records[i-1].CreatedAt.After(records[i].CreatedAt))
		}
	}

	// Idempotent read: same call, same ordered result
	again, err := store.ListAnalyses("alice", 10)
	require.NoError(t, err)
	assert.Equal(t, records, again)
}

func TestListAnalysesEmpty(t *testing.T) {
	store := newTestStore(t)

	records, err := store.ListAnalyses("nobody", 10)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}
