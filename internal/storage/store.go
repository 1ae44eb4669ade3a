package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"currency-lens/internal/vision"
)

// User is a registered account.
type User struct {
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// AnalysisRecord is the persisted outcome of one dual-provider analysis.
// Records are written once by their owner and never updated.
type AnalysisRecord struct {
	ID           string                  `json:"id"`
	UserID       string                  `json:"user_id"`
	OpenAIResult vision.ProviderResult   `json:"openai_result"`
	GeminiResult vision.ProviderResult   `json:"gemini_result"`
	Combined     vision.CombinedAnalysis `json:"combined_analysis"`
	Filename     string                  `json:"filename"`
	CreatedAt    time.Time               `json:"timestamp"`
}

// Store defines persistence for users and analysis records.
type Store interface {
	CreateUser(user *User) error
	// GetUser returns nil, nil if the user doesn't exist.
	GetUser(username string) (*User, error)

	InsertAnalysis(rec *AnalysisRecord) error
	// GetAnalysis is owner-scoped: a record owned by a different user is
	// indistinguishable from an absent one. Returns nil, nil when not found.
	GetAnalysis(id, userID string) (*AnalysisRecord, error)
	// ListAnalyses returns the caller's most recent records, newest first.
	ListAnalyses(userID string, limit int) ([]AnalysisRecord, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore creates a new SQLite-based store at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Configure SQLite with WAL mode and busy timeout for better concurrency
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set file permissions (only works on creation)
	if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
		// Ignore error if file doesn't exist yet
	}

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	usersQuery := `
	CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	`
	if _, err := s.db.Exec(usersQuery); err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}

	analysesQuery := `
	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		openai_result TEXT NOT NULL,
		gemini_result TEXT NOT NULL,
		combined_analysis TEXT NOT NULL,
		filename TEXT,
		created_at DATETIME NOT NULL
	);
	`
	if _, err := s.db.Exec(analysesQuery); err != nil {
		return fmt.Errorf("failed to create analyses table: %w", err)
	}

	indexQuery := `
	CREATE INDEX IF NOT EXISTS idx_analyses_user_created
	ON analyses (user_id, created_at DESC);
	`
	if _, err := s.db.Exec(indexQuery); err != nil {
		return fmt.Errorf("failed to create analyses index: %w", err)
	}

	return nil
}

// CreateUser inserts a new user. Fails on duplicate username.
func (s *SQLiteStore) CreateUser(user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)",
		user.Username, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by username.
// Returns nil, nil if the user doesn't exist.
func (s *SQLiteStore) GetUser(username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var user User
	err := s.db.QueryRow(
		"SELECT username, password_hash, created_at FROM users WHERE username = ?",
		username,
	).Scan(&user.Username, &user.PasswordHash, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	return &user, nil
}

// InsertAnalysis persists an analysis record. Provider results and the
// combined analysis are stored in their JSON wire shapes.
func (s *SQLiteStore) InsertAnalysis(rec *AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	openaiJSON, err := json.Marshal(rec.OpenAIResult)
	if err != nil {
		return fmt.Errorf("failed to marshal openai result: %w", err)
	}
	geminiJSON, err := json.Marshal(rec.GeminiResult)
	if err != nil {
		return fmt.Errorf("failed to marshal gemini result: %w", err)
	}
	combinedJSON, err := json.Marshal(rec.Combined)
	if err != nil {
		return fmt.Errorf("failed to marshal combined analysis: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO analyses (id, user_id, openai_result, gemini_result, combined_analysis, filename, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.UserID, string(openaiJSON), string(geminiJSON), string(combinedJSON), rec.Filename, rec.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}
	return nil
}

// GetAnalysis retrieves an analysis record by id, scoped to its owner.
// Returns nil, nil if the record doesn't exist or belongs to someone else.
func (s *SQLiteStore) GetAnalysis(id, userID string) (*AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		"SELECT id, user_id, openai_result, gemini_result, combined_analysis, filename, created_at FROM analyses WHERE id = ? AND user_id = ?",
		id, userID,
	)

	rec, err := scanAnalysis(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis: %w", err)
	}
	return rec, nil
}

// ListAnalyses returns the user's most recent analysis records, ordered by
// creation time descending.
func (s *SQLiteStore) ListAnalyses(userID string, limit int) ([]AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT id, user_id, openai_result, gemini_result, combined_analysis, filename, created_at FROM analyses WHERE user_id = ? ORDER BY created_at DESC LIMIT ?",
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer rows.Close()

	records := make([]AnalysisRecord, 0)
	for rows.Next() {
		rec, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*AnalysisRecord, error) {
	var rec AnalysisRecord
	var openaiJSON, geminiJSON, combinedJSON string
	var filename sql.NullString

	err := row.Scan(&rec.ID, &rec.UserID, &openaiJSON, &geminiJSON, &combinedJSON, &filename, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(openaiJSON), &rec.OpenAIResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal openai result: %w", err)
	}
	if err := json.Unmarshal([]byte(geminiJSON), &rec.GeminiResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal gemini result: %w", err)
	}
	if err := json.Unmarshal([]byte(combinedJSON), &rec.Combined); err != nil {
		return nil, fmt.Errorf("failed to unmarshal combined analysis: %w", err)
	}
	rec.Filename = filename.String

	return &rec, nil
}
