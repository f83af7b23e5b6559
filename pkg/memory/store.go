// Package memory provides the durable record of solved problems, similarity
// search over it, and pattern learning from user-confirmed solutions.
package memory

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Feedback values recorded against a solved problem.
const (
	FeedbackNone      = ""
	FeedbackCorrect   = "correct"
	FeedbackIncorrect = "incorrect"
)

// ProblemMemory is one solved-problem record. Records are appended or
// updated by primary key, never deleted in normal operation.
type ProblemMemory struct {
	ID                 string    `json:"id"`
	Timestamp          time.Time `json:"timestamp"`
	InputType          string    `json:"input_type"`
	RawInput           string    `json:"raw_input"`
	ParsedQuestion     string    `json:"parsed_question"`
	Topic              string    `json:"topic"`
	Subtopic           string    `json:"subtopic"`
	RetrievedContext   string    `json:"retrieved_context"`
	Solution           string    `json:"solution"`
	Explanation        string    `json:"explanation"`
	FinalAnswer        string    `json:"final_answer"`
	VerifierConfidence float64   `json:"verifier_confidence"`
	UserFeedback       string    `json:"user_feedback"`
	UserComment        string    `json:"user_comment"`
	Embedding          []float32 `json:"-"`
}

// Stats summarizes the memory store contents.
type Stats struct {
	TotalProblems    int            `json:"total_problems"`
	ByFeedback       map[string]int `json:"by_feedback"`
	ByTopic          map[string]int `json:"by_topic"`
	TotalCorrections int            `json:"total_corrections"`
}

// Store is the SQLite-backed problem memory.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger for store operations.
func WithLogger(logger *zap.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore opens (creating if needed) the memory database at path.
func NewStore(path string, opts ...StoreOption) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}

	s := &Store{db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS problem_memory (
			id TEXT PRIMARY KEY,
			timestamp TEXT NOT NULL,
			input_type TEXT,
			raw_input TEXT,
			parsed_question TEXT,
			topic TEXT,
			subtopic TEXT,
			retrieved_context TEXT,
			solution TEXT,
			explanation TEXT,
			final_answer TEXT,
			verifier_confidence REAL,
			user_feedback TEXT,
			user_comment TEXT,
			embedding TEXT
		);
		CREATE TABLE IF NOT EXISTS corrections (
			id TEXT PRIMARY KEY,
			original_text TEXT,
			corrected_text TEXT,
			correction_type TEXT,
			timestamp TEXT,
			frequency INTEGER DEFAULT 1
		);
		CREATE INDEX IF NOT EXISTS idx_topic ON problem_memory(topic, subtopic);
		CREATE INDEX IF NOT EXISTS idx_feedback ON problem_memory(user_feedback);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// SaveProblem inserts or overwrites a problem record (last writer wins).
func (s *Store) SaveProblem(m *ProblemMemory) error {
	var blob any
	if len(m.Embedding) > 0 {
		data, err := json.Marshal(m.Embedding)
		if err != nil {
			return fmt.Errorf("marshal embedding: %w", err)
		}
		blob = string(data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO problem_memory
		(id, timestamp, input_type, raw_input, parsed_question, topic, subtopic,
		 retrieved_context, solution, explanation, final_answer,
		 verifier_confidence, user_feedback, user_comment, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Timestamp.UTC().Format(time.RFC3339Nano), m.InputType, m.RawInput,
		m.ParsedQuestion, m.Topic, m.Subtopic, m.RetrievedContext, m.Solution,
		m.Explanation, m.FinalAnswer, m.VerifierConfidence, m.UserFeedback,
		m.UserComment, blob)
	if err != nil {
		return fmt.Errorf("save problem %s: %w", m.ID, err)
	}
	return nil
}

// GetProblem returns a problem by id, or nil when absent.
func (s *Store) GetProblem(id string) (*ProblemMemory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.db.QueryRow(`SELECT `+memoryColumns+` FROM problem_memory WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get problem %s: %w", id, err)
	}
	return m, nil
}

// ProblemsByTopic returns recent problems for a topic, optionally narrowed
// to a subtopic.
func (s *Store) ProblemsByTopic(topic, subtopic string, limit int) ([]*ProblemMemory, error) {
	query := `SELECT ` + memoryColumns + ` FROM problem_memory WHERE topic = ?`
	args := []any{topic}
	if subtopic != "" {
		query += ` AND subtopic = ?`
		args = append(args, subtopic)
	}
	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	return s.queryProblems(query, args...)
}

// CorrectSolutions returns problems marked correct by users, newest first.
func (s *Store) CorrectSolutions(limit int) ([]*ProblemMemory, error) {
	return s.queryProblems(`SELECT `+memoryColumns+` FROM problem_memory
		WHERE user_feedback = ? ORDER BY timestamp DESC LIMIT ?`,
		FeedbackCorrect, limit)
}

// RecentProblems returns the newest problems regardless of feedback.
func (s *Store) RecentProblems(limit int) ([]*ProblemMemory, error) {
	return s.queryProblems(`SELECT ` + memoryColumns + ` FROM problem_memory
		ORDER BY timestamp DESC LIMIT ?`, limit)
}

// UpdateFeedback records user feedback for a problem.
func (s *Store) UpdateFeedback(id, feedback, comment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`UPDATE problem_memory SET user_feedback = ?, user_comment = ? WHERE id = ?`,
		feedback, comment, id)
	if err != nil {
		return fmt.Errorf("update feedback for %s: %w", id, err)
	}
	return nil
}

// AttachEmbedding lazily attaches an embedding to an existing problem.
func (s *Store) AttachEmbedding(id string, vec []float32) error {
	if len(vec) == 0 {
		return nil
	}
	data, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(`UPDATE problem_memory SET embedding = ? WHERE id = ?`, string(data), id)
	if err != nil {
		return fmt.Errorf("attach embedding to %s: %w", id, err)
	}
	return nil
}

// SaveCorrection records a correction pattern, incrementing frequency when
// the same (type, original) pair is seen again.
func (s *Store) SaveCorrection(original, corrected, correctionType string) error {
	id := correctionID(correctionType, original)

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO corrections (id, original_text, corrected_text, correction_type, timestamp, frequency)
		VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT(id) DO UPDATE SET
			corrected_text = excluded.corrected_text,
			frequency = frequency + 1`,
		id, original, corrected, correctionType, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save correction: %w", err)
	}
	return nil
}

// Corrections returns learned correction patterns (original -> corrected),
// optionally filtered by type.
func (s *Store) Corrections(correctionType string) (map[string]string, error) {
	query := `SELECT original_text, corrected_text FROM corrections`
	var args []any
	if correctionType != "" {
		query += ` WHERE correction_type = ?`
		args = append(args, correctionType)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query corrections: %w", err)
	}
	defer rows.Close()

	patterns := make(map[string]string)
	for rows.Next() {
		var original, corrected string
		if err := rows.Scan(&original, &corrected); err != nil {
			return nil, fmt.Errorf("scan correction: %w", err)
		}
		patterns[original] = corrected
	}
	return patterns, rows.Err()
}

// GetStats returns memory store statistics.
func (s *Store) GetStats() (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &Stats{
		ByFeedback: make(map[string]int),
		ByTopic:    make(map[string]int),
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM problem_memory`).Scan(&stats.TotalProblems); err != nil {
		return nil, fmt.Errorf("count problems: %w", err)
	}

	rows, err := s.db.Query(`SELECT user_feedback, COUNT(*) FROM problem_memory GROUP BY user_feedback`)
	if err != nil {
		return nil, fmt.Errorf("count by feedback: %w", err)
	}
	for rows.Next() {
		var feedback string
		var count int
		if err := rows.Scan(&feedback, &count); err != nil {
			rows.Close()
			return nil, err
		}
		if feedback == "" {
			feedback = "pending"
		}
		stats.ByFeedback[feedback] = count
	}
	rows.Close()

	rows, err = s.db.Query(`SELECT topic, COUNT(*) FROM problem_memory GROUP BY topic`)
	if err != nil {
		return nil, fmt.Errorf("count by topic: %w", err)
	}
	for rows.Next() {
		var topic string
		var count int
		if err := rows.Scan(&topic, &count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.ByTopic[topic] = count
	}
	rows.Close()

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM corrections`).Scan(&stats.TotalCorrections); err != nil {
		return nil, fmt.Errorf("count corrections: %w", err)
	}

	return stats, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

const memoryColumns = `id, timestamp, input_type, raw_input, parsed_question, topic, subtopic,
	retrieved_context, solution, explanation, final_answer, verifier_confidence,
	user_feedback, user_comment, embedding`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*ProblemMemory, error) {
	var m ProblemMemory
	var ts string
	var feedback, comment, blob sql.NullString
	if err := row.Scan(&m.ID, &ts, &m.InputType, &m.RawInput, &m.ParsedQuestion,
		&m.Topic, &m.Subtopic, &m.RetrievedContext, &m.Solution, &m.Explanation,
		&m.FinalAnswer, &m.VerifierConfidence, &feedback, &comment, &blob); err != nil {
		return nil, err
	}

	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		m.Timestamp = t
	}
	m.UserFeedback = feedback.String
	m.UserComment = comment.String
	if blob.Valid && blob.String != "" {
		if err := json.Unmarshal([]byte(blob.String), &m.Embedding); err != nil {
			m.Embedding = nil
		}
	}
	return &m, nil
}

func (s *Store) queryProblems(query string, args ...any) ([]*ProblemMemory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query problems: %w", err)
	}
	defer rows.Close()

	var problems []*ProblemMemory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan problem: %w", err)
		}
		problems = append(problems, m)
	}
	return problems, rows.Err()
}

func correctionID(correctionType, original string) string {
	sum := sha256.Sum256([]byte(correctionType + ":" + original))
	return hex.EncodeToString(sum[:])
}
