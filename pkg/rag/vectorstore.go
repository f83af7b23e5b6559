// Package rag provides the knowledge-base vector index and the retriever
// that supplies grounding context to the solving stage.
package rag

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"mathmentor/pkg/embedding"
)

// Metadata describes a stored document.
type Metadata struct {
	Source   string `json:"source"`
	Category string `json:"category"`
	Topic    string `json:"topic"`
}

// QueryResult holds query hits aligned by index across the three slices.
type QueryResult struct {
	Documents []string
	Metadatas []Metadata
	Distances []float64
}

// Index is the query surface of a vector store.
type Index interface {
	Query(ctx context.Context, text string, n int, where map[string]string) (*QueryResult, error)
}

// VectorStore is a SQLite-backed vector index over knowledge documents.
// Embeddings are stored as JSON arrays; queries compute cosine distance
// against the query embedding.
type VectorStore struct {
	db     *sql.DB
	engine embedding.Engine
	logger *zap.Logger
	mu     sync.RWMutex
}

// StoreOption configures a VectorStore.
type StoreOption func(*VectorStore)

// WithStoreLogger sets the logger for store operations.
func WithStoreLogger(logger *zap.Logger) StoreOption {
	return func(s *VectorStore) {
		s.logger = logger
	}
}

// NewVectorStore opens (creating if needed) the vector database at path.
func NewVectorStore(path string, engine embedding.Engine, opts ...StoreOption) (*VectorStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}

	s := &VectorStore{db: db, engine: engine, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *VectorStore) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			source TEXT,
			category TEXT,
			topic TEXT,
			embedding TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_documents_category ON documents(category);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Add stores a document with its embedding. Documents with the same id are
// overwritten.
func (s *VectorStore) Add(ctx context.Context, id, content string, meta Metadata) error {
	vec, err := s.engine.Embed(ctx, content, embedding.TaskDocument)
	if err != nil {
		return fmt.Errorf("embed document %s: %w", id, err)
	}
	if len(vec) == 0 {
		return fmt.Errorf("empty embedding for document %s", id)
	}

	blob, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO documents (id, content, source, category, topic, embedding)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, content, meta.Source, meta.Category, meta.Topic, string(blob))
	if err != nil {
		return fmt.Errorf("insert document %s: %w", id, err)
	}
	return nil
}

// Query embeds text and returns the n nearest documents by cosine distance,
// optionally filtered by metadata equality (only "category" is indexed).
func (s *VectorStore) Query(ctx context.Context, text string, n int, where map[string]string) (*QueryResult, error) {
	queryVec, err := s.engine.Embed(ctx, text, embedding.TaskQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(queryVec) == 0 {
		return &QueryResult{}, nil
	}

	query := `SELECT content, source, category, topic, embedding FROM documents`
	var args []any
	if category, ok := where["category"]; ok && category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}

	s.mu.RLock()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.mu.RUnlock()
		return nil, fmt.Errorf("query documents: %w", err)
	}

	type hit struct {
		content  string
		meta     Metadata
		distance float64
	}
	var hits []hit

	for rows.Next() {
		var content, blob string
		var meta Metadata
		if err := rows.Scan(&content, &meta.Source, &meta.Category, &meta.Topic, &blob); err != nil {
			rows.Close()
			s.mu.RUnlock()
			return nil, fmt.Errorf("scan document: %w", err)
		}

		var vec []float32
		if err := json.Unmarshal([]byte(blob), &vec); err != nil {
			s.logger.Warn("skipping document with bad embedding", zap.String("source", meta.Source))
			continue
		}

		hits = append(hits, hit{
			content:  content,
			meta:     meta,
			distance: cosineDistance(queryVec, vec),
		})
	}
	rows.Close()
	s.mu.RUnlock()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	// Nearest first.
	for i := 0; i < len(hits); i++ {
		for j := i + 1; j < len(hits); j++ {
			if hits[j].distance < hits[i].distance {
				hits[i], hits[j] = hits[j], hits[i]
			}
		}
	}
	if n > 0 && len(hits) > n {
		hits = hits[:n]
	}

	result := &QueryResult{}
	for _, h := range hits {
		result.Documents = append(result.Documents, h.content)
		result.Metadatas = append(result.Metadatas, h.meta)
		result.Distances = append(result.Distances, h.distance)
	}
	return result, nil
}

// Count returns the number of stored documents.
func (s *VectorStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *VectorStore) Close() error {
	return s.db.Close()
}

// cosineDistance is 1 minus cosine similarity; zero-norm vectors are treated
// as maximally distant within the unit range.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
