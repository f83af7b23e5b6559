package rag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Document is a unit of knowledge prepared for ingestion.
type Document struct {
	ID      string
	Content string
	Meta    Metadata
}

// Ingestor loads documents into the vector store in small batches. Embedding
// calls go through the shared cache and rate limiter, so re-ingesting the
// same corpus is cheap.
type Ingestor struct {
	store     *VectorStore
	batchSize int
	logger    *zap.Logger
}

// NewIngestor creates an ingestor over store.
func NewIngestor(store *VectorStore, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{store: store, batchSize: 5, logger: logger}
}

// Ingest stores all documents, continuing past per-document failures.
// It returns the number of documents stored and the first error seen.
func (in *Ingestor) Ingest(ctx context.Context, docs []Document) (int, error) {
	var stored int
	var firstErr error

	for i := 0; i < len(docs); i += in.batchSize {
		end := i + in.batchSize
		if end > len(docs) {
			end = len(docs)
		}
		in.logger.Info("ingesting batch",
			zap.Int("batch", i/in.batchSize+1),
			zap.Int("documents", end-i))

		for _, doc := range docs[i:end] {
			if err := in.store.Add(ctx, doc.ID, doc.Content, doc.Meta); err != nil {
				in.logger.Warn("failed to ingest document", zap.String("id", doc.ID), zap.Error(err))
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			stored++
		}
	}
	return stored, firstErr
}

// ChunkText splits text into overlapping chunks on paragraph boundaries where
// possible. Chunks are sized in runes.
func ChunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = 800
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var chunks []string
	step := size - overlap
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// ChunkDocuments prepares chunked documents from one source text.
func ChunkDocuments(source, topic, category, text string, size, overlap int) []Document {
	chunks := ChunkText(text, size, overlap)
	docs := make([]Document, 0, len(chunks))
	for i, chunk := range chunks {
		docs = append(docs, Document{
			ID:      fmt.Sprintf("%s-%d", source, i),
			Content: chunk,
			Meta:    Metadata{Source: source, Category: category, Topic: topic},
		})
	}
	return docs
}
