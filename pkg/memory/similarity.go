package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"mathmentor/pkg/embedding"
)

// SimilarProblem pairs a remembered problem with its similarity score.
type SimilarProblem struct {
	Problem    *ProblemMemory
	Similarity float64
}

// Searcher finds previously solved problems similar to a new question.
type Searcher struct {
	store     *Store
	engine    embedding.Engine
	threshold float64
	maxCount  int
	logger    *zap.Logger
}

// NewSearcher builds a similarity searcher over the store. Threshold is the
// minimum cosine similarity for a match; maxCount caps returned results.
func NewSearcher(store *Store, engine embedding.Engine, threshold float64, maxCount int, logger *zap.Logger) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{
		store:     store,
		engine:    engine,
		threshold: threshold,
		maxCount:  maxCount,
		logger:    logger,
	}
}

// FindSimilar returns remembered problems whose stored embeddings are close
// to the question. Candidates are user-confirmed correct solutions plus
// recent problems on the same topic. Problems without embeddings are
// skipped.
func (s *Searcher) FindSimilar(ctx context.Context, question, topic string) ([]SimilarProblem, error) {
	vec, err := s.engine.Embed(ctx, question, embedding.TaskQuery)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if len(vec) == 0 {
		return nil, nil
	}

	candidates, err := s.candidates(topic)
	if err != nil {
		return nil, err
	}

	var matches []SimilarProblem
	for _, p := range candidates {
		if len(p.Embedding) == 0 {
			continue
		}
		sim := CosineSimilarity(vec, p.Embedding)
		if sim >= s.threshold {
			matches = append(matches, SimilarProblem{Problem: p, Similarity: sim})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > s.maxCount {
		matches = matches[:s.maxCount]
	}

	s.logger.Debug("similarity search",
		zap.Int("candidates", len(candidates)),
		zap.Int("matches", len(matches)))
	return matches, nil
}

func (s *Searcher) candidates(topic string) ([]*ProblemMemory, error) {
	seen := make(map[string]bool)
	var out []*ProblemMemory

	correct, err := s.store.CorrectSolutions(50)
	if err != nil {
		return nil, err
	}
	for _, p := range correct {
		if !seen[p.ID] {
			seen[p.ID] = true
			out = append(out, p)
		}
	}

	if topic != "" {
		byTopic, err := s.store.ProblemsByTopic(topic, "", 50)
		if err != nil {
			return nil, err
		}
		for _, p := range byTopic {
			if !seen[p.ID] {
				seen[p.ID] = true
				out = append(out, p)
			}
		}
	}
	return out, nil
}

// SimilarSolutionsContext formats similar problems as prompt context for the
// solver. Empty input yields an empty string.
func SimilarSolutionsContext(matches []SimilarProblem) string {
	if len(matches) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Previously solved similar problems:\n\n")
	for i, m := range matches {
		fmt.Fprintf(&b, "[Similar Problem %d] (similarity: %.2f)\n", i+1, m.Similarity)
		fmt.Fprintf(&b, "Question: %s\n", m.Problem.ParsedQuestion)
		fmt.Fprintf(&b, "Answer: %s\n", m.Problem.FinalAnswer)
		if m.Problem.UserFeedback == FeedbackCorrect {
			b.WriteString("(This solution was confirmed correct by a user.)\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// CosineSimilarity returns the cosine of the angle between two vectors.
// Zero-norm or mismatched-length vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
