package rag

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
)

// RetrievedContext represents a retrieved document with source attribution.
type RetrievedContext struct {
	Content        string  `json:"content"`
	Source         string  `json:"source"`
	Category       string  `json:"category"`
	Topic          string  `json:"topic"`
	RelevanceScore float64 `json:"relevance_score"`
}

// SourceSummary is a display-oriented projection of a retrieved context.
type SourceSummary struct {
	Source    string `json:"source"`
	Topic     string `json:"topic"`
	Category  string `json:"category"`
	Relevance string `json:"relevance"`
	Preview   string `json:"preview"`
}

// topicCategories maps topic names to knowledge-base categories.
var topicCategories = map[string]string{
	"algebra":        "algebra",
	"quadratic":      "algebra",
	"polynomial":     "algebra",
	"probability":    "probability",
	"permutation":    "probability",
	"combination":    "probability",
	"calculus":       "calculus",
	"derivative":     "calculus",
	"integral":       "calculus",
	"limit":          "calculus",
	"matrix":         "linear_algebra",
	"vector":         "linear_algebra",
	"determinant":    "linear_algebra",
	"linear_algebra": "linear_algebra",
}

// Retriever queries the knowledge index with graceful degradation: an
// unavailable index yields empty results, never an error.
type Retriever struct {
	index  Index // nil when the knowledge base has not been built
	topK   int
	logger *zap.Logger
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithRetrieverLogger sets the logger.
func WithRetrieverLogger(logger *zap.Logger) RetrieverOption {
	return func(r *Retriever) {
		r.logger = logger
	}
}

// NewRetriever creates a retriever over index. A nil index disables retrieval.
func NewRetriever(index Index, topK int, opts ...RetrieverOption) *Retriever {
	if topK <= 0 {
		topK = 2
	}
	r := &Retriever{index: index, topK: topK, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Available reports whether the knowledge index can be queried.
func (r *Retriever) Available() bool {
	return r.index != nil
}

// Retrieve returns up to n contexts for query, optionally filtered by
// category. It returns an empty slice when the index is unavailable or the
// query fails.
func (r *Retriever) Retrieve(ctx context.Context, query string, n int, categoryFilter string) []RetrievedContext {
	if r.index == nil {
		return nil
	}
	if n <= 0 {
		n = r.topK
	}

	var where map[string]string
	if categoryFilter != "" {
		where = map[string]string{"category": categoryFilter}
	}

	result, err := r.index.Query(ctx, query, n, where)
	if err != nil {
		r.logger.Warn("retrieval failed", zap.Error(err))
		return nil
	}

	contexts := make([]RetrievedContext, 0, len(result.Documents))
	for i, doc := range result.Documents {
		meta := Metadata{Source: "unknown", Category: "general", Topic: "unknown"}
		if i < len(result.Metadatas) {
			meta = result.Metadatas[i]
		}
		distance := 1.0
		if i < len(result.Distances) {
			distance = result.Distances[i]
		}

		contexts = append(contexts, RetrievedContext{
			Content:        doc,
			Source:         meta.Source,
			Category:       meta.Category,
			Topic:          meta.Topic,
			RelevanceScore: relevance(distance),
		})
	}
	return contexts
}

// RetrieveForTopic retrieves with the category filter mapped from topic.
func (r *Retriever) RetrieveForTopic(ctx context.Context, query, topic string) []RetrievedContext {
	category := topicCategories[strings.ToLower(topic)]
	return r.Retrieve(ctx, query, 0, category)
}

// RetrieveWithFallback retrieves topic-filtered context, widening to an
// unfiltered query when the narrow one returns fewer than two results.
// The combined list is deduplicated by source and capped at top_k.
func (r *Retriever) RetrieveWithFallback(ctx context.Context, query, topic string) []RetrievedContext {
	if topic == "" {
		return r.Retrieve(ctx, query, 0, "")
	}

	results := r.RetrieveForTopic(ctx, query, topic)
	if len(results) >= 2 {
		return results
	}

	seen := make(map[string]bool, len(results))
	for _, c := range results {
		seen[c.Source] = true
	}
	for _, c := range r.Retrieve(ctx, query, 0, "") {
		if !seen[c.Source] {
			results = append(results, c)
			seen[c.Source] = true
		}
	}

	if len(results) > r.topK {
		results = results[:r.topK]
	}
	return results
}

// FormatContext renders contexts for prompt injection. When nothing was
// retrieved the caller is told to rely on background knowledge instead of
// fabricating sources.
func FormatContext(contexts []RetrievedContext) string {
	if len(contexts) == 0 {
		return "Note: Knowledge base not available. Solve using your training knowledge."
	}

	var b strings.Builder
	b.WriteString("## Retrieved Knowledge Base Context:\n\n")
	for i, c := range contexts {
		fmt.Fprintf(&b, "### Source %d: %s (%s)\n", i+1, c.Topic, c.Category)
		fmt.Fprintf(&b, "*Relevance: %.2f%%*\n\n", c.RelevanceScore*100)
		b.WriteString(c.Content)
		b.WriteString("\n\n---\n")
	}
	return b.String()
}

// SourcesSummary projects contexts for display. An empty retrieval reports
// reliance on built-in knowledge.
func SourcesSummary(contexts []RetrievedContext) []SourceSummary {
	if len(contexts) == 0 {
		return []SourceSummary{{
			Source:    "AI Knowledge",
			Topic:     "General",
			Category:  "N/A",
			Relevance: "N/A",
			Preview:   "Using built-in knowledge (knowledge base not available)",
		}}
	}

	summaries := make([]SourceSummary, 0, len(contexts))
	for _, c := range contexts {
		preview := c.Content
		if len(preview) > 150 {
			preview = preview[:150] + "..."
		}
		summaries = append(summaries, SourceSummary{
			Source:    c.Source,
			Topic:     c.Topic,
			Category:  c.Category,
			Relevance: fmt.Sprintf("%.2f%%", c.RelevanceScore*100),
			Preview:   preview,
		})
	}
	return summaries
}

// relevance converts a distance to a bounded score: 1/(1+d), rounded to four
// decimals. Lower distance means higher score.
func relevance(distance float64) float64 {
	return math.Round(1.0/(1.0+distance)*10000) / 10000
}
