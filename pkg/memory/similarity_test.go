package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathmentor/pkg/embedding"
)

// fixedEngine maps exact text to a canned vector; unknown text gets a
// default vector.
type fixedEngine struct {
	vectors     map[string][]float32
	fallbackVec []float32
}

func (f *fixedEngine) Embed(_ context.Context, text string, _ embedding.Task) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return f.fallbackVec, nil
}

func (f *fixedEngine) Dimensions() int { return 3 }
func (f *fixedEngine) Name() string    { return "fixed" }

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero norm", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1}, []float32{1, 2}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestFindSimilarRanksAndCaps(t *testing.T) {
	store := newTestStore(t)

	mk := func(question string, vec []float32) *ProblemMemory {
		p := sampleProblem("algebra", "quadratic_equations")
		p.ParsedQuestion = question
		p.Embedding = vec
		require.NoError(t, store.SaveProblem(p))
		require.NoError(t, store.UpdateFeedback(p.ID, FeedbackCorrect, ""))
		return p
	}
	mk("near exact", []float32{1, 0, 0.05})
	mk("close", []float32{1, 0.3, 0})
	mk("also close", []float32{1, 0.2, 0})
	mk("unrelated", []float32{0, 1, 0})

	engine := &fixedEngine{fallbackVec: []float32{1, 0, 0}}
	searcher := NewSearcher(store, engine, 0.8, 2, nil)

	matches, err := searcher.FindSimilar(context.Background(), "solve quadratic", "algebra")
	require.NoError(t, err)
	require.Len(t, matches, 2, "results capped at max count")
	assert.Equal(t, "near exact", matches[0].Problem.ParsedQuestion)
	assert.GreaterOrEqual(t, matches[0].Similarity, matches[1].Similarity)
	for _, m := range matches {
		assert.GreaterOrEqual(t, m.Similarity, 0.8)
	}
}

func TestFindSimilarSkipsMissingEmbeddings(t *testing.T) {
	store := newTestStore(t)

	p := sampleProblem("algebra", "quadratic_equations")
	require.NoError(t, store.SaveProblem(p))
	require.NoError(t, store.UpdateFeedback(p.ID, FeedbackCorrect, ""))

	engine := &fixedEngine{fallbackVec: []float32{1, 0, 0}}
	searcher := NewSearcher(store, engine, 0.8, 2, nil)

	matches, err := searcher.FindSimilar(context.Background(), "anything", "algebra")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFindSimilarEmptyQueryEmbedding(t *testing.T) {
	store := newTestStore(t)
	engine := &fixedEngine{fallbackVec: nil}
	searcher := NewSearcher(store, engine, 0.8, 2, nil)

	matches, err := searcher.FindSimilar(context.Background(), "anything", "algebra")
	require.NoError(t, err)
	assert.Nil(t, matches)
}

func TestSimilarSolutionsContext(t *testing.T) {
	assert.Empty(t, SimilarSolutionsContext(nil))

	p := sampleProblem("algebra", "quadratic_equations")
	p.UserFeedback = FeedbackCorrect
	text := SimilarSolutionsContext([]SimilarProblem{{Problem: p, Similarity: 0.91}})
	assert.True(t, strings.Contains(text, "similarity: 0.91"))
	assert.True(t, strings.Contains(text, p.FinalAnswer))
	assert.True(t, strings.Contains(text, "confirmed correct"))
}
