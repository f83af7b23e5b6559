package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFormulas(t *testing.T) {
	solution := "Using x = (-b ± √(b²-4ac)) / 2a, we get $x^2 - 5x + 6$ and y = 2x + 1."
	formulas := extractFormulas(solution)
	assert.NotEmpty(t, formulas)

	var hasLatex bool
	for _, f := range formulas {
		if f == "$x^2 - 5x + 6$" {
			hasLatex = true
		}
	}
	assert.True(t, hasLatex)
}

func TestExtractMethod(t *testing.T) {
	assert.Equal(t, "quadratic formula", extractMethod("Apply the Quadratic Formula to solve."))
	assert.Equal(t, "factoring", extractMethod("Solve by factoring the expression."))
	assert.Empty(t, extractMethod("Just think hard about it."))
}

func TestLearnAndRetrievePatterns(t *testing.T) {
	store := newTestStore(t)

	add := func(subtopic, solution string) {
		p := sampleProblem("algebra", subtopic)
		p.Solution = solution
		require.NoError(t, store.SaveProblem(p))
		require.NoError(t, store.UpdateFeedback(p.ID, FeedbackCorrect, ""))
	}
	add("quadratic_equations", "Solve by factoring: (x-2)(x-3) = 0")
	add("quadratic_equations", "Solve by factoring again: (x-1)(x-4) = 0")
	add("linear_equations", "Use substitution: y = 2x")

	learner := NewPatternLearner(store)
	require.NoError(t, learner.LearnFromMemory())

	patterns := learner.PatternsForTopic("algebra", "quadratic_equations")
	require.NotEmpty(t, patterns.Methods)
	// Topic-level patterns from sibling subtopics are folded in.
	assert.Contains(t, patterns.Methods, "factoring")
	assert.Contains(t, patterns.Methods, "substitution")
	assert.Equal(t, "factoring", patterns.Methods[0], "most frequent method first")
}

func TestPatternsForUnknownTopic(t *testing.T) {
	learner := NewPatternLearner(newTestStore(t))
	require.NoError(t, learner.LearnFromMemory())

	patterns := learner.PatternsForTopic("geometry", "")
	assert.Empty(t, patterns.Formulas)
	assert.Empty(t, patterns.Methods)
}

func TestApplyCorrections(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SaveCorrection("x2", "x^2", "parse"))
	require.NoError(t, store.SaveCorrection("rt(", "sqrt(", "ocr"))

	learner := NewPatternLearner(store)
	require.NoError(t, learner.LearnFromMemory())

	got := learner.ApplyCorrections("find rt(x2 + 1)")
	assert.Equal(t, "find sqrt(x^2 + 1)", got)

	// Text without any learned pattern passes through unchanged.
	assert.Equal(t, "untouched", learner.ApplyCorrections("untouched"))
}

func TestHintsForIncludeTopicTips(t *testing.T) {
	learner := NewPatternLearner(newTestStore(t))
	require.NoError(t, learner.LearnFromMemory())

	hints := learner.HintsFor("algebra", "quadratic_equations")
	assert.NotEmpty(t, hints.Tips)

	hints = learner.HintsFor("geometry", "triangles")
	assert.Empty(t, hints.Tips)
}

func TestMostCommon(t *testing.T) {
	items := []string{"a", "b", "a", "c", "b", "a"}
	got := mostCommon(items, 2)
	assert.Equal(t, []string{"a", "b"}, got)

	assert.Nil(t, mostCommon(nil, 3))
}

func TestPatternStats(t *testing.T) {
	store := newTestStore(t)
	p := sampleProblem("algebra", "quadratic_equations")
	p.Solution = "By factoring, x = 2 and x = 3"
	require.NoError(t, store.SaveProblem(p))
	require.NoError(t, store.UpdateFeedback(p.ID, FeedbackCorrect, ""))
	require.NoError(t, store.SaveCorrection("x2", "x^2", "parse"))

	learner := NewPatternLearner(store)
	require.NoError(t, learner.LearnFromMemory())

	stats := learner.Stats()
	assert.Equal(t, 1, stats.TopicsWithPatterns)
	assert.GreaterOrEqual(t, stats.TotalFormulas, 1)
	assert.Equal(t, 1, stats.TotalMethods)
	assert.Equal(t, 1, stats.CorrectionPatterns)
}
