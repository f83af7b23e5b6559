package agent

import (
	"context"
	"strings"
	"testing"

	"mathmentor/pkg/adapter"
)

const explanationJSON = `{
	"title": "Solving a Quadratic by Factoring",
	"summary": "The roots are x = 2 and x = 3.",
	"detailed_steps": [
		{"step_number": 1, "action": "Factor", "explanation": "Look for two numbers that multiply to 6 and add to -5", "calculation": "(x-2)(x-3) = 0", "result": "factored form"}
	],
	"final_answer": "x = 2 or x = 3",
	"key_concepts": ["factoring", "zero product property"],
	"formulas_applied": [],
	"tips": ["Always check by substituting back"],
	"common_mistakes": ["Forgetting the second root"],
	"related_problems": []
}`

func TestExplainerStructuredResponse(t *testing.T) {
	mock := adapter.NewMockAdapterWithResponses(map[string]string{
		"x^2 - 5x + 6": explanationJSON,
	}, "")
	e := NewExplainer(mock, "mock-1", nil)

	out := e.Execute(context.Background(), "Solve x^2 - 5x + 6 = 0", verifiedSolution(), "algebra", "quadratic_equations")
	if !out.Success {
		t.Fatalf("success = false: %s", out.Message)
	}
	if out.NeedsHITL {
		t.Error("explainer never requests human review")
	}
	if out.Explanation.Title != "Solving a Quadratic by Factoring" {
		t.Errorf("title = %q", out.Explanation.Title)
	}
	for _, want := range []string{"# Solving a Quadratic by Factoring", "## Final Answer", "**x = 2 or x = 3**", "## Tips", "## Common Mistakes"} {
		if !strings.Contains(out.Markdown, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestExplainerFallbackFromSolution(t *testing.T) {
	mock := adapter.NewMockAdapterWithResponses(nil, "Sorry, I can only answer in prose.")
	e := NewExplainer(mock, "mock-1", nil)

	solution := verifiedSolution()
	out := e.Execute(context.Background(), "Solve x^2 - 5x + 6 = 0", solution, "algebra", "quadratic_equations")
	if !out.Success {
		t.Fatal("fallback explanation must still succeed")
	}
	if out.Explanation.Title != "Solution" {
		t.Errorf("title = %q", out.Explanation.Title)
	}
	if out.Explanation.FinalAnswer != solution.FinalAnswer {
		t.Errorf("answer = %q", out.Explanation.FinalAnswer)
	}
	if len(out.Explanation.DetailedSteps) != len(solution.Steps) {
		t.Errorf("steps = %d, want %d", len(out.Explanation.DetailedSteps), len(solution.Steps))
	}
}

func TestToMarkdownMinimal(t *testing.T) {
	md := ToMarkdown(&Explanation{Summary: "short", FinalAnswer: "42"})
	if !strings.Contains(md, "# Solution") {
		t.Errorf("default title missing: %q", md)
	}
	if strings.Contains(md, "## Key Concepts") {
		t.Error("empty sections should be omitted")
	}
}
