package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"mathmentor/pkg/adapter"
)

const explainerName = "Explainer Agent"

const explainerSystem = `You are an expert math tutor creating explanations for JEE students.

Your explanations should:
1. Be clear and easy to follow
2. Explain the "why" behind each step, not just the "what"
3. Highlight key concepts and formulas used
4. Point out common mistakes to avoid
5. Use proper mathematical notation
6. Include helpful tips and shortcuts

Format your response as JSON:
{
    "title": "Brief title of the solution",
    "summary": "One sentence summary of the answer",
    "detailed_steps": [
        {
            "step_number": 1,
            "action": "What we're doing",
            "explanation": "Why we're doing it",
            "calculation": "The math work",
            "result": "What we got"
        }
    ],
    "final_answer": "The complete answer with units if applicable",
    "key_concepts": ["concept 1", "concept 2"],
    "formulas_applied": ["formula 1", "formula 2"],
    "tips": ["helpful tip 1", "helpful tip 2"],
    "common_mistakes": ["mistake to avoid"],
    "related_problems": ["type of similar problems this method applies to"]
}

Make the explanation engaging and educational!`

// Explainer turns a verified solution into a student-facing explanation.
// It never requests human review; a degraded explanation built from the
// solution steps is always available as a fallback.
type Explainer struct {
	llmCaller
}

// NewExplainer builds the explainer stage.
func NewExplainer(a adapter.Adapter, model string, logger *zap.Logger) *Explainer {
	return &Explainer{llmCaller: newLLMCaller(a, model, logger)}
}

// Execute generates the explanation.
func (e *Explainer) Execute(ctx context.Context, problemText string, solution *Solution, topic, subtopic string) *ExplainOutcome {
	started := time.Now()

	prompt := buildExplanationPrompt(problemText, solution, topic, subtopic)
	response, err := e.generate(ctx, explainerName, explainerSystem, prompt)
	if err != nil {
		return &ExplainOutcome{
			Meta: Meta{
				Message: fmt.Sprintf("Explanation error: %v", err),
				Trace:   newTrace(explainerName, "explain", truncate(problemText, 50), fmt.Sprintf("Error: %v", err), started, StatusError),
			},
		}
	}

	var explanation Explanation
	if !extractJSON(response, &explanation) || (explanation.FinalAnswer == "" && len(explanation.DetailedSteps) == 0) {
		explanation = basicExplanation(solution)
	}

	return &ExplainOutcome{
		Meta: Meta{
			Success:    true,
			Message:    "Explanation generated",
			Confidence: 0.95,
			Trace: newTrace(explainerName, "explain",
				fmt.Sprintf("Topic: %s/%s", topic, subtopic),
				fmt.Sprintf("Generated %d step explanation", len(explanation.DetailedSteps)),
				started, StatusSuccess),
		},
		Explanation: &explanation,
		Markdown:    ToMarkdown(&explanation),
	}
}

func buildExplanationPrompt(problemText string, solution *Solution, topic, subtopic string) string {
	var b strings.Builder
	b.WriteString("# Math Problem\n")
	b.WriteString(problemText)
	fmt.Fprintf(&b, "\n\n# Topic: %s / %s\n\n# Solution Steps\n", topic, subtopic)
	for i, s := range solution.Steps {
		step := s.Step
		if step == 0 {
			step = i + 1
		}
		fmt.Fprintf(&b, "Step %d: %s = %s\n", step, s.Description, s.Calculation)
	}
	fmt.Fprintf(&b, "\n# Final Answer\n%s\n\n# Formulas Used\n%s\n\n", solution.FinalAnswer, strings.Join(solution.FormulasUsed, ", "))
	b.WriteString("Please create a detailed, student-friendly explanation of this solution.\nMake it educational and engaging for JEE preparation.")
	return b.String()
}

func basicExplanation(solution *Solution) Explanation {
	steps := make([]ExplanationStep, 0, len(solution.Steps))
	for i, s := range solution.Steps {
		num := s.Step
		if num == 0 {
			num = i + 1
		}
		steps = append(steps, ExplanationStep{
			StepNumber:  num,
			Action:      s.Description,
			Calculation: s.Calculation,
		})
	}
	return Explanation{
		Title:           "Solution",
		Summary:         fmt.Sprintf("The answer is %s", solution.FinalAnswer),
		DetailedSteps:   steps,
		FinalAnswer:     solution.FinalAnswer,
		FormulasApplied: solution.FormulasUsed,
	}
}

// ToMarkdown renders an explanation as markdown for display.
func ToMarkdown(e *Explanation) string {
	var b strings.Builder
	title := e.Title
	if title == "" {
		title = "Solution"
	}
	fmt.Fprintf(&b, "# %s\n\n**Summary:** %s\n\n## Solution Steps\n\n", title, e.Summary)

	for _, step := range e.DetailedSteps {
		fmt.Fprintf(&b, "### Step %d: %s\n", step.StepNumber, step.Action)
		if step.Explanation != "" {
			b.WriteString("\n" + step.Explanation + "\n")
		}
		if step.Calculation != "" {
			fmt.Fprintf(&b, "\n$$\n%s\n$$\n", step.Calculation)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "---\n\n## Final Answer\n**%s**\n", e.FinalAnswer)

	if len(e.KeyConcepts) > 0 {
		b.WriteString("\n## Key Concepts\n")
		for _, c := range e.KeyConcepts {
			b.WriteString("- " + c + "\n")
		}
	}
	if len(e.Tips) > 0 {
		b.WriteString("\n## Tips\n")
		for _, t := range e.Tips {
			b.WriteString("- " + t + "\n")
		}
	}
	if len(e.CommonMistakes) > 0 {
		b.WriteString("\n## Common Mistakes to Avoid\n")
		for _, m := range e.CommonMistakes {
			b.WriteString("- " + m + "\n")
		}
	}
	return b.String()
}
