package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"mathmentor/pkg/adapter"
	"mathmentor/pkg/memory"
	"mathmentor/pkg/rag"
	"mathmentor/pkg/symbolic"
)

const solverName = "Solver Agent"

const solverSystem = `You are an expert math tutor solving JEE-level problems.

Given:
1. A structured math problem
2. Relevant knowledge base context
3. A solving strategy

Your job is to:
1. Analyze the problem carefully
2. Apply relevant formulas and methods from the context
3. Solve step by step
4. Provide the final answer

IMPORTANT RULES:
- Show all steps clearly
- Use only formulas that appear in the provided context (no hallucination)
- If you're uncertain about a step, note it
- Express confidence in your solution (0.0 to 1.0)

Respond in this JSON format:
{
    "solution_steps": [
        {"step": 1, "description": "...", "calculation": "..."},
        {"step": 2, "description": "...", "calculation": "..."}
    ],
    "final_answer": "...",
    "formulas_used": ["formula 1", "formula 2"],
    "confidence": 0.9,
    "notes": "any important observations"
}`

// SimilarFinder surfaces previously solved problems close to the current
// question. The memory searcher satisfies this.
type SimilarFinder interface {
	FindSimilar(ctx context.Context, question, topic string) ([]memory.SimilarProblem, error)
}

// HintProvider supplies learned formulas and methods for a topic. The
// pattern learner satisfies this.
type HintProvider interface {
	HintsFor(topic, subtopic string) memory.SolutionHints
}

// Solver produces a worked solution using retrieved knowledge, learned
// patterns, and a deterministic symbolic cross-check where applicable.
type Solver struct {
	llmCaller
	retriever *rag.Retriever
	symbolic  *symbolic.Solver
	similar   SimilarFinder
	hints     HintProvider
}

// SolverOption configures optional solver context sources.
type SolverOption func(*Solver)

// WithSimilarFinder enables similar-problem context.
func WithSimilarFinder(f SimilarFinder) SolverOption {
	return func(s *Solver) { s.similar = f }
}

// WithHintProvider enables pattern-derived hints.
func WithHintProvider(h HintProvider) SolverOption {
	return func(s *Solver) { s.hints = h }
}

// NewSolver builds the solver stage. The retriever may be nil when no
// knowledge base is available.
func NewSolver(a adapter.Adapter, model string, retriever *rag.Retriever, logger *zap.Logger, opts ...SolverOption) *Solver {
	s := &Solver{
		llmCaller: newLLMCaller(a, model, logger),
		retriever: retriever,
		symbolic:  symbolic.NewSolver(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute solves the problem described by the parse and routing results.
func (s *Solver) Execute(ctx context.Context, problem *ParsedProblem, decision *RoutingDecision) *SolveOutcome {
	started := time.Now()

	var contexts []rag.RetrievedContext
	contextStr := ""
	if decision.NeedsRAG && s.retriever != nil {
		query := decision.RAGQuery
		if query == "" {
			query = problem.ProblemText
		}
		contexts = s.retriever.RetrieveWithFallback(ctx, query, decision.Topic)
		contextStr = rag.FormatContext(contexts)
	}

	var symbolicResult *symbolic.Result
	if containsTool(decision.Tools, "sympy") {
		if result, ok := s.symbolic.SolveEquation(problem.ProblemText); ok {
			symbolicResult = result
		}
	}

	prompt := s.buildPrompt(ctx, problem, decision, contextStr, symbolicResult)

	response, err := s.generate(ctx, solverName, solverSystem, prompt)
	if err != nil {
		return &SolveOutcome{
			Meta: Meta{
				Message: fmt.Sprintf("Solver error: %v", err),
				Trace:   newTrace(solverName, "solve", truncate(problem.ProblemText, 50), fmt.Sprintf("Error: %v", err), started, StatusError),
			},
		}
	}
	if response == "" {
		return &SolveOutcome{
			Meta: Meta{
				Message: "Failed to generate solution",
				Trace:   newTrace(solverName, "solve", truncate(problem.ProblemText, 50), "Solution generation failed", started, StatusError),
			},
		}
	}

	solution := parseSolution(response)
	solution.RetrievedSources = rag.SourcesSummary(contexts)
	solution.SymbolicCheck = symbolicResult

	return &SolveOutcome{
		Meta: Meta{
			Success:    true,
			Message:    fmt.Sprintf("Solved with %d steps", len(solution.Steps)),
			Confidence: solution.Confidence,
			Trace: newTrace(solverName, "solve", truncate(problem.ProblemText, 50),
				"Answer: "+truncate(solution.FinalAnswer, 50), started, StatusSuccess),
		},
		Solution: solution,
	}
}

func (s *Solver) buildPrompt(ctx context.Context, problem *ParsedProblem, decision *RoutingDecision, contextStr string, symbolicResult *symbolic.Result) string {
	var b strings.Builder
	b.WriteString("# Math Problem to Solve\n")
	b.WriteString(problem.ProblemText)
	b.WriteString("\n\n")

	if contextStr != "" {
		b.WriteString("# Retrieved Knowledge Base Context\n")
		b.WriteString(contextStr)
		b.WriteString("\n\n")
	}

	if s.similar != nil {
		matches, err := s.similar.FindSimilar(ctx, problem.ProblemText, decision.Topic)
		if err != nil {
			s.logger.Warn("similar-problem lookup failed", zap.Error(err))
		} else if similar := memory.SimilarSolutionsContext(matches); similar != "" {
			b.WriteString("# ")
			b.WriteString(similar)
			b.WriteString("\n")
		}
	}

	if s.hints != nil {
		hints := s.hints.HintsFor(decision.Topic, decision.Subtopic)
		if len(hints.SuggestedMethods) > 0 || len(hints.Tips) > 0 {
			b.WriteString("# Learned Hints\n")
			if len(hints.SuggestedMethods) > 0 {
				b.WriteString("Methods that worked before: " + strings.Join(hints.SuggestedMethods, ", ") + "\n")
			}
			for _, tip := range hints.Tips {
				b.WriteString("- " + tip + "\n")
			}
			b.WriteString("\n")
		}
	}

	if len(decision.Tools) > 0 {
		b.WriteString("# Available Tools\n")
		b.WriteString(strings.Join(decision.Tools, ", "))
		b.WriteString("\n\n")
	}

	if symbolicResult != nil {
		b.WriteString("# Symbolic Computation Result (for verification)\n")
		b.WriteString(strings.Join(symbolicResult.Solutions, ", "))
		b.WriteString("\n\n")
	}

	b.WriteString("Solve this problem step by step using the provided context.")
	return b.String()
}

// parseSolution reads a structured solution, falling back to a single-step
// solution built from the raw text when the response is not valid JSON.
func parseSolution(response string) *Solution {
	var solution Solution
	if extractJSON(response, &solution) && (len(solution.Steps) > 0 || solution.FinalAnswer != "") {
		if solution.Confidence == 0 {
			solution.Confidence = 0.8
		}
		return &solution
	}
	return &Solution{
		Steps:       []SolutionStep{{Step: 1, Description: "Solution", Calculation: response}},
		FinalAnswer: extractAnswer(response),
		Confidence:  0.7,
		Notes:       "Parsed from unstructured response",
	}
}

func containsTool(tools []string, tool string) bool {
	for _, t := range tools {
		if t == tool {
			return true
		}
	}
	return false
}
