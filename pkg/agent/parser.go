package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mathmentor/pkg/adapter"
)

const parserName = "Parser Agent"

const parserSystem = `You are a math problem parser. Your job is to:
1. Clean and correct any OCR or speech recognition errors in the input
2. Identify the mathematical topic and subtopic
3. Extract variables and constraints
4. Determine if any clarification is needed

Topics: algebra, probability, calculus, linear_algebra
Subtopics for algebra: quadratic_equations, polynomials, inequalities, progressions, logarithms
Subtopics for probability: basic_probability, permutations_combinations, distributions
Subtopics for calculus: limits, derivatives, applications, integration
Subtopics for linear_algebra: matrices, determinants, vectors

Respond ONLY with a valid JSON object in this exact format:
{
    "problem_text": "cleaned and corrected problem text",
    "topic": "main topic",
    "subtopic": "specific subtopic",
    "variables": ["x", "y"],
    "constraints": ["x > 0"],
    "needs_clarification": false,
    "clarification_needed": "",
    "confidence": 0.95
}

If the problem is ambiguous or unclear, set needs_clarification to true and explain what needs clarification.`

// Parser converts raw text from any input channel into a structured
// problem, flagging ambiguity for human review.
type Parser struct {
	llmCaller
}

// NewParser builds the parser stage.
func NewParser(a adapter.Adapter, model string, logger *zap.Logger) *Parser {
	return &Parser{llmCaller: newLLMCaller(a, model, logger)}
}

// Execute parses raw input. A parse failure is an unsuccessful outcome; an
// ambiguous parse succeeds but requests human clarification.
func (p *Parser) Execute(ctx context.Context, rawText, inputType string, inputConfidence float64) *ParseOutcome {
	started := time.Now()

	if rawText == "" {
		return &ParseOutcome{
			Meta: Meta{
				Message: "No input text provided",
				Trace:   newTrace(parserName, "parse", "Empty input", "Error: No input", started, StatusError),
			},
		}
	}

	prompt := fmt.Sprintf(`Parse the following math problem:

Input Type: %s
Input Confidence: %g

Problem Text:
%s

Parse this into a structured format. Consider that if the input came from OCR or speech recognition, there may be errors that need correction.`,
		inputType, inputConfidence, rawText)

	response, err := p.generate(ctx, parserName, parserSystem, prompt)
	if err != nil {
		return &ParseOutcome{
			Meta: Meta{
				Message: fmt.Sprintf("Parser error: %v", err),
				Trace:   newTrace(parserName, "parse", truncate(rawText, 50), fmt.Sprintf("Error: %v", err), started, StatusError),
			},
			RawText: rawText,
		}
	}

	problem := &ParsedProblem{
		ProblemText: rawText,
		Topic:       "general",
		Confidence:  0.8,
	}
	if !extractJSON(response, problem) {
		return &ParseOutcome{
			Meta: Meta{
				Message: "Failed to parse problem structure",
				Trace:   newTrace(parserName, "parse", truncate(rawText, 50), "Parse failed", started, StatusError),
			},
			RawText: rawText,
		}
	}
	if problem.ProblemText == "" {
		problem.ProblemText = rawText
	}
	if problem.Topic == "" {
		problem.Topic = "general"
	}

	needsHITL := problem.NeedsClarification || problem.Confidence < 0.6
	status := StatusSuccess
	hitlReason := ""
	if needsHITL {
		status = StatusHITLTriggered
		hitlReason = problem.ClarificationNeeded
	}

	return &ParseOutcome{
		Meta: Meta{
			Success:    true,
			Message:    fmt.Sprintf("Parsed as %s/%s", problem.Topic, problem.Subtopic),
			NeedsHITL:  needsHITL,
			HITLReason: hitlReason,
			Confidence: problem.Confidence,
			Trace: newTrace(parserName, "parse", truncate(rawText, 50),
				fmt.Sprintf("Topic: %s, Confidence: %.2f", problem.Topic, problem.Confidence),
				started, status),
		},
		Problem: problem,
		RawText: rawText,
	}
}
