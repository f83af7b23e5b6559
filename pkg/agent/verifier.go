package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"mathmentor/pkg/adapter"
)

const verifierName = "Verifier Agent"

const verifierSystem = `You are a meticulous math solution verifier. Your job is to:

1. Check mathematical correctness of each step
2. Verify the final answer
3. Check for edge cases and domain restrictions
4. Identify any logical errors or missing steps
5. Verify that formulas were applied correctly

Respond in this JSON format:
{
    "is_correct": true/false,
    "verification_steps": [
        {"check": "step 1 verification", "passed": true/false, "note": "..."},
        {"check": "final answer check", "passed": true/false, "note": "..."}
    ],
    "errors_found": ["list of errors if any"],
    "edge_cases_checked": ["what edge cases were verified"],
    "confidence": 0.0-1.0,
    "suggestions": ["improvements if any"],
    "needs_human_review": true/false,
    "review_reason": "why human review is needed (if applicable)"
}`

// Verifier checks a solution's correctness and decides whether it can pass
// the confidence gate or must go to a human.
type Verifier struct {
	llmCaller
	threshold float64
}

// NewVerifier builds the verifier stage with the given combined-confidence
// threshold.
func NewVerifier(a adapter.Adapter, model string, threshold float64, logger *zap.Logger) *Verifier {
	return &Verifier{llmCaller: newLLMCaller(a, model, logger), threshold: threshold}
}

// Execute verifies the solution. The outcome confidence is the mean of the
// solver's and verifier's confidences, clamped to [0, 1].
func (v *Verifier) Execute(ctx context.Context, problemText string, solution *Solution) *VerifyOutcome {
	started := time.Now()

	prompt := buildVerificationPrompt(problemText, solution)
	response, err := v.generate(ctx, verifierName, verifierSystem, prompt)
	if err != nil {
		return &VerifyOutcome{
			Meta: Meta{
				Message:    fmt.Sprintf("Verification error: %v", err),
				NeedsHITL:  true,
				HITLReason: "Verification process failed",
				Trace:      newTrace(verifierName, "verify", truncate(solution.FinalAnswer, 30), fmt.Sprintf("Error: %v", err), started, StatusError),
			},
		}
	}

	verification := parseVerification(response)
	combined := clamp01((solution.Confidence + verification.Confidence) / 2)

	needsHITL := verification.NeedsHumanReview ||
		combined < v.threshold ||
		verification.IsCorrect == nil || !*verification.IsCorrect ||
		len(verification.ErrorsFound) > 0

	hitlReason := ""
	if needsHITL {
		switch {
		case len(verification.ErrorsFound) > 0:
			show := verification.ErrorsFound
			if len(show) > 3 {
				show = show[:3]
			}
			hitlReason = "Errors found: " + strings.Join(show, ", ")
		case verification.ReviewReason != "":
			hitlReason = verification.ReviewReason
		case combined < v.threshold:
			hitlReason = fmt.Sprintf("Low confidence (%.2f)", combined)
		}
	}

	message := "Verified"
	if verification.IsCorrect == nil || !*verification.IsCorrect {
		message = "Issues found"
	}
	status := StatusSuccess
	if needsHITL {
		status = StatusHITLTriggered
	}

	return &VerifyOutcome{
		Meta: Meta{
			Success:    true,
			Message:    message,
			NeedsHITL:  needsHITL,
			HITLReason: hitlReason,
			Confidence: combined,
			Trace: newTrace(verifierName, "verify", "Answer: "+truncate(solution.FinalAnswer, 30),
				fmt.Sprintf("Correct: %s, Confidence: %.2f", verdictString(verification.IsCorrect), combined),
				started, status),
		},
		Verification:       verification,
		CombinedConfidence: combined,
	}
}

func buildVerificationPrompt(problemText string, solution *Solution) string {
	var b strings.Builder
	b.WriteString("# Problem\n")
	b.WriteString(problemText)
	b.WriteString("\n\n# Solution Steps\n")
	for i, s := range solution.Steps {
		step := s.Step
		if step == 0 {
			step = i + 1
		}
		fmt.Fprintf(&b, "Step %d: %s - %s\n", step, s.Description, s.Calculation)
	}
	b.WriteString("\n# Final Answer\n")
	b.WriteString(solution.FinalAnswer)
	b.WriteString("\n\nPlease verify this solution thoroughly. Check each step, the final answer, and consider edge cases or domain restrictions.")
	return b.String()
}

// parseVerification reads a structured verification, then text heuristics,
// then falls back to an uncertain verdict that forces human review.
func parseVerification(response string) *Verification {
	var verification Verification
	verification.Confidence = -1
	if extractJSON(response, &verification) {
		if verification.Confidence < 0 {
			verification.Confidence = 0.5
		}
		return &verification
	}
	if strings.TrimSpace(response) != "" {
		return verificationFromText(response)
	}
	return &Verification{
		Confidence:       0.5,
		NeedsHumanReview: true,
		ReviewReason:     "Could not complete automated verification",
	}
}

func verdictString(isCorrect *bool) string {
	if isCorrect == nil {
		return "unknown"
	}
	return fmt.Sprintf("%t", *isCorrect)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
