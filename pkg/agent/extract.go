package agent

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var jsonBlockPattern = regexp.MustCompile(`\{[\s\S]*\}`)

// extractJSON unmarshals a model response into v, tolerating surrounding
// prose and markdown fences. Returns false when no usable JSON was found.
func extractJSON(response string, v any) bool {
	trimmed := strings.TrimSpace(response)
	if err := json.Unmarshal([]byte(trimmed), v); err == nil {
		return true
	}
	if block := jsonBlockPattern.FindString(trimmed); block != "" {
		if err := json.Unmarshal([]byte(block), v); err == nil {
			return true
		}
	}
	return false
}

var (
	answerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:answer|result|solution)\s*[:=]\s*(.+?)(?:\n|$)`),
		regexp.MustCompile(`(?:x|y|z)\s*=\s*(.+?)(?:\n|$)`),
		regexp.MustCompile(`(?:therefore|thus|hence)\s*[:,]?\s*(.+?)(?:\n|$)`),
	}
	confidencePattern = regexp.MustCompile(`confidence[:\s]+(\d+\.?\d*)`)
	errorWords        = []string{"incorrect", "wrong", "error", "mistake", "false"}
)

// extractAnswer pulls a final answer out of unstructured solution text.
// Falls back to the last non-empty line.
func extractAnswer(text string) string {
	lower := strings.ToLower(text)
	for _, p := range answerPatterns {
		if m := p.FindStringSubmatch(lower); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// verificationFromText is the last-resort reading of an unstructured
// verifier response: any error word makes the verdict negative, and an
// explicit numeric confidence is honored when present.
func verificationFromText(text string) *Verification {
	lower := strings.ToLower(text)

	correct := true
	for _, word := range errorWords {
		if strings.Contains(lower, word) {
			correct = false
			break
		}
	}

	confidence := 0.7
	if m := confidencePattern.FindStringSubmatch(lower); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			if v > 1 {
				v /= 100
			}
			confidence = v
		}
	}

	return &Verification{
		IsCorrect:        &correct,
		Confidence:       confidence,
		NeedsHumanReview: !correct,
		ReviewReason:     "Parsed from unstructured response",
	}
}
