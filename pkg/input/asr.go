package input

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"mathmentor/pkg/hitl"
)

// ASRResult is the outcome of transcribing a spoken problem.
type ASRResult struct {
	Transcript  string  `json:"transcript"`
	Confidence  float64 `json:"confidence"`
	NeedsReview bool    `json:"needs_review"`
	Language    string  `json:"language"`
}

// ASREngine transcribes audio bytes. Implementations wrap an external
// speech-to-text service or model.
type ASREngine interface {
	Transcribe(ctx context.Context, audio []byte) (transcript, language string, confidence float64, err error)
}

// AudioHandler converts transcripts of spoken math into notation and
// runs the review trigger check.
type AudioHandler struct {
	engine   ASREngine
	triggers *hitl.Manager
}

// NewAudioHandler returns an AudioHandler over the given engine.
func NewAudioHandler(engine ASREngine, triggers *hitl.Manager) *AudioHandler {
	return &AudioHandler{engine: engine, triggers: triggers}
}

// ProcessAudio transcribes audio and converts spoken math phrases. An
// engine error yields an empty zero-confidence result flagged for review.
func (h *AudioHandler) ProcessAudio(ctx context.Context, audio []byte) ASRResult {
	transcript, language, confidence, err := h.engine.Transcribe(ctx, audio)
	if err != nil {
		return ASRResult{NeedsReview: true, Language: "en"}
	}
	if language == "" {
		language = "en"
	}

	result := ASRResult{
		Transcript: ConvertMathPhrases(transcript),
		Confidence: confidence,
		Language:   language,
	}
	if trigger := h.triggers.CheckASR(confidence, result.Transcript); trigger != nil {
		result.NeedsReview = true
	}
	return result
}

var spokenMathPhrases = map[string]string{
	"plus": "+", "minus": "-", "times": "*",
	"multiplied by": "*", "divided by": "/", "over": "/",

	"squared": "^2", "cubed": "^3",
	"to the power of": "^", "raised to": "^", "to the": "^",

	"square root of": "sqrt(", "cube root of": "cbrt(", "root of": "sqrt(",

	"equals": "=", "is equal to": "=",
	"greater than or equal to": ">=", "less than or equal to": "<=",
	"greater than": ">", "less than": "<", "not equal to": "!=",

	"sine of": "sin(", "cosine of": "cos(", "tangent of": "tan(",
	"natural log of": "ln(", "log of": "log(", "absolute value of": "abs(",

	"pi": "π", "infinity": "∞", "e to the": "e^",

	"what is the value of": "find",
	"differentiate":        "d/dx",
	"the derivative of":    "d/dx",
	"integrate":            "∫",
	"the integral of":      "∫",
	"limit as":             "lim",
	"approaches":           "→",
}

var toTheNPattern = regexp.MustCompile(`(\w)\s*\^\s*(\d+)`)

var mathFunctions = []string{"sqrt(", "cbrt(", "sin(", "cos(", "tan(", "log(", "ln(", "abs("}

// ConvertMathPhrases turns spoken math phrases into notation. Longer
// phrases convert first so "to the power of" wins over "to the".
func ConvertMathPhrases(text string) string {
	result := strings.ToLower(text)

	phrases := make([]string, 0, len(spokenMathPhrases))
	for phrase := range spokenMathPhrases {
		phrases = append(phrases, phrase)
	}
	sort.Slice(phrases, func(i, j int) bool {
		if len(phrases[i]) != len(phrases[j]) {
			return len(phrases[i]) > len(phrases[j])
		}
		return phrases[i] < phrases[j]
	})
	for _, phrase := range phrases {
		result = strings.ReplaceAll(result, phrase, spokenMathPhrases[phrase])
	}

	result = toTheNPattern.ReplaceAllString(result, "$1^$2")
	result = strings.Join(strings.Fields(result), " ")

	// Balance parentheses opened by function conversions.
	open := 0
	for _, fn := range mathFunctions {
		open += strings.Count(result, fn)
	}
	if closing := strings.Count(result, ")"); open > closing {
		result += strings.Repeat(")", open-closing)
	}

	return strings.TrimSpace(result)
}
