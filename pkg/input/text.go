// Package input normalizes problem statements arriving from different
// channels. Text input is cleaned deterministically; image and audio
// channels are capability interfaces whose confidence scores feed the
// human-in-the-loop checks.
package input

import (
	"regexp"
	"strings"
)

// TextResult is the outcome of text normalization.
type TextResult struct {
	Text         string `json:"text"`
	OriginalText string `json:"original_text"`
	WasModified  bool   `json:"was_modified"`
}

// TextHandler normalizes direct text input for the parser.
type TextHandler struct{}

// NewTextHandler returns a TextHandler.
func NewTextHandler() *TextHandler {
	return &TextHandler{}
}

var (
	latexIndicators = []*regexp.Regexp{
		regexp.MustCompile(`\$.*\$`),
		regexp.MustCompile(`\\\(.*\\\)`),
		regexp.MustCompile(`\\\[.*\\\]`),
		regexp.MustCompile(`\\frac|\\sqrt|\\sum|\\int|\\lim|\\begin\{`),
	}

	latexDelimiters = regexp.MustCompile(`\$\$?|\\\[|\\\]|\\\(|\\\)`)
	latexFrac       = regexp.MustCompile(`\\frac\{([^}]+)\}\{([^}]+)\}`)
	latexSqrt       = regexp.MustCompile(`\\sqrt\{([^}]+)\}`)
	latexCommand    = regexp.MustCompile(`\\([a-zA-Z]+)`)
	doubleStarPow   = regexp.MustCompile(`(\d+)\s*\*\*\s*(\d+)`)
	operatorSpacing = regexp.MustCompile(`\s*([+\-*/^=<>])\s*`)
)

var latexSymbols = strings.NewReplacer(
	`\infty`, "∞", `\pi`, "π", `\theta`, "θ", `\alpha`, "α", `\beta`, "β",
	`\lambda`, "λ", `\sigma`, "σ", `\cdot`, "*", `\times`, "*", `\div`, "/",
	`\pm`, "±", `\leq`, "≤", `\geq`, "≥", `\neq`, "≠", `\approx`, "≈",
	`\rightarrow`, "→", `\to`, "→",
)

var unicodeMath = strings.NewReplacer(
	"×", "*", "÷", "/", "−", "-", "—", "-",
	"²", "^2", "³", "^3", "⁴", "^4", "⁵", "^5",
	"√", "sqrt", "½", "1/2", "⅓", "1/3", "¼", "1/4", "¾", "3/4", "⅔", "2/3",
)

// ProcessText normalizes whitespace, LaTeX notation, and math symbols.
func (h *TextHandler) ProcessText(text string) TextResult {
	original := text
	processed := strings.Join(strings.Fields(text), " ")

	if containsLatex(processed) {
		processed = normalizeLatex(processed)
	}
	processed = normalizeMath(processed)
	processed = strings.TrimSpace(processed)

	return TextResult{
		Text:         processed,
		OriginalText: original,
		WasModified:  processed != original,
	}
}

func containsLatex(text string) bool {
	for _, p := range latexIndicators {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func normalizeLatex(text string) string {
	text = latexDelimiters.ReplaceAllString(text, "")
	text = latexFrac.ReplaceAllString(text, "($1)/($2)")
	text = latexSqrt.ReplaceAllString(text, "sqrt($1)")
	text = latexSymbols.Replace(text)
	// Strip remaining command backslashes (\sin -> sin).
	text = latexCommand.ReplaceAllString(text, "$1")
	text = strings.ReplaceAll(text, "{", "(")
	text = strings.ReplaceAll(text, "}", ")")
	return text
}

func normalizeMath(text string) string {
	text = unicodeMath.Replace(text)
	text = doubleStarPow.ReplaceAllString(text, "$1^$2")
	text = operatorSpacing.ReplaceAllString(text, " $1 ")
	return strings.Join(strings.Fields(text), " ")
}

var mathSignal = regexp.MustCompile(`[0-9+\-*/^=<>()]|sqrt|frac|solve|find|calculate|integral|derivative|limit|probability`)

// Assess scores how confidently the text can be treated as a math
// problem. Text input is trusted far more than OCR or transcription;
// the score only drops when the statement looks degenerate.
func (h *TextHandler) Assess(text string) (confidence float64, reason string) {
	trimmed := strings.TrimSpace(text)
	switch {
	case trimmed == "":
		return 0, "Empty problem statement"
	case len(trimmed) < 3:
		return 0.3, "Problem statement is too short"
	case !mathSignal.MatchString(strings.ToLower(trimmed)):
		return 0.7, "No mathematical content detected"
	default:
		return 1.0, ""
	}
}

var singleLetterWord = regexp.MustCompile(`\b[a-zA-Z]\b`)

const commonVariables = "xyzabcnmhkpqrst"

// ExtractVariables returns likely variable names, in first-seen order.
func ExtractVariables(text string) []string {
	seen := make(map[string]bool)
	var vars []string
	for _, w := range singleLetterWord.FindAllString(strings.ToLower(text), -1) {
		if strings.Contains(commonVariables, w) && !seen[w] {
			seen[w] = true
			vars = append(vars, w)
		}
	}
	return vars
}

var problemTypeKeywords = []struct {
	kind     string
	keywords []string
}{
	{"derivative", []string{"derivative", "differentiate", "d/dx", "dy/dx", "f'"}},
	{"integral", []string{"integral", "integrate", "∫", "antiderivative"}},
	{"limit", []string{"limit", "lim", "approaches", "→"}},
	{"equation", []string{"solve", "find x", "find y", "roots", "solutions", "= 0"}},
	{"quadratic", []string{"quadratic", "x^2", "x²", "parabola"}},
	{"probability", []string{"probability", "chance", "likely", "odds", "dice", "cards", "coin"}},
	{"combination", []string{"combination", "permutation", "choose", "arrange", "ways"}},
	{"matrix", []string{"matrix", "matrices", "determinant", "inverse"}},
	{"vector", []string{"vector", "dot product", "cross product", "magnitude"}},
	{"optimization", []string{"maximum", "minimum", "optimize", "max", "min"}},
}

// DetectProblemType classifies a problem by keyword, first match wins.
func DetectProblemType(text string) string {
	lower := strings.ToLower(text)
	for _, entry := range problemTypeKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.kind
			}
		}
	}
	return "general"
}
