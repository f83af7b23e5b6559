package input

import (
	"context"
	"strings"

	"mathmentor/pkg/hitl"
)

// OCRResult is the outcome of extracting text from a problem image.
type OCRResult struct {
	Text        string  `json:"text"`
	Confidence  float64 `json:"confidence"`
	NeedsReview bool    `json:"needs_review"`
}

// OCREngine extracts text from image bytes. Implementations wrap an
// external OCR service or model.
type OCREngine interface {
	ExtractText(ctx context.Context, image []byte) (text string, confidence float64, err error)
}

// ImageHandler runs OCR output through math-notation cleanup and the
// review trigger check.
type ImageHandler struct {
	engine   OCREngine
	triggers *hitl.Manager
}

// NewImageHandler returns an ImageHandler over the given engine.
func NewImageHandler(engine OCREngine, triggers *hitl.Manager) *ImageHandler {
	return &ImageHandler{engine: engine, triggers: triggers}
}

// ProcessImage extracts and cleans text from an image. An engine error
// yields an empty zero-confidence result flagged for review.
func (h *ImageHandler) ProcessImage(ctx context.Context, image []byte) OCRResult {
	text, confidence, err := h.engine.ExtractText(ctx, image)
	if err != nil {
		return OCRResult{NeedsReview: true}
	}

	result := OCRResult{
		Text:       CleanMathText(text),
		Confidence: confidence,
	}
	if trigger := h.triggers.CheckOCR(confidence, result.Text); trigger != nil {
		result.NeedsReview = true
	}
	return result
}

var ocrMathReplacer = strings.NewReplacer(
	"xX", "x",
	"×", "*", "÷", "/",
	"²", "^2", "³", "^3",
	"√", "sqrt",
	"π", "pi", "∞", "infinity",
	"≠", "!=", "≤", "<=", "≥", ">=",
	"∈", "in", "∑", "sum", "∏", "product", "∫", "integral",
	"∂", "d", "Δ", "delta",
	"θ", "theta", "α", "alpha", "β", "beta", "γ", "gamma",
	"λ", "lambda", "μ", "mu", "σ", "sigma", "ω", "omega",
)

// CleanMathText fixes math notation errors common in OCR output.
func CleanMathText(text string) string {
	text = ocrMathReplacer.Replace(text)
	// O/o misreads of zero, unless the text is prose about an equation.
	if !strings.Contains(strings.ToLower(text), "equation") {
		text = strings.ReplaceAll(text, "O", "0")
		text = strings.ReplaceAll(text, "o", "0")
	}
	if strings.Count(text, "l") == 1 {
		text = strings.ReplaceAll(text, "l", "1")
	}
	return strings.TrimSpace(text)
}
