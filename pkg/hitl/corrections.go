package hitl

import (
	"regexp"
	"strings"
	"sync"
	"time"
)

// Correction types.
const (
	CorrectionOCR      = "ocr"
	CorrectionASR      = "asr"
	CorrectionParse    = "parse"
	CorrectionSolution = "solution"
	CorrectionOther    = "other"
)

// Correction is one user-made fix to machine output.
type Correction struct {
	OriginalText   string    `json:"original_text"`
	CorrectedText  string    `json:"corrected_text"`
	CorrectionType string    `json:"correction_type"`
	Timestamp      time.Time `json:"timestamp"`
	ProblemID      string    `json:"problem_id"`
}

// CorrectionStats summarizes recorded corrections.
type CorrectionStats struct {
	TotalCorrections int            `json:"total_corrections"`
	ByType           map[string]int `json:"by_type"`
	LearnedPatterns  int            `json:"learned_patterns"`
}

// CorrectionSink receives corrections for durable storage. The memory store
// satisfies this.
type CorrectionSink interface {
	SaveCorrection(original, corrected, correctionType string) error
}

// CorrectionHandler records user corrections, learns short substitution
// patterns from them, and applies learned patterns to new input.
type CorrectionHandler struct {
	mu          sync.Mutex
	corrections []Correction
	patterns    map[string]string
	sink        CorrectionSink
}

// NewCorrectionHandler builds a handler. Sink may be nil for in-memory use.
func NewCorrectionHandler(sink CorrectionSink) *CorrectionHandler {
	return &CorrectionHandler{
		patterns: make(map[string]string),
		sink:     sink,
	}
}

// Record stores a correction and, when both sides are short enough to be a
// substitution pattern, learns it for future application.
func (h *CorrectionHandler) Record(original, corrected, correctionType, problemID string) (Correction, error) {
	c := Correction{
		OriginalText:   original,
		CorrectedText:  corrected,
		CorrectionType: correctionType,
		Timestamp:      time.Now(),
		ProblemID:      problemID,
	}

	h.mu.Lock()
	h.corrections = append(h.corrections, c)
	if len(original) < 50 && len(corrected) < 50 {
		h.patterns[patternKey(correctionType, original)] = corrected
	}
	h.mu.Unlock()

	if h.sink != nil {
		if err := h.sink.SaveCorrection(original, corrected, correctionType); err != nil {
			return c, err
		}
	}
	return c, nil
}

// ApplyKnown applies learned patterns of the given type to text,
// replacing case-insensitively.
func (h *CorrectionHandler) ApplyKnown(text, correctionType string) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	prefix := correctionType + ":"
	result := text
	for key, corrected := range h.patterns {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		pattern := strings.TrimPrefix(key, prefix)
		if !strings.Contains(strings.ToLower(result), pattern) {
			continue
		}
		re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(pattern))
		if err != nil {
			continue
		}
		result = re.ReplaceAllString(result, corrected)
	}
	return result
}

// CorrectionsForType returns recorded corrections of one type.
func (h *CorrectionHandler) CorrectionsForType(correctionType string) []Correction {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []Correction
	for _, c := range h.corrections {
		if c.CorrectionType == correctionType {
			out = append(out, c)
		}
	}
	return out
}

// Stats reports correction counts.
func (h *CorrectionHandler) Stats() CorrectionStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := CorrectionStats{
		TotalCorrections: len(h.corrections),
		ByType:           make(map[string]int),
		LearnedPatterns:  len(h.patterns),
	}
	for _, c := range h.corrections {
		stats.ByType[c.CorrectionType]++
	}
	return stats
}

func patternKey(correctionType, original string) string {
	return correctionType + ":" + strings.ToLower(original)
}
