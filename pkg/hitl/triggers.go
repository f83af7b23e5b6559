// Package hitl decides when a pipeline result needs a human in the loop,
// and records the corrections humans make so the system learns from them.
package hitl

import "fmt"

// TriggerType classifies why human intervention was requested.
type TriggerType string

const (
	TriggerOCRLowConfidence    TriggerType = "ocr_low_confidence"
	TriggerASRLowConfidence    TriggerType = "asr_low_confidence"
	TriggerParserAmbiguity     TriggerType = "parser_ambiguity"
	TriggerVerifierUncertainty TriggerType = "verifier_uncertainty"
	TriggerUserRequested       TriggerType = "user_requested"
	TriggerSolutionError       TriggerType = "solution_error"
)

// Trigger is one human-intervention event. RequiresEdit means the user
// should correct content; RequiresApproval means the user should accept or
// reject a result.
type Trigger struct {
	Type             TriggerType    `json:"trigger_type"`
	Reason           string         `json:"reason"`
	Confidence       float64        `json:"confidence"`
	Data             map[string]any `json:"data,omitempty"`
	RequiresEdit     bool           `json:"requires_edit"`
	RequiresApproval bool           `json:"requires_approval"`
	SuggestedAction  string         `json:"suggested_action"`
}

// Manager evaluates stage results against confidence thresholds.
type Manager struct {
	ocrThreshold      float64
	asrThreshold      float64
	verifierThreshold float64
}

// NewManager builds a trigger manager with the given thresholds.
func NewManager(ocrThreshold, asrThreshold, verifierThreshold float64) *Manager {
	return &Manager{
		ocrThreshold:      ocrThreshold,
		asrThreshold:      asrThreshold,
		verifierThreshold: verifierThreshold,
	}
}

// CheckOCR returns a trigger when OCR confidence falls below threshold.
func (m *Manager) CheckOCR(confidence float64, extractedText string) *Trigger {
	if confidence >= m.ocrThreshold {
		return nil
	}
	return &Trigger{
		Type:            TriggerOCRLowConfidence,
		Reason:          fmt.Sprintf("OCR confidence (%.0f%%) is below threshold (%.0f%%)", confidence*100, m.ocrThreshold*100),
		Confidence:      confidence,
		Data:            map[string]any{"extracted_text": extractedText},
		RequiresEdit:    true,
		SuggestedAction: "Please review and correct the extracted text if needed",
	}
}

// CheckASR returns a trigger when speech recognition confidence falls below
// threshold.
func (m *Manager) CheckASR(confidence float64, transcript string) *Trigger {
	if confidence >= m.asrThreshold {
		return nil
	}
	return &Trigger{
		Type:            TriggerASRLowConfidence,
		Reason:          fmt.Sprintf("Speech recognition confidence (%.0f%%) is below threshold (%.0f%%)", confidence*100, m.asrThreshold*100),
		Confidence:      confidence,
		Data:            map[string]any{"transcript": transcript},
		RequiresEdit:    true,
		SuggestedAction: "Please review and correct the transcript if needed",
	}
}

// CheckParser returns a trigger when the parser flagged ambiguity or its
// confidence is below 0.6.
func (m *Manager) CheckParser(needsClarification bool, clarificationNeeded string, confidence float64) *Trigger {
	if !needsClarification && confidence >= 0.6 {
		return nil
	}
	reason := clarificationNeeded
	if reason == "" {
		reason = "Problem statement is ambiguous"
	}
	return &Trigger{
		Type:            TriggerParserAmbiguity,
		Reason:          reason,
		Confidence:      confidence,
		Data:            map[string]any{"clarification_needed": clarificationNeeded},
		RequiresEdit:    true,
		SuggestedAction: "Please clarify the problem statement",
	}
}

// CheckVerifier returns a trigger when the solution is not confirmed
// correct, confidence is below threshold, or errors were found.
func (m *Manager) CheckVerifier(isCorrect bool, confidence float64, errors []string) *Trigger {
	if isCorrect && confidence >= m.verifierThreshold && len(errors) == 0 {
		return nil
	}
	summary := "Uncertain about correctness"
	if len(errors) > 0 {
		show := errors
		if len(show) > 3 {
			show = show[:3]
		}
		summary = ""
		for i, e := range show {
			if i > 0 {
				summary += "; "
			}
			summary += e
		}
	}
	return &Trigger{
		Type:             TriggerVerifierUncertainty,
		Reason:           "Solution verification uncertain: " + summary,
		Confidence:       confidence,
		Data:             map[string]any{"is_correct": isCorrect, "errors": errors},
		RequiresApproval: true,
		SuggestedAction:  "Please review the solution and verify correctness",
	}
}

// UserTrigger builds a trigger for an explicit user review request.
func (m *Manager) UserTrigger() *Trigger {
	return &Trigger{
		Type:             TriggerUserRequested,
		Reason:           "User requested manual review",
		RequiresEdit:     true,
		RequiresApproval: true,
		SuggestedAction:  "Please review and make any necessary corrections",
	}
}
