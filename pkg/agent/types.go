// Package agent implements the five pipeline stages that turn a raw problem
// statement into a verified, explained answer: parse, route, solve, verify,
// explain. Every stage reports a common outcome shape so the orchestrator
// can treat them uniformly.
package agent

import (
	"time"

	"mathmentor/pkg/rag"
	"mathmentor/pkg/symbolic"
)

// Trace statuses.
const (
	StatusSuccess       = "success"
	StatusError         = "error"
	StatusHITLTriggered = "hitl_triggered"
)

// TraceEntry records one agent action for audit and display.
type TraceEntry struct {
	AgentName     string    `json:"agent_name"`
	Action        string    `json:"action"`
	InputSummary  string    `json:"input_summary"`
	OutputSummary string    `json:"output_summary"`
	Timestamp     time.Time `json:"timestamp"`
	DurationMS    float64   `json:"duration_ms"`
	Status        string    `json:"status"`
}

// Meta is the outcome metadata every stage reports.
type Meta struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	NeedsHITL  bool        `json:"needs_hitl"`
	HITLReason string      `json:"hitl_reason"`
	Confidence float64     `json:"confidence"`
	Trace      *TraceEntry `json:"trace,omitempty"`
}

// ParsedProblem is the structured form of a math problem.
type ParsedProblem struct {
	ProblemText         string   `json:"problem_text"`
	Topic               string   `json:"topic"`
	Subtopic            string   `json:"subtopic"`
	Variables           []string `json:"variables"`
	Constraints         []string `json:"constraints"`
	NeedsClarification  bool     `json:"needs_clarification"`
	ClarificationNeeded string   `json:"clarification_needed"`
	Confidence          float64  `json:"confidence"`
}

// RoutingDecision selects a solving strategy for a parsed problem.
type RoutingDecision struct {
	Strategy   string   `json:"strategy"`
	Tools      []string `json:"tools"`
	Complexity string   `json:"complexity"`
	NeedsRAG   bool     `json:"needs_rag"`
	RAGQuery   string   `json:"rag_query,omitempty"`
	Topic      string   `json:"topic"`
	Subtopic   string   `json:"subtopic"`
}

// SolutionStep is one step of a worked solution.
type SolutionStep struct {
	Step        int    `json:"step"`
	Description string `json:"description"`
	Calculation string `json:"calculation"`
}

// Solution is a worked solution with provenance.
type Solution struct {
	Steps            []SolutionStep      `json:"solution_steps"`
	FinalAnswer      string              `json:"final_answer"`
	FormulasUsed     []string            `json:"formulas_used"`
	Confidence       float64             `json:"confidence"`
	Notes            string              `json:"notes,omitempty"`
	RetrievedSources []rag.SourceSummary `json:"retrieved_sources,omitempty"`
	SymbolicCheck    *symbolic.Result    `json:"symbolic_check,omitempty"`
}

// VerificationCheck is one verifier check over the solution.
type VerificationCheck struct {
	Check  string `json:"check"`
	Passed bool   `json:"passed"`
	Note   string `json:"note,omitempty"`
}

// Verification is the verifier's assessment. IsCorrect is nil when the
// verifier could not reach a verdict.
type Verification struct {
	IsCorrect        *bool               `json:"is_correct"`
	Checks           []VerificationCheck `json:"verification_steps"`
	ErrorsFound      []string            `json:"errors_found"`
	EdgeCasesChecked []string            `json:"edge_cases_checked"`
	Confidence       float64             `json:"confidence"`
	Suggestions      []string            `json:"suggestions"`
	NeedsHumanReview bool                `json:"needs_human_review"`
	ReviewReason     string              `json:"review_reason,omitempty"`
}

// ExplanationStep is one step of a student-facing explanation.
type ExplanationStep struct {
	StepNumber  int    `json:"step_number"`
	Action      string `json:"action"`
	Explanation string `json:"explanation"`
	Calculation string `json:"calculation"`
	Result      string `json:"result"`
}

// Explanation is the student-facing write-up of a verified solution.
type Explanation struct {
	Title           string            `json:"title"`
	Summary         string            `json:"summary"`
	DetailedSteps   []ExplanationStep `json:"detailed_steps"`
	FinalAnswer     string            `json:"final_answer"`
	KeyConcepts     []string          `json:"key_concepts"`
	FormulasApplied []string          `json:"formulas_applied"`
	Tips            []string          `json:"tips"`
	CommonMistakes  []string          `json:"common_mistakes"`
	RelatedProblems []string          `json:"related_problems"`
}

// ParseOutcome is the parser stage result.
type ParseOutcome struct {
	Meta
	Problem *ParsedProblem `json:"problem,omitempty"`
	RawText string         `json:"raw_text"`
}

// RouteOutcome is the router stage result.
type RouteOutcome struct {
	Meta
	Decision *RoutingDecision `json:"decision"`
}

// SolveOutcome is the solver stage result.
type SolveOutcome struct {
	Meta
	Solution *Solution `json:"solution,omitempty"`
}

// VerifyOutcome is the verifier stage result.
type VerifyOutcome struct {
	Meta
	Verification       *Verification `json:"verification"`
	CombinedConfidence float64       `json:"combined_confidence"`
}

// ExplainOutcome is the explainer stage result.
type ExplainOutcome struct {
	Meta
	Explanation *Explanation `json:"explanation"`
	Markdown    string       `json:"markdown"`
}

func newTrace(agentName, action, inputSummary, outputSummary string, started time.Time, status string) *TraceEntry {
	return &TraceEntry{
		AgentName:     agentName,
		Action:        action,
		InputSummary:  inputSummary,
		OutputSummary: outputSummary,
		Timestamp:     time.Now(),
		DurationMS:    float64(time.Since(started).Microseconds()) / 1000,
		Status:        status,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
