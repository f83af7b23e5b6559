// Package pipeline coordinates the stage agents: parse, route, solve,
// verify, explain. The orchestrator enforces the confidence gates between
// stages and stops at human-in-the-loop checkpoints.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mathmentor/pkg/agent"
	"mathmentor/pkg/evidence"
	"mathmentor/pkg/hitl"
	"mathmentor/pkg/rag"
)

// Result is the complete outcome of one pipeline run. A run that stops at a
// human checkpoint is still successful; Success is false only for stage
// failures.
type Result struct {
	RunID               string               `json:"run_id"`
	Success             bool                 `json:"success"`
	FinalAnswer         string               `json:"final_answer"`
	Explanation         *agent.Explanation   `json:"explanation,omitempty"`
	ExplanationMarkdown string               `json:"explanation_markdown"`
	Confidence          float64              `json:"confidence"`
	NeedsHITL           bool                 `json:"needs_hitl"`
	HITLReason          string               `json:"hitl_reason"`
	Traces              []agent.TraceEntry   `json:"traces"`
	RetrievedSources    []rag.SourceSummary  `json:"retrieved_sources"`
	ParsedProblem       *agent.ParsedProblem `json:"parsed_problem,omitempty"`
	Solution            *agent.Solution      `json:"solution,omitempty"`
	Verification        *agent.Verification  `json:"verification,omitempty"`
	TotalTimeMS         float64              `json:"total_time_ms"`
}

// TraceSummaryEntry is the compact per-stage view of a run.
type TraceSummaryEntry struct {
	Agent    string `json:"agent"`
	Action   string `json:"action"`
	Status   string `json:"status"`
	Duration string `json:"duration"`
	Summary  string `json:"summary"`
}

// Orchestrator runs the five-stage solving workflow.
type Orchestrator struct {
	parser    *agent.Parser
	router    *agent.Router
	solver    *agent.Solver
	verifier  *agent.Verifier
	explainer *agent.Explainer

	corrections *hitl.CorrectionHandler
	evidenceDir string
	logger      *zap.Logger

	lastTraces []agent.TraceEntry
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithCorrectionHandler records user corrections made at checkpoints.
func WithCorrectionHandler(h *hitl.CorrectionHandler) Option {
	return func(o *Orchestrator) { o.corrections = h }
}

// WithEvidenceDir persists an audit bundle per run under dir.
func WithEvidenceDir(dir string) Option {
	return func(o *Orchestrator) { o.evidenceDir = dir }
}

// WithLogger sets the orchestrator logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// NewOrchestrator wires the stage agents together.
func NewOrchestrator(parser *agent.Parser, router *agent.Router, solver *agent.Solver, verifier *agent.Verifier, explainer *agent.Explainer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		parser:    parser,
		router:    router,
		solver:    solver,
		verifier:  verifier,
		explainer: explainer,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Solve runs the complete workflow on raw input. The run stops early at a
// parse failure, a parse-stage checkpoint, a solve failure, or a
// verification checkpoint.
func (o *Orchestrator) Solve(ctx context.Context, rawInput, inputType string, inputConfidence float64) *Result {
	started := time.Now()
	runID := uuid.NewString()
	var traces []agent.TraceEntry

	o.logger.Info("pipeline run started",
		zap.String("run_id", runID),
		zap.String("input_type", inputType),
		zap.Float64("input_confidence", inputConfidence))

	parseOut := o.parser.Execute(ctx, rawInput, inputType, inputConfidence)
	traces = appendTrace(traces, parseOut.Trace)

	if !parseOut.Success {
		return o.finish(runID, rawInput, inputType, inputConfidence, started, &Result{
			FinalAnswer:         "",
			ExplanationMarkdown: fmt.Sprintf("# Error\n\nFailed to parse input\n\n%s", parseOut.Message),
			NeedsHITL:           true,
			HITLReason:          "Failed to parse input",
			Traces:              traces,
		})
	}

	if parseOut.NeedsHITL {
		return o.finish(runID, rawInput, inputType, inputConfidence, started, &Result{
			Success:       true,
			NeedsHITL:     true,
			HITLReason:    parseOut.HITLReason,
			Confidence:    parseOut.Problem.Confidence,
			Traces:        traces,
			ParsedProblem: parseOut.Problem,
		})
	}

	result := o.solveParsed(ctx, parseOut.Problem, traces)
	return o.finish(runID, rawInput, inputType, inputConfidence, started, result)
}

// SolveWithCorrection re-enters the pipeline at routing after a human
// corrected the parsed problem text. The correction is recorded for
// learning when a handler is configured.
func (o *Orchestrator) SolveWithCorrection(ctx context.Context, correctedText string, original *agent.ParsedProblem) *Result {
	started := time.Now()
	runID := uuid.NewString()

	if o.corrections != nil && original != nil && correctedText != original.ProblemText {
		if _, err := o.corrections.Record(original.ProblemText, correctedText, hitl.CorrectionParse, runID); err != nil {
			o.logger.Warn("failed to record correction", zap.Error(err))
		}
	}

	corrected := &agent.ParsedProblem{}
	if original != nil {
		*corrected = *original
	}
	corrected.ProblemText = correctedText
	corrected.NeedsClarification = false
	corrected.ClarificationNeeded = ""

	result := o.solveParsed(ctx, corrected, nil)
	return o.finish(runID, correctedText, "correction", 1.0, started, result)
}

// solveParsed runs route, solve, verify, explain over a parsed problem.
func (o *Orchestrator) solveParsed(ctx context.Context, problem *agent.ParsedProblem, traces []agent.TraceEntry) *Result {
	routeOut := o.router.Execute(problem)
	traces = appendTrace(traces, routeOut.Trace)

	solveOut := o.solver.Execute(ctx, problem, routeOut.Decision)
	traces = appendTrace(traces, solveOut.Trace)

	if !solveOut.Success {
		return &Result{
			ExplanationMarkdown: fmt.Sprintf("# Error\n\nFailed to solve problem\n\n%s", solveOut.Message),
			NeedsHITL:           true,
			HITLReason:          "Failed to solve problem",
			Traces:              traces,
			ParsedProblem:       problem,
		}
	}

	verifyOut := o.verifier.Execute(ctx, problem.ProblemText, solveOut.Solution)
	traces = appendTrace(traces, verifyOut.Trace)

	if verifyOut.NeedsHITL {
		return &Result{
			Success:             true,
			FinalAnswer:         solveOut.Solution.FinalAnswer,
			ExplanationMarkdown: "# Solution Requires Review\n\nPlease verify the solution.",
			Confidence:          verifyOut.CombinedConfidence,
			NeedsHITL:           true,
			HITLReason:          verifyOut.HITLReason,
			Traces:              traces,
			RetrievedSources:    solveOut.Solution.RetrievedSources,
			ParsedProblem:       problem,
			Solution:            solveOut.Solution,
			Verification:        verifyOut.Verification,
		}
	}

	explainOut := o.explainer.Execute(ctx, problem.ProblemText, solveOut.Solution, problem.Topic, problem.Subtopic)
	traces = appendTrace(traces, explainOut.Trace)

	result := &Result{
		Success:          true,
		FinalAnswer:      solveOut.Solution.FinalAnswer,
		Confidence:       verifyOut.CombinedConfidence,
		Traces:           traces,
		RetrievedSources: solveOut.Solution.RetrievedSources,
		ParsedProblem:    problem,
		Solution:         solveOut.Solution,
		Verification:     verifyOut.Verification,
	}
	if explainOut.Success {
		result.Explanation = explainOut.Explanation
		result.ExplanationMarkdown = explainOut.Markdown
	} else {
		result.ExplanationMarkdown = fmt.Sprintf("# %s\n\n%s", "Solution", solveOut.Solution.FinalAnswer)
	}
	return result
}

// finish stamps run metadata, remembers traces for TraceSummary, logs, and
// persists evidence when configured.
func (o *Orchestrator) finish(runID, rawInput, inputType string, inputConfidence float64, started time.Time, result *Result) *Result {
	result.RunID = runID
	result.TotalTimeMS = float64(time.Since(started).Microseconds()) / 1000
	o.lastTraces = result.Traces

	o.logger.Info("pipeline run finished",
		zap.String("run_id", runID),
		zap.Bool("success", result.Success),
		zap.Bool("needs_hitl", result.NeedsHITL),
		zap.Float64("confidence", result.Confidence),
		zap.Float64("total_time_ms", result.TotalTimeMS))

	if o.evidenceDir != "" {
		if err := o.writeEvidence(runID, rawInput, inputType, inputConfidence, result); err != nil {
			o.logger.Warn("failed to write evidence bundle", zap.Error(err))
		}
	}
	return result
}

func (o *Orchestrator) writeEvidence(runID, rawInput, inputType string, inputConfidence float64, result *Result) error {
	w, err := evidence.NewWriter(o.evidenceDir, runID)
	if err != nil {
		return err
	}
	if err := w.WriteRun(evidence.RunRecord{
		ID:              runID,
		Timestamp:       time.Now(),
		InputType:       inputType,
		InputHash:       evidence.HashInput(rawInput),
		InputConfidence: inputConfidence,
		Success:         result.Success,
		FinalAnswer:     result.FinalAnswer,
		Confidence:      result.Confidence,
		NeedsHITL:       result.NeedsHITL,
		HITLReason:      result.HITLReason,
		TotalTimeMS:     result.TotalTimeMS,
	}); err != nil {
		return err
	}
	for i, t := range result.Traces {
		if err := w.WriteStage(i, evidence.StageRecord{
			Name:           t.AgentName,
			Action:         t.Action,
			InputSummary:   t.InputSummary,
			OutputSummary:  t.OutputSummary,
			Status:         t.Status,
			DurationMillis: t.DurationMS,
		}); err != nil {
			return err
		}
	}
	return nil
}

// TraceSummary returns the compact stage view of the most recent run.
func (o *Orchestrator) TraceSummary() []TraceSummaryEntry {
	summary := make([]TraceSummaryEntry, 0, len(o.lastTraces))
	for _, t := range o.lastTraces {
		summary = append(summary, TraceSummaryEntry{
			Agent:    t.AgentName,
			Action:   t.Action,
			Status:   t.Status,
			Duration: fmt.Sprintf("%.0fms", t.DurationMS),
			Summary:  t.OutputSummary,
		})
	}
	return summary
}

func appendTrace(traces []agent.TraceEntry, t *agent.TraceEntry) []agent.TraceEntry {
	if t == nil {
		return traces
	}
	return append(traces, *t)
}
