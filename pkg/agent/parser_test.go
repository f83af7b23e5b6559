package agent

import (
	"context"
	"errors"
	"testing"

	"mathmentor/pkg/adapter"
)

const parsedQuadraticJSON = `{
	"problem_text": "Solve x^2 - 5x + 6 = 0",
	"topic": "algebra",
	"subtopic": "quadratic_equations",
	"variables": ["x"],
	"constraints": [],
	"needs_clarification": false,
	"clarification_needed": "",
	"confidence": 0.95
}`

func TestParserSuccess(t *testing.T) {
	mock := adapter.NewMockAdapterWithResponses(map[string]string{
		"x^2 - 5x + 6": parsedQuadraticJSON,
	}, "")
	p := NewParser(mock, "mock-1", nil)

	out := p.Execute(context.Background(), "Solve x^2 - 5x + 6 = 0", "text", 1.0)
	if !out.Success {
		t.Fatalf("success = false: %s", out.Message)
	}
	if out.NeedsHITL {
		t.Error("confident parse should not need HITL")
	}
	if out.Problem.Topic != "algebra" || out.Problem.Subtopic != "quadratic_equations" {
		t.Errorf("topic = %s/%s", out.Problem.Topic, out.Problem.Subtopic)
	}
	if out.Trace == nil || out.Trace.Status != StatusSuccess {
		t.Errorf("trace = %+v", out.Trace)
	}
}

func TestParserEmptyInput(t *testing.T) {
	p := NewParser(adapter.NewMockAdapter(), "mock-1", nil)
	out := p.Execute(context.Background(), "", "text", 1.0)
	if out.Success {
		t.Error("empty input must fail")
	}
	if out.Trace == nil || out.Trace.Status != StatusError {
		t.Errorf("trace = %+v", out.Trace)
	}
}

func TestParserAmbiguityTriggersHITL(t *testing.T) {
	mock := adapter.NewMockAdapterWithResponses(map[string]string{
		"ambiguous": `{"problem_text": "solve it", "topic": "algebra", "needs_clarification": true, "clarification_needed": "Which equation?", "confidence": 0.9}`,
	}, "")
	p := NewParser(mock, "mock-1", nil)

	out := p.Execute(context.Background(), "ambiguous thing", "text", 1.0)
	if !out.Success {
		t.Fatal("ambiguity is still a successful parse")
	}
	if !out.NeedsHITL {
		t.Error("needs_clarification must trigger HITL")
	}
	if out.HITLReason != "Which equation?" {
		t.Errorf("reason = %q", out.HITLReason)
	}
	if out.Trace.Status != StatusHITLTriggered {
		t.Errorf("trace status = %q", out.Trace.Status)
	}
}

func TestParserLowConfidenceTriggersHITL(t *testing.T) {
	mock := adapter.NewMockAdapterWithResponses(map[string]string{
		"blurry": `{"problem_text": "solve something", "topic": "algebra", "confidence": 0.4}`,
	}, "")
	p := NewParser(mock, "mock-1", nil)

	out := p.Execute(context.Background(), "blurry scan", "image", 0.5)
	if !out.NeedsHITL {
		t.Error("confidence below 0.6 must trigger HITL")
	}
}

func TestParserUnusableResponse(t *testing.T) {
	mock := adapter.NewMockAdapterWithResponses(nil, "I cannot parse that, sorry.")
	p := NewParser(mock, "mock-1", nil)

	out := p.Execute(context.Background(), "solve x", "text", 1.0)
	if out.Success {
		t.Error("unusable response must fail")
	}
	if out.RawText != "solve x" {
		t.Errorf("raw text = %q", out.RawText)
	}
}

func TestParserAdapterFailure(t *testing.T) {
	mock := adapter.NewMockAdapter()
	mock.FailWith(errors.New("rate limited"))
	p := NewParser(mock, "mock-1", nil)

	out := p.Execute(context.Background(), "solve x", "text", 1.0)
	if out.Success {
		t.Error("adapter failure must fail")
	}
	if out.Trace.Status != StatusError {
		t.Errorf("trace status = %q", out.Trace.Status)
	}
}
