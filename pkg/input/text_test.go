package input

import (
	"reflect"
	"testing"
)

func TestProcessText(t *testing.T) {
	h := NewTextHandler()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses whitespace", "  What   is  2+2?  ", "What is 2 + 2?"},
		{"unicode exponent", "x² − 4 = 0", "x ^ 2 - 4 = 0"},
		{"double star power", "compute 2**3", "compute 2 ^ 3"},
		{"latex fraction", `Solve $\frac{1}{2}x = 4$`, "Solve (1) / (2)x = 4"},
		{"latex sqrt", `$\sqrt{16} = 4$`, "sqrt(16) = 4"},
		{"latex cdot", `$a \cdot b$`, "a * b"},
		{"latex function command", `Compute $\sin{x}$`, "Compute sin(x)"},
		{"unicode fraction", "½ of 10", "1 / 2 of 10"},
		{"plain text untouched", "hello world", "hello world"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := h.ProcessText(tt.in)
			if got.Text != tt.want {
				t.Errorf("ProcessText(%q) = %q, want %q", tt.in, got.Text, tt.want)
			}
			if got.OriginalText != tt.in {
				t.Errorf("OriginalText = %q, want %q", got.OriginalText, tt.in)
			}
			wantModified := tt.want != tt.in
			if got.WasModified != wantModified {
				t.Errorf("WasModified = %v, want %v", got.WasModified, wantModified)
			}
		})
	}
}

func TestAssess(t *testing.T) {
	h := NewTextHandler()

	tests := []struct {
		in         string
		confidence float64
		reason     string
	}{
		{"Solve 2x + 3 = 9", 1.0, ""},
		{"", 0, "Empty problem statement"},
		{"hi", 0.3, "Problem statement is too short"},
		{"tell me a story", 0.7, "No mathematical content detected"},
	}
	for _, tt := range tests {
		confidence, reason := h.Assess(tt.in)
		if confidence != tt.confidence || reason != tt.reason {
			t.Errorf("Assess(%q) = (%v, %q), want (%v, %q)",
				tt.in, confidence, reason, tt.confidence, tt.reason)
		}
	}
}

func TestExtractVariables(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Solve for x and y where x + y = 10", []string{"x", "y"}},
		{"find the value of n", []string{"n"}},
		{"no variables here", nil},
		{"X^2 = 4", []string{"x"}},
	}
	for _, tt := range tests {
		got := ExtractVariables(tt.in)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ExtractVariables(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDetectProblemType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Find the derivative of x^2", "derivative"},
		{"Integrate x dx", "integral"},
		{"Solve x^2 = 4", "equation"},
		{"What is the probability of rolling a six?", "probability"},
		{"How many ways can you arrange 5 books?", "combination"},
		{"Find the determinant of the matrix", "matrix"},
		{"Tell me about triangles", "general"},
	}
	for _, tt := range tests {
		if got := DetectProblemType(tt.in); got != tt.want {
			t.Errorf("DetectProblemType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
