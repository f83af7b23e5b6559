package symbolic

import (
	"reflect"
	"testing"
)

func TestSolveQuadratic(t *testing.T) {
	s := NewSolver()

	tests := []struct {
		equation string
		want     []string
	}{
		{"x^2 - 5x + 6 = 0", []string{"x = 3", "x = 2"}},
		{"x^2 - 4 = 0", []string{"x = 2", "x = -2"}},
		{"x^2 + 2x + 1 = 0", []string{"x = -1"}},
		{"2x^2 - 8 = 0", []string{"x = 2", "x = -2"}},
		{"x**2 - 9 = 0", []string{"x = 3", "x = -3"}},
	}
	for _, tt := range tests {
		t.Run(tt.equation, func(t *testing.T) {
			got, ok := s.SolveEquation(tt.equation)
			if !ok {
				t.Fatal("expected solvable")
			}
			if !reflect.DeepEqual(got.Solutions, tt.want) {
				t.Errorf("solutions = %v, want %v", got.Solutions, tt.want)
			}
		})
	}
}

func TestSolveLinear(t *testing.T) {
	s := NewSolver()

	got, ok := s.SolveEquation("2y + 3 = 9")
	if !ok {
		t.Fatal("expected solvable")
	}
	if got.Method != "linear" {
		t.Errorf("method = %q", got.Method)
	}
	if len(got.Solutions) != 1 || got.Solutions[0] != "y = 3" {
		t.Errorf("solutions = %v", got.Solutions)
	}
}

func TestSolveComplexRoots(t *testing.T) {
	s := NewSolver()

	got, ok := s.SolveEquation("x^2 + 1 = 0")
	if !ok {
		t.Fatal("expected solvable")
	}
	if len(got.Solutions) != 2 {
		t.Fatalf("solutions = %v", got.Solutions)
	}
	if got.Solutions[0] != "x = 0 + 1i" {
		t.Errorf("first root = %q", got.Solutions[0])
	}
}

func TestSolveUnsupported(t *testing.T) {
	s := NewSolver()

	unsupported := []string{
		"x^3 - 1 = 0",
		"x + y = 2",
		"sin(x) = 0",
		"5 = 5",
		"",
	}
	for _, eq := range unsupported {
		if _, ok := s.SolveEquation(eq); ok {
			t.Errorf("expected %q to be unsupported", eq)
		}
	}
}

func TestSolveImplicitRightSide(t *testing.T) {
	s := NewSolver()

	// Constant on the right is moved over.
	got, ok := s.SolveEquation("x^2 = 16")
	if !ok {
		t.Fatal("expected solvable")
	}
	want := []string{"x = 4", "x = -4"}
	if !reflect.DeepEqual(got.Solutions, want) {
		t.Errorf("solutions = %v, want %v", got.Solutions, want)
	}
}

func TestContainsAnswer(t *testing.T) {
	r := &Result{Solutions: []string{"x = 2", "x = 3"}}

	if !r.ContainsAnswer("x = 2 or x = 3") {
		t.Error("should match")
	}
	if !r.ContainsAnswer("The roots are 2 and 3") {
		t.Error("bare values should match")
	}
	if r.ContainsAnswer("x = 7") {
		t.Error("should not match")
	}
}

func TestFactorial(t *testing.T) {
	got, err := Factorial(5)
	if err != nil {
		t.Fatal(err)
	}
	if got.Int64() != 120 {
		t.Errorf("5! = %s", got)
	}

	got, err = Factorial(0)
	if err != nil {
		t.Fatal(err)
	}
	if got.Int64() != 1 {
		t.Errorf("0! = %s", got)
	}

	if _, err := Factorial(-1); err == nil {
		t.Error("negative factorial should error")
	}

	// Exact beyond int64.
	got, err = Factorial(25)
	if err != nil {
		t.Fatal(err)
	}
	if got.String() != "15511210043330985984000000" {
		t.Errorf("25! = %s", got)
	}
}

func TestCombinationAndPermutation(t *testing.T) {
	c, err := Combination(5, 2)
	if err != nil {
		t.Fatal(err)
	}
	if c.Int64() != 10 {
		t.Errorf("C(5,2) = %s", c)
	}

	p, err := Permutation(5, 2)
	if err != nil {
		t.Fatal(err)
	}
	if p.Int64() != 20 {
		t.Errorf("P(5,2) = %s", p)
	}

	p, err = Permutation(5, 0)
	if err != nil {
		t.Fatal(err)
	}
	if p.Int64() != 1 {
		t.Errorf("P(5,0) = %s", p)
	}

	if _, err := Combination(2, 5); err == nil {
		t.Error("r > n should error")
	}
}
