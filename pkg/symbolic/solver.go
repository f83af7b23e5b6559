// Package symbolic provides deterministic math utilities used to
// cross-check model-produced solutions: a polynomial equation solver for
// linear and quadratic equations, and exact combinatorics helpers.
package symbolic

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Result is the outcome of a symbolic cross-check.
type Result struct {
	Solutions []string `json:"solutions"`
	Method    string   `json:"method"`
}

// Solver solves single-variable polynomial equations up to degree two.
// Anything it cannot parse is reported as unsupported rather than wrong.
type Solver struct{}

// NewSolver returns a Solver.
func NewSolver() *Solver {
	return &Solver{}
}

var termPattern = regexp.MustCompile(`^([+-]?\d*\.?\d*)([a-zA-Z]?)(?:\^(\d+))?$`)

// SolveEquation solves equations like "x^2 - 5x + 6 = 0" or "2y + 3 = 9".
// It returns ok=false when the equation is outside the supported form.
func (s *Solver) SolveEquation(equation string) (*Result, bool) {
	left, right := splitEquation(equation)
	if left == "" {
		return nil, false
	}

	coefs := make(map[int]float64)
	variable := ""
	if !accumulate(left, 1, coefs, &variable) {
		return nil, false
	}
	if right != "" && !accumulate(right, -1, coefs, &variable) {
		return nil, false
	}
	if variable == "" {
		return nil, false
	}

	a, b, c := coefs[2], coefs[1], coefs[0]
	switch {
	case a == 0 && b == 0:
		return nil, false
	case a == 0:
		return &Result{
			Solutions: []string{fmt.Sprintf("%s = %s", variable, formatNumber(-c / b))},
			Method:    "linear",
		}, true
	default:
		return solveQuadratic(a, b, c, variable)
	}
}

func solveQuadratic(a, b, c float64, variable string) (*Result, bool) {
	disc := b*b - 4*a*c
	switch {
	case disc < 0:
		re := -b / (2 * a)
		im := math.Sqrt(-disc) / (2 * a)
		return &Result{
			Solutions: []string{
				fmt.Sprintf("%s = %s + %si", variable, formatNumber(re), formatNumber(im)),
				fmt.Sprintf("%s = %s - %si", variable, formatNumber(re), formatNumber(im)),
			},
			Method: "quadratic formula (complex roots)",
		}, true
	case disc == 0:
		return &Result{
			Solutions: []string{fmt.Sprintf("%s = %s", variable, formatNumber(-b/(2*a)))},
			Method:    "quadratic formula (repeated root)",
		}, true
	default:
		sq := math.Sqrt(disc)
		r1 := (-b + sq) / (2 * a)
		r2 := (-b - sq) / (2 * a)
		if r1 < r2 {
			r1, r2 = r2, r1
		}
		return &Result{
			Solutions: []string{
				fmt.Sprintf("%s = %s", variable, formatNumber(r1)),
				fmt.Sprintf("%s = %s", variable, formatNumber(r2)),
			},
			Method: "quadratic formula",
		}, true
	}
}

// ContainsAnswer reports whether any symbolic solution value appears in the
// model's answer text. Used as a soft consistency signal, not a verdict.
func (r *Result) ContainsAnswer(answer string) bool {
	normalized := strings.ReplaceAll(answer, " ", "")
	for _, sol := range r.Solutions {
		parts := strings.SplitN(sol, "=", 2)
		if len(parts) != 2 {
			continue
		}
		value := strings.ReplaceAll(parts[1], " ", "")
		if strings.Contains(normalized, value) {
			return true
		}
	}
	return false
}

func splitEquation(equation string) (left, right string) {
	eq := cleanExpression(equation)
	if idx := strings.Index(eq, "="); idx >= 0 {
		return eq[:idx], eq[idx+1:]
	}
	return eq, ""
}

func cleanExpression(expr string) string {
	replacer := strings.NewReplacer("×", "*", "÷", "/", "**", "^", " ", "", "*", "")
	return replacer.Replace(expr)
}

// accumulate parses one side of an equation and adds sign*coefficient per
// power into coefs. Returns false on any unparseable term.
func accumulate(side string, sign float64, coefs map[int]float64, variable *string) bool {
	terms := splitTerms(side)
	if len(terms) == 0 {
		return false
	}
	for _, term := range terms {
		m := termPattern.FindStringSubmatch(term)
		if m == nil {
			return false
		}
		coefStr, varName, powStr := m[1], m[2], m[3]

		power := 0
		if varName != "" {
			power = 1
			if *variable == "" {
				*variable = varName
			} else if *variable != varName {
				return false
			}
			if powStr != "" {
				p, err := strconv.Atoi(powStr)
				if err != nil || p > 2 {
					return false
				}
				power = p
			}
		} else if powStr != "" {
			return false
		}

		coef := 1.0
		switch coefStr {
		case "", "+":
		case "-":
			coef = -1
		default:
			c, err := strconv.ParseFloat(coefStr, 64)
			if err != nil {
				return false
			}
			coef = c
		}
		if varName == "" && (coefStr == "" || coefStr == "+" || coefStr == "-") {
			return false
		}

		coefs[power] += sign * coef
	}
	return true
}

func splitTerms(side string) []string {
	var terms []string
	start := 0
	for i, r := range side {
		if i > 0 && (r == '+' || r == '-') {
			terms = append(terms, side[start:i])
			start = i
		}
	}
	if start < len(side) {
		terms = append(terms, side[start:])
	}
	return terms
}

func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}
