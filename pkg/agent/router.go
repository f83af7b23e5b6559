package agent

import (
	"fmt"
	"strings"
	"time"
)

const routerName = "Intent Router Agent"

// Routing is deterministic: a static strategy table keyed by topic and
// subtopic, with per-topic defaults and a general fallback.
var routingStrategies = map[string]map[string]string{
	"algebra": {
		"quadratic_equations": "algebraic_solver",
		"polynomials":         "algebraic_solver",
		"inequalities":        "algebraic_solver",
		"progressions":        "formula_based_solver",
		"logarithms":          "algebraic_solver",
	},
	"probability": {
		"basic_probability":         "probability_solver",
		"permutations_combinations": "combinatorics_solver",
		"distributions":             "probability_solver",
	},
	"calculus": {
		"limits":       "calculus_solver",
		"derivatives":  "calculus_solver",
		"applications": "optimization_solver",
		"integration":  "calculus_solver",
	},
	"linear_algebra": {
		"matrices":     "matrix_solver",
		"determinants": "matrix_solver",
		"vectors":      "vector_solver",
	},
}

var topicDefaults = map[string]string{
	"algebra":        "algebraic_solver",
	"probability":    "probability_solver",
	"calculus":       "calculus_solver",
	"linear_algebra": "matrix_solver",
}

var strategyTools = map[string][]string{
	"algebraic_solver":     {"sympy", "quadratic_formula", "factoring"},
	"formula_based_solver": {"formula_lookup", "calculator"},
	"probability_solver":   {"probability_rules", "calculator"},
	"combinatorics_solver": {"factorial", "combinations", "permutations"},
	"calculus_solver":      {"sympy", "differentiation", "integration"},
	"optimization_solver":  {"sympy", "critical_points", "second_derivative_test"},
	"matrix_solver":        {"numpy", "matrix_operations"},
	"vector_solver":        {"numpy", "vector_operations"},
}

var advancedKeywords = []string{
	"prove", "derive", "show that", "if and only if",
	"eigenvalue", "eigenvector", "taylor series",
	"multiple variables", "partial derivative", "triple integral",
	"optimization with constraints",
}

var intermediateKeywords = []string{
	"implicit", "parametric", "integration by parts",
	"bayes", "conditional probability",
	"system of equations", "determinant",
	"chain rule", "quotient rule",
}

var formulaHeavyTopics = map[string]bool{
	"probability":    true,
	"calculus":       true,
	"linear_algebra": true,
}

// Router selects a solving strategy, toolset, and retrieval plan for a
// parsed problem. It never calls a model and never fails.
type Router struct{}

// NewRouter builds the router stage.
func NewRouter() *Router {
	return &Router{}
}

// Execute routes the parsed problem.
func (r *Router) Execute(problem *ParsedProblem) *RouteOutcome {
	started := time.Now()

	strategy := determineStrategy(problem.Topic, problem.Subtopic)
	tools, ok := strategyTools[strategy]
	if !ok {
		tools = []string{"calculator"}
	}
	complexity := assessComplexity(problem.ProblemText)
	needsRAG := needsRAGContext(problem.Topic, complexity)

	decision := &RoutingDecision{
		Strategy:   strategy,
		Tools:      tools,
		Complexity: complexity,
		NeedsRAG:   needsRAG,
		Topic:      problem.Topic,
		Subtopic:   problem.Subtopic,
	}
	if needsRAG {
		decision.RAGQuery = buildRAGQuery(problem.Topic, problem.Subtopic, problem.ProblemText)
	}

	return &RouteOutcome{
		Meta: Meta{
			Success:    true,
			Message:    fmt.Sprintf("Routed to %s with complexity %s", strategy, complexity),
			Confidence: 0.95,
			Trace: newTrace(routerName, "route",
				fmt.Sprintf("Topic: %s/%s", problem.Topic, problem.Subtopic),
				fmt.Sprintf("Strategy: %s, Tools: %d, RAG: %t", strategy, len(tools), needsRAG),
				started, StatusSuccess),
		},
		Decision: decision,
	}
}

func determineStrategy(topic, subtopic string) string {
	if subtopics, ok := routingStrategies[topic]; ok {
		if strategy, ok := subtopics[subtopic]; ok {
			return strategy
		}
	}
	if strategy, ok := topicDefaults[topic]; ok {
		return strategy
	}
	return "general_solver"
}

func assessComplexity(problemText string) string {
	lower := strings.ToLower(problemText)
	for _, kw := range advancedKeywords {
		if strings.Contains(lower, kw) {
			return "advanced"
		}
	}
	for _, kw := range intermediateKeywords {
		if strings.Contains(lower, kw) {
			return "intermediate"
		}
	}
	return "basic"
}

func needsRAGContext(topic, complexity string) bool {
	if complexity == "intermediate" || complexity == "advanced" {
		return true
	}
	return formulaHeavyTopics[topic]
}

func buildRAGQuery(topic, subtopic, problemText string) string {
	var parts []string
	if topic != "" {
		parts = append(parts, topic)
	}
	if subtopic != "" {
		parts = append(parts, subtopic)
	}
	text := problemText
	if len(text) > 200 {
		text = text[:200]
	}
	parts = append(parts, text)
	return strings.Join(parts, " ")
}
