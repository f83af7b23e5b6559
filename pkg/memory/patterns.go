package memory

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

var (
	equationPattern = regexp.MustCompile(`[a-zA-Z]\s*=\s*[^,\n]+`)
	latexPattern    = regexp.MustCompile(`\$\$?[^$]+\$\$?`)
)

// knownMethods are solving techniques recognized in solution text.
var knownMethods = []string{
	"quadratic formula",
	"factoring",
	"completing the square",
	"substitution",
	"integration by parts",
	"u-substitution",
	"chain rule",
	"product rule",
	"quotient rule",
	"l'hopital's rule",
	"bayes theorem",
	"binomial distribution",
	"matrix multiplication",
	"cramer's rule",
	"gaussian elimination",
}

// TopicPatterns holds the most common formulas and methods learned for a
// topic or topic/subtopic.
type TopicPatterns struct {
	Formulas []string `json:"formulas"`
	Methods  []string `json:"methods"`
}

// SolutionHints bundles pattern-derived guidance for the solver.
type SolutionHints struct {
	SuggestedMethods []string `json:"suggested_methods"`
	RelevantFormulas []string `json:"relevant_formulas"`
	Tips             []string `json:"tips"`
}

// PatternStats summarizes what the learner currently knows.
type PatternStats struct {
	TopicsWithPatterns int `json:"topics_with_patterns"`
	TotalFormulas      int `json:"total_formulas"`
	TotalMethods       int `json:"total_methods"`
	CorrectionPatterns int `json:"correction_patterns"`
}

// PatternLearner mines user-confirmed solutions for recurring formulas and
// methods, keyed by topic/subtopic. Learning is incremental and idempotent
// per LearnFromMemory call.
type PatternLearner struct {
	store *Store

	mu          sync.Mutex
	formulas    map[string][]string
	methods     map[string][]string
	corrections map[string]string
}

// NewPatternLearner builds a learner over the memory store.
func NewPatternLearner(store *Store) *PatternLearner {
	return &PatternLearner{
		store:       store,
		formulas:    make(map[string][]string),
		methods:     make(map[string][]string),
		corrections: make(map[string]string),
	}
}

// LearnFromMemory rebuilds the pattern cache from stored correct solutions
// and learned corrections.
func (p *PatternLearner) LearnFromMemory() error {
	correct, err := p.store.CorrectSolutions(200)
	if err != nil {
		return err
	}
	corrections, err := p.store.Corrections("")
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.formulas = make(map[string][]string)
	p.methods = make(map[string][]string)
	for _, problem := range correct {
		p.learnFromProblem(problem)
	}
	p.corrections = corrections
	return nil
}

func (p *PatternLearner) learnFromProblem(problem *ProblemMemory) {
	key := problem.Topic + "/" + problem.Subtopic
	p.formulas[key] = append(p.formulas[key], extractFormulas(problem.Solution)...)
	if method := extractMethod(problem.Solution); method != "" {
		p.methods[key] = append(p.methods[key], method)
	}
}

func extractFormulas(solution string) []string {
	var formulas []string
	formulas = append(formulas, equationPattern.FindAllString(solution, -1)...)
	formulas = append(formulas, latexPattern.FindAllString(solution, -1)...)
	return formulas
}

func extractMethod(solution string) string {
	lower := strings.ToLower(solution)
	for _, method := range knownMethods {
		if strings.Contains(lower, method) {
			return method
		}
	}
	return ""
}

// PatternsForTopic returns the most common formulas (top 5) and methods
// (top 3) for a topic, including topic-level patterns when a subtopic is
// given.
func (p *PatternLearner) PatternsForTopic(topic, subtopic string) TopicPatterns {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := topic
	if subtopic != "" {
		key = topic + "/" + subtopic
	}

	formulas := append([]string(nil), p.formulas[key]...)
	methods := append([]string(nil), p.methods[key]...)

	if subtopic != "" {
		prefix := topic + "/"
		for k, v := range p.formulas {
			if k != key && strings.HasPrefix(k, prefix) {
				formulas = append(formulas, v...)
			}
		}
		for k, v := range p.methods {
			if k != key && strings.HasPrefix(k, prefix) {
				methods = append(methods, v...)
			}
		}
	}

	return TopicPatterns{
		Formulas: mostCommon(formulas, 5),
		Methods:  mostCommon(methods, 3),
	}
}

// ApplyCorrections rewrites text using learned correction patterns.
func (p *PatternLearner) ApplyCorrections(text string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Deterministic application order.
	originals := make([]string, 0, len(p.corrections))
	for original := range p.corrections {
		originals = append(originals, original)
	}
	sort.Strings(originals)

	result := text
	for _, original := range originals {
		if strings.Contains(result, original) {
			result = strings.ReplaceAll(result, original, p.corrections[original])
		}
	}
	return result
}

// HintsFor returns pattern-derived solving hints for a problem.
func (p *PatternLearner) HintsFor(topic, subtopic string) SolutionHints {
	patterns := p.PatternsForTopic(topic, subtopic)
	return SolutionHints{
		SuggestedMethods: patterns.Methods,
		RelevantFormulas: patterns.Formulas,
		Tips:             topicTips(topic, subtopic),
	}
}

// Stats reports current pattern counts.
func (p *PatternLearner) Stats() PatternStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := PatternStats{
		TopicsWithPatterns: len(p.formulas),
		CorrectionPatterns: len(p.corrections),
	}
	for _, v := range p.formulas {
		stats.TotalFormulas += len(v)
	}
	for _, v := range p.methods {
		stats.TotalMethods += len(v)
	}
	return stats
}

func mostCommon(items []string, limit int) []string {
	if len(items) == 0 {
		return nil
	}
	counts := make(map[string]int)
	order := make(map[string]int)
	for i, item := range items {
		if _, ok := counts[item]; !ok {
			order[item] = i
		}
		counts[item]++
	}

	unique := make([]string, 0, len(counts))
	for item := range counts {
		unique = append(unique, item)
	}
	sort.Slice(unique, func(i, j int) bool {
		if counts[unique[i]] != counts[unique[j]] {
			return counts[unique[i]] > counts[unique[j]]
		}
		return order[unique[i]] < order[unique[j]]
	})

	if len(unique) > limit {
		unique = unique[:limit]
	}
	return unique
}

func topicTips(topic, subtopic string) []string {
	switch topic + "/" + subtopic {
	case "algebra/quadratic_equations":
		return []string{
			"Check if the equation can be factored easily",
			"Calculate discriminant to determine nature of roots",
			"Remember to check for extraneous solutions",
		}
	case "calculus/limits":
		return []string{
			"Try direct substitution first",
			"Identify indeterminate forms",
			"Consider L'Hôpital's rule for 0/0 or ∞/∞",
		}
	case "probability/permutations_combinations":
		return []string{
			"Determine if order matters (permutation vs combination)",
			"Check for repetition constraints",
			"Draw a diagram for complex problems",
		}
	case "linear_algebra/matrices":
		return []string{
			"Check matrix dimensions for multiplication",
			"For inverse, verify det ≠ 0",
			"Use row reduction for systems",
		}
	}
	return nil
}
