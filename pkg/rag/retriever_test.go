package rag

import (
	"context"
	"strings"
	"testing"
)

type fakeIndex struct {
	filtered   *QueryResult
	unfiltered *QueryResult
	queries    []map[string]string
}

func (f *fakeIndex) Query(_ context.Context, _ string, n int, where map[string]string) (*QueryResult, error) {
	f.queries = append(f.queries, where)
	result := f.unfiltered
	if len(where) > 0 {
		result = f.filtered
	}
	if result == nil {
		return &QueryResult{}, nil
	}
	return truncate(result, n), nil
}

func truncate(r *QueryResult, n int) *QueryResult {
	if n <= 0 || len(r.Documents) <= n {
		return r
	}
	return &QueryResult{
		Documents: r.Documents[:n],
		Metadatas: r.Metadatas[:n],
		Distances: r.Distances[:n],
	}
}

func hit(source string, distance float64) (string, Metadata, float64) {
	return "content from " + source, Metadata{Source: source, Category: "algebra", Topic: "algebra"}, distance
}

func makeResult(sources ...string) *QueryResult {
	r := &QueryResult{}
	for i, s := range sources {
		doc, meta, dist := hit(s, float64(i)*0.1)
		r.Documents = append(r.Documents, doc)
		r.Metadatas = append(r.Metadatas, meta)
		r.Distances = append(r.Distances, dist)
	}
	return r
}

func TestRetrieveUnavailableIndex(t *testing.T) {
	r := NewRetriever(nil, 2)
	if got := r.Retrieve(context.Background(), "query", 2, ""); got != nil {
		t.Fatalf("expected nil results for unavailable index, got %v", got)
	}
	if r.Available() {
		t.Fatal("expected Available() == false")
	}
}

func TestRetrieveRelevanceScore(t *testing.T) {
	idx := &fakeIndex{unfiltered: &QueryResult{
		Documents: []string{"doc"},
		Metadatas: []Metadata{{Source: "s1", Category: "calculus", Topic: "limits"}},
		Distances: []float64{1.0},
	}}
	r := NewRetriever(idx, 2)

	got := r.Retrieve(context.Background(), "limits", 1, "")
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	if got[0].RelevanceScore != 0.5 {
		t.Errorf("relevance for distance 1.0 = %v, want 0.5", got[0].RelevanceScore)
	}
}

func TestRetrieveWithFallback(t *testing.T) {
	tests := []struct {
		name        string
		filtered    *QueryResult
		unfiltered  *QueryResult
		topic       string
		wantSources []string
		wantQueries int
	}{
		{
			name:        "enough filtered results, no fallback",
			filtered:    makeResult("a", "b"),
			unfiltered:  makeResult("c", "d"),
			topic:       "algebra",
			wantSources: []string{"a", "b"},
			wantQueries: 1,
		},
		{
			name:        "starved filtered query widens",
			filtered:    makeResult("a"),
			unfiltered:  makeResult("a", "b", "c"),
			topic:       "algebra",
			wantSources: []string{"a", "b"},
			wantQueries: 2,
		},
		{
			name:        "no topic goes straight to unfiltered",
			filtered:    makeResult("x"),
			unfiltered:  makeResult("c", "d"),
			topic:       "",
			wantSources: []string{"c", "d"},
			wantQueries: 1,
		},
		{
			name:        "empty filtered falls back entirely",
			filtered:    &QueryResult{},
			unfiltered:  makeResult("c", "d", "e"),
			topic:       "calculus",
			wantSources: []string{"c", "d"},
			wantQueries: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := &fakeIndex{filtered: tt.filtered, unfiltered: tt.unfiltered}
			r := NewRetriever(idx, 2)

			got := r.RetrieveWithFallback(context.Background(), "query", tt.topic)

			if len(got) != len(tt.wantSources) {
				t.Fatalf("got %d results, want %d", len(got), len(tt.wantSources))
			}
			for i, want := range tt.wantSources {
				if got[i].Source != want {
					t.Errorf("result %d source = %q, want %q", i, got[i].Source, want)
				}
			}
			if len(idx.queries) != tt.wantQueries {
				t.Errorf("index queried %d times, want %d", len(idx.queries), tt.wantQueries)
			}

			// Never more than top_k, never duplicate sources.
			if len(got) > 2 {
				t.Errorf("fallback returned %d results, cap is 2", len(got))
			}
			seen := map[string]bool{}
			for _, c := range got {
				if seen[c.Source] {
					t.Errorf("duplicate source %q in results", c.Source)
				}
				seen[c.Source] = true
			}
		})
	}
}

func TestFormatContextEmpty(t *testing.T) {
	got := FormatContext(nil)
	if !strings.Contains(got, "Knowledge base not available") {
		t.Errorf("empty context must instruct reliance on background knowledge, got %q", got)
	}
}

func TestFormatContextWithSources(t *testing.T) {
	contexts := []RetrievedContext{
		{Content: "the quadratic formula", Source: "algebra.md", Category: "algebra", Topic: "quadratic_equations", RelevanceScore: 0.8},
	}
	got := FormatContext(contexts)
	if !strings.Contains(got, "the quadratic formula") {
		t.Errorf("formatted context missing content: %q", got)
	}
	if !strings.Contains(got, "Source 1") {
		t.Errorf("formatted context missing source attribution: %q", got)
	}
}

func TestSourcesSummaryEmpty(t *testing.T) {
	got := SourcesSummary(nil)
	if len(got) != 1 || got[0].Source != "AI Knowledge" {
		t.Fatalf("empty summary = %v, want single AI Knowledge entry", got)
	}
}

func TestRelevanceMonotone(t *testing.T) {
	prev := 1.1
	for _, d := range []float64{0, 0.25, 0.5, 1, 2, 10} {
		score := relevance(d)
		if score <= 0 || score > 1 {
			t.Errorf("relevance(%v) = %v, want within (0,1]", d, score)
		}
		if score >= prev {
			t.Errorf("relevance(%v) = %v not strictly decreasing", d, score)
		}
		prev = score
	}
}
