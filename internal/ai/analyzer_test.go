package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// scriptedLLM returns canned responses in order
type scriptedLLM struct {
	outputs []string
	errs    []error
	calls   int
	prompts []string
}

func (s *scriptedLLM) GenerateText(ctx context.Context, prompt string) (string, error) {
	i := s.calls
	s.calls++
	s.prompts = append(s.prompts, prompt)
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.outputs) {
		return s.outputs[i], nil
	}
	return "", errors.New("no scripted response")
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		want  string
		found bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, true},
		{"prose around object", "Sure! Here is the review:\n{\"a\":1}\nHope that helps.", `{"a":1}`, true},
		{"markdown fence", "```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{"nested braces", `noise {"a":{"b":2}} tail`, `{"a":{"b":2}}`, true},
		{"no object", "I cannot review this file.", "", false},
		{"only open brace", "{oops", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := extractJSONObject(tt.in)
			if found != tt.found {
				t.Fatalf("found = %v, want %v", found, tt.found)
			}
			if got != tt.want {
				t.Errorf("extracted %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAnalyzer_AnalyzeFile(t *testing.T) {
	llm := &scriptedLLM{outputs: []string{
		`Here you go:
{"summary": "solid file", "qualityScore": 92, "findings": [{"line": 3, "severity": "low", "category": "style", "title": "Naming", "description": "x is vague"}]}`,
	}}
	a := NewAnalyzer(llm, AnalyzerConfig{})

	analysis, err := a.AnalyzeFile(context.Background(), "package main", "main.go", "PR #1: init")
	if err != nil {
		t.Fatalf("AnalyzeFile returned error: %v", err)
	}

	if analysis.Summary != "solid file" {
		t.Errorf("summary = %q", analysis.Summary)
	}
	if analysis.QualityScore != 92 {
		t.Errorf("qualityScore = %d, want 92", analysis.QualityScore)
	}
	if len(analysis.Findings) != 1 {
		t.Fatalf("findings = %d, want 1", len(analysis.Findings))
	}
	// missing file field is pinned to the analyzed file
	if analysis.Findings[0].File != "main.go" {
		t.Errorf("finding file = %q, want main.go", analysis.Findings[0].File)
	}

	prompt := llm.prompts[0]
	if !strings.Contains(prompt, "main.go") || !strings.Contains(prompt, "PR #1: init") {
		t.Error("prompt should embed the file name and PR context")
	}
}

func TestAnalyzer_AnalyzeFile_ScoreClamped(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{`{"summary":"s","qualityScore":180,"findings":[]}`, 100},
		{`{"summary":"s","qualityScore":-5,"findings":[]}`, 0},
	}

	for _, tt := range tests {
		llm := &scriptedLLM{outputs: []string{tt.raw}}
		a := NewAnalyzer(llm, AnalyzerConfig{})

		analysis, err := a.AnalyzeFile(context.Background(), "code", "f.go", "")
		if err != nil {
			t.Fatalf("AnalyzeFile returned error: %v", err)
		}
		if analysis.QualityScore != tt.want {
			t.Errorf("qualityScore = %d, want %d", analysis.QualityScore, tt.want)
		}
	}
}

func TestAnalyzer_AnalyzeFile_NoJSON(t *testing.T) {
	llm := &scriptedLLM{outputs: []string{"I refuse to answer in JSON."}}
	a := NewAnalyzer(llm, AnalyzerConfig{})

	if _, err := a.AnalyzeFile(context.Background(), "code", "f.go", ""); err == nil {
		t.Error("a response with no JSON object must fail loudly")
	}
}

func TestAnalyzer_AnalyzeBatch_Aggregation(t *testing.T) {
	llm := &scriptedLLM{outputs: []string{
		`{"summary":"a","qualityScore":80,"findings":[{"file":"a.go","line":1,"severity":"high","category":"bug","title":"A","description":"d"}]}`,
		`{"summary":"b","qualityScore":91,"findings":[{"file":"b.go","line":2,"severity":"low","category":"style","title":"B","description":"d"},{"file":"b.go","line":9,"severity":"info","category":"best-practice","title":"C","description":"d"}]}`,
	}}
	a := NewAnalyzer(llm, AnalyzerConfig{})

	result, err := a.AnalyzeBatch(context.Background(), []FileInput{
		{Name: "a.go", Content: "package a"},
		{Name: "b.go", Content: "package b"},
	}, "ctx")
	if err != nil {
		t.Fatalf("AnalyzeBatch returned error: %v", err)
	}

	if result.FilesAnalyzed != 2 {
		t.Errorf("filesAnalyzed = %d, want 2", result.FilesAnalyzed)
	}
	// mean of 80 and 91 is 85.5, rounded to nearest integer
	if result.QualityScore != 86 {
		t.Errorf("qualityScore = %d, want 86", result.QualityScore)
	}
	if len(result.Findings) != 3 {
		t.Errorf("findings = %d, want 3", len(result.Findings))
	}
	// insertion order from the per-file responses is preserved
	if result.Findings[0].File != "a.go" || result.Findings[2].Title != "C" {
		t.Errorf("findings order unexpected: %v", result.Findings)
	}
}

func TestAnalyzer_AnalyzeBatch_SkipsFailedFile(t *testing.T) {
	llm := &scriptedLLM{
		outputs: []string{
			"",
			`{"summary":"b","qualityScore":70,"findings":[]}`,
		},
		errs: []error{errors.New("rate limited"), nil},
	}
	a := NewAnalyzer(llm, AnalyzerConfig{})

	result, err := a.AnalyzeBatch(context.Background(), []FileInput{
		{Name: "a.go", Content: "package a"},
		{Name: "b.go", Content: "package b"},
	}, "")
	if err != nil {
		t.Fatalf("AnalyzeBatch returned error: %v", err)
	}

	if result.FilesAnalyzed != 1 {
		t.Errorf("filesAnalyzed = %d, want 1", result.FilesAnalyzed)
	}
	if result.QualityScore != 70 {
		t.Errorf("qualityScore = %d, want 70", result.QualityScore)
	}
}

func TestAnalyzer_AnalyzeBatch_AllCallsFail(t *testing.T) {
	llm := &scriptedLLM{errs: []error{errors.New("down"), errors.New("down")}}
	a := NewAnalyzer(llm, AnalyzerConfig{})

	result, err := a.AnalyzeBatch(context.Background(), []FileInput{
		{Name: "a.go", Content: "a"},
		{Name: "b.go", Content: "b"},
	}, "")
	if err != nil {
		t.Fatalf("a fully failed batch is still a valid result, got error: %v", err)
	}

	if result.FilesAnalyzed != 0 {
		t.Errorf("filesAnalyzed = %d, want 0", result.FilesAnalyzed)
	}
	if result.QualityScore != 0 {
		t.Errorf("qualityScore = %d, want 0", result.QualityScore)
	}
	if len(result.Findings) != 0 {
		t.Errorf("findings = %v, want none", result.Findings)
	}
	if !strings.Contains(result.Summary, "0 of 2") {
		t.Errorf("summary = %q, should report zero analyzed", result.Summary)
	}
}

func TestAnalyzer_RetriesTransientFailure(t *testing.T) {
	llm := &scriptedLLM{
		outputs: []string{"", `{"summary":"ok","qualityScore":88,"findings":[]}`},
		errs:    []error{errors.New("flaky"), nil},
	}
	a := NewAnalyzer(llm, AnalyzerConfig{RetryAttempts: 3, RetryBaseDelay: 1})

	analysis, err := a.AnalyzeFile(context.Background(), "code", "f.go", "")
	if err != nil {
		t.Fatalf("AnalyzeFile should recover after a retry: %v", err)
	}
	if analysis.QualityScore != 88 {
		t.Errorf("qualityScore = %d, want 88", analysis.QualityScore)
	}
	if llm.calls != 2 {
		t.Errorf("llm called %d times, want 2", llm.calls)
	}
}
