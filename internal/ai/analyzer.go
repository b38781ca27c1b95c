package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"prsentinel/internal/models"
)

// FileAnalysis is the parsed result of one per-file AI call.
type FileAnalysis struct {
	Summary      string           `json:"summary"`
	QualityScore int              `json:"qualityScore"`
	Findings     []models.Finding `json:"findings"`
}

// FileInput is one fetched file submitted for analysis.
type FileInput struct {
	Name    string
	Content string
}

// BatchResult aggregates per-file analyses for one review.
type BatchResult struct {
	FilesAnalyzed int
	QualityScore  int
	Summary       string
	Findings      []models.Finding
}

// AnalyzerConfig tunes the analyzer's pacing and retry behavior.
type AnalyzerConfig struct {
	RequestDelay   time.Duration // pause between per-file calls
	RetryAttempts  int
	RetryBaseDelay time.Duration
	Timeout        time.Duration // per-call deadline
}

// Analyzer drives per-file LLM calls and aggregates their results.
type Analyzer struct {
	llm TextGenerator
	cfg AnalyzerConfig
}

// NewAnalyzer creates an analyzer on top of an LLM provider.
func NewAnalyzer(llm TextGenerator, cfg AnalyzerConfig) *Analyzer {
	return &Analyzer{llm: llm, cfg: cfg}
}

// AnalyzeFile reviews a single file. The provider is asked for a single
// JSON object; if it wraps the object in prose, the outermost {...} is
// extracted before parsing. An error is returned only when no JSON
// object can be found or parsed.
func (a *Analyzer) AnalyzeFile(ctx context.Context, code, fileName, prContext string) (*FileAnalysis, error) {
	prompt := buildFilePrompt(code, fileName, prContext)

	response, err := a.generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("llm analysis: %w", err)
	}

	raw, found := extractJSONObject(response)
	if !found {
		return nil, fmt.Errorf("no JSON object in llm response for %s", fileName)
	}

	var analysis FileAnalysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return nil, fmt.Errorf("parse llm response for %s: %w", fileName, err)
	}

	if analysis.QualityScore < 0 {
		analysis.QualityScore = 0
	}
	if analysis.QualityScore > 100 {
		analysis.QualityScore = 100
	}

	// The model sometimes omits the file field; pin findings to the
	// file this call was about.
	for i := range analysis.Findings {
		if analysis.Findings[i].File == "" {
			analysis.Findings[i].File = fileName
		}
	}

	return &analysis, nil
}

// AnalyzeBatch reviews files one at a time with a fixed pause between
// calls. A file whose call fails is logged and skipped; it does not
// fail the batch. Zero successful files is a valid completed result
// with quality score 0.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, files []FileInput, prContext string) (*BatchResult, error) {
	var (
		analyzed   int
		scoreTotal int
		findings   []models.Finding
	)

	for i, f := range files {
		if i > 0 {
			if err := pause(ctx, a.cfg.RequestDelay); err != nil {
				return nil, err
			}
		}

		analysis, err := a.AnalyzeFile(ctx, f.Content, f.Name, prContext)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("Warning: analysis failed for %s: %v", f.Name, err)
			continue
		}

		analyzed++
		scoreTotal += analysis.QualityScore
		findings = append(findings, analysis.Findings...)
	}

	result := &BatchResult{
		FilesAnalyzed: analyzed,
		Findings:      findings,
	}

	if analyzed == 0 {
		result.Summary = fmt.Sprintf("Analyzed 0 of %d files", len(files))
		return result, nil
	}

	result.QualityScore = int(math.Round(float64(scoreTotal) / float64(analyzed)))
	result.Summary = fmt.Sprintf("Analyzed %d of %d files, found %d issue(s)", analyzed, len(files), len(findings))

	return result, nil
}

// generate calls the provider under the configured timeout and bounded
// exponential backoff.
func (a *Analyzer) generate(ctx context.Context, prompt string) (string, error) {
	var response string

	attempt := func(ctx context.Context) error {
		if a.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
			defer cancel()
		}
		out, err := a.llm.GenerateText(ctx, prompt)
		if err != nil {
			return retry.RetryableError(err)
		}
		response = out
		return nil
	}

	if a.cfg.RetryAttempts <= 1 {
		if err := attempt(ctx); err != nil {
			return "", err
		}
		return response, nil
	}

	base := a.cfg.RetryBaseDelay
	if base <= 0 {
		base = time.Second
	}
	backoff := retry.WithMaxRetries(uint64(a.cfg.RetryAttempts-1), retry.NewExponential(base))

	if err := retry.Do(ctx, backoff, attempt); err != nil {
		return "", err
	}
	return response, nil
}

func buildFilePrompt(code, fileName, prContext string) string {
	var sb strings.Builder

	sb.WriteString("You are a senior code reviewer. Analyze the following file from a pull request and report any issues.\n\n")

	if prContext != "" {
		sb.WriteString("## Pull Request Context\n")
		sb.WriteString(prContext)
		sb.WriteString("\n\n")
	}

	sb.WriteString(fmt.Sprintf("## File: %s\n```\n%s\n```\n", fileName, code))

	sb.WriteString(`
## Response Format
Respond with a single JSON object:
{"summary": "<one-paragraph assessment>", "qualityScore": <0-100 integer>, "findings": [{"file": "<path>", "line": <number>, "severity": "critical|high|medium|low|info", "category": "bug|security|performance|style|best-practice", "title": "<short title>", "description": "<what is wrong and why>", "suggestion": "<how to fix>", "codeSnippet": "<offending code, optional>"}]}

Important:
- Only flag real problems, not style preferences
- Line numbers reference the file content above
- If the file looks good, return an empty findings array and a high qualityScore

Respond with ONLY the JSON, no additional text.
`)

	return sb.String()
}

// extractJSONObject returns the outermost {...} span of s.
func extractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

// pause sleeps without busy-waiting and returns early on cancellation.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
