package document

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	documentDatamodel "github.com/rakhadavedra/sow-analysis/internal/core/datamodel/document"
	"github.com/rakhadavedra/sow-analysis/internal/llm"
	"github.com/rakhadavedra/sow-analysis/internal/prompt"
)

// Escalation vocabulary counted in a pre-scan before any model call. The hit
// count travels with the result as a cheap signal of how much price
// escalation language the document carries.
var triggerTermRe = regexp.MustCompile(`(?i)\b(CPI|CPI-U|inflation|COLA|indexation|escalation|annual\s+increase)\b`)

// Pipeline fans the active prompts out against one document's text. Dispatch
// is bounded by a semaphore; the default bound of one keeps calls sequential,
// which most model endpoints' rate limits effectively require anyway.
type Pipeline struct {
	client             llm.ClientAPI
	maxConcurrent      int
	chunkSize          int
	maxCharsSingleCall int
	logger             *slog.Logger
}

type PipelineConfig struct {
	MaxConcurrent      int
	ChunkSize          int
	MaxCharsSingleCall int
}

func NewPipeline(client llm.ClientAPI, config PipelineConfig, logger *slog.Logger) *Pipeline {
	maxConcurrent := config.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	chunkSize := config.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 20000
	}

	maxSingle := config.MaxCharsSingleCall
	if maxSingle <= 0 {
		maxSingle = chunkSize
	}

	return &Pipeline{
		client:             client,
		maxConcurrent:      maxConcurrent,
		chunkSize:          chunkSize,
		maxCharsSingleCall: maxSingle,
		logger:             logger,
	}
}

// Process runs every prompt against the text. One prompt failing never aborts
// the others; the result records which succeeded and which did not.
func (p *Pipeline) Process(ctx context.Context, blobName, text string, prompts []prompt.RenderedPrompt) ProcessResult {
	result := ProcessResult{
		BlobName:    blobName,
		Results:     make(map[string]Analysis, len(prompts)),
		TriggerHits: len(triggerTermRe.FindAllString(text, -1)),
	}

	type outcome struct {
		clauseID string
		analysis Analysis
		err      error
	}

	sem := make(chan struct{}, p.maxConcurrent)
	outcomes := make([]outcome, len(prompts))
	var wg sync.WaitGroup

	for i, pr := range prompts {
		wg.Add(1)
		go func(i int, pr prompt.RenderedPrompt) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			analysis, err := p.analyzePrompt(ctx, pr, text)
			outcomes[i] = outcome{clauseID: pr.ClauseID, analysis: analysis, err: err}
		}(i, pr)
	}
	wg.Wait()

	for _, o := range outcomes {
		if o.err != nil {
			p.logger.Error("prompt analysis failed", "clause_id", o.clauseID, "error", o.err)
			result.Errors = append(result.Errors, PromptError{ClauseID: o.clauseID, Message: o.err.Error()})
			continue
		}
		result.Results[o.clauseID] = o.analysis
		result.PromptsProcessed++
	}

	switch {
	case len(prompts) == 0:
		result.Status = documentDatamodel.StatusFailed
	case len(result.Errors) == 0:
		result.Status = documentDatamodel.StatusSuccess
	case result.PromptsProcessed > 0:
		result.Status = documentDatamodel.StatusPartialSuccess
	default:
		result.Status = documentDatamodel.StatusFailed
	}

	return result
}

func (p *Pipeline) analyzePrompt(ctx context.Context, pr prompt.RenderedPrompt, text string) (Analysis, error) {
	if len(text) <= p.maxCharsSingleCall {
		analysis, err := p.callOnce(ctx, pr, text)
		if err != nil {
			return Analysis{}, err
		}
		analysis.Findings = dedupeFindings(analysis.Findings)
		return analysis, nil
	}

	chunks := chunkText(text, p.chunkSize)
	p.logger.Info("document exceeds single call limit, chunking",
		"clause_id", pr.ClauseID,
		"chars", len(text),
		"chunks", len(chunks))

	merged := Analysis{OverallRisk: RiskNone, Findings: []Finding{}, Actions: []string{}}
	succeeded := 0
	var lastErr error

	for i, chunk := range chunks {
		analysis, err := p.callOnce(ctx, pr, chunk)
		if err != nil {
			p.logger.Warn("chunk analysis failed", "clause_id", pr.ClauseID, "chunk", i, "error", err)
			lastErr = err
			continue
		}
		merged = mergeAnalyses(merged, analysis)
		succeeded++
	}

	if succeeded == 0 {
		if lastErr == nil {
			lastErr = fmt.Errorf("no chunks analyzed")
		}
		return Analysis{}, lastErr
	}
	return merged, nil
}

func (p *Pipeline) callOnce(ctx context.Context, pr prompt.RenderedPrompt, text string) (Analysis, error) {
	content, err := p.client.Complete(ctx, pr.SystemPrompt, text)
	if err != nil {
		return Analysis{}, err
	}

	// A reply that is not JSON still counts as a completed call. The raw
	// text rides along in meta so nothing is silently dropped.
	raw, err := llm.ExtractJSON(content)
	if err != nil {
		p.logger.Warn("model reply was not JSON, recording empty analysis", "clause_id", pr.ClauseID)
		return emptyAnalysis(content), nil
	}

	var analysis Analysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		p.logger.Warn("model JSON did not match the expected shape, recording empty analysis", "clause_id", pr.ClauseID)
		return emptyAnalysis(content), nil
	}

	if analysis.OverallRisk == "" {
		analysis.OverallRisk = RiskNone
	}
	if analysis.Findings == nil {
		analysis.Findings = []Finding{}
	}
	if analysis.Actions == nil {
		analysis.Actions = []string{}
	}
	return analysis, nil
}

func emptyAnalysis(raw string) Analysis {
	return Analysis{
		Detected:    false,
		Findings:    []Finding{},
		OverallRisk: RiskNone,
		Actions:     []string{},
		Meta: map[string]interface{}{
			"note": "model did not return structured JSON; raw reply retained",
			"raw":  raw,
		},
	}
}

// mergeAnalyses folds a chunk verdict into the running one: detection is an
// OR, risk escalates to the highest seen, findings deduplicate on
// (original_text, compliance_status) keeping the first occurrence, actions
// deduplicate keeping order.
func mergeAnalyses(base, next Analysis) Analysis {
	base.Detected = base.Detected || next.Detected
	base.OverallRisk = maxRisk(base.OverallRisk, next.OverallRisk)
	base.Findings = dedupeFindings(append(base.Findings, next.Findings...))
	base.Actions = dedupeStrings(append(base.Actions, next.Actions...))
	if len(next.Meta) > 0 {
		if base.Meta == nil {
			base.Meta = map[string]interface{}{}
		}
		for k, v := range next.Meta {
			if _, ok := base.Meta[k]; !ok {
				base.Meta[k] = v
			}
		}
	}
	return base
}

func dedupeFindings(findings []Finding) []Finding {
	type key struct {
		text   string
		status string
	}
	seen := make(map[key]struct{}, len(findings))
	out := make([]Finding, 0, len(findings))
	for _, f := range findings {
		k := key{text: strings.TrimSpace(f.OriginalText), status: f.ComplianceStatus}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, f)
	}
	return out
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// chunkText splits on rune boundaries into chunks of at most size bytes.
func chunkText(text string, size int) []string {
	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	runes := []rune(text)
	for start := 0; start < len(runes); {
		end := start
		byteCount := 0
		for end < len(runes) {
			runeLen := len(string(runes[end]))
			if byteCount+runeLen > size && end > start {
				break
			}
			byteCount += runeLen
			end++
		}
		chunks = append(chunks, string(runes[start:end]))
		start = end
	}
	return chunks
}
