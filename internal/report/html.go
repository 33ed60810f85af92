package report

import (
	"bytes"
	"encoding/json"
	"html/template"
	"sort"
	"time"

	"github.com/rakhadavedra/sow-analysis/internal/document"
)

type reportData struct {
	FileName    string
	GeneratedAt string
	Status      string
	TriggerHits int
	Sections    []reportSection
	Errors      []document.PromptError
}

type reportSection struct {
	ClauseID    string
	Detected    bool
	OverallRisk string
	Findings    []document.Finding
	Actions     []string
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>SOW Analysis Report</title>
<style>
  body { font-family: Helvetica, Arial, sans-serif; margin: 2em; color: #1a1a1a; }
  h1 { font-size: 20px; border-bottom: 2px solid #333; padding-bottom: 8px; }
  h2 { font-size: 15px; margin-top: 1.6em; }
  .summary { margin: 1em 0; }
  .summary td { padding: 2px 14px 2px 0; }
  table.findings { border-collapse: collapse; width: 100%; margin-top: 0.6em; }
  table.findings th, table.findings td { border: 1px solid #bbb; padding: 6px 8px; font-size: 11px; text-align: left; vertical-align: top; }
  table.findings th { background: #efefef; }
  .risk-high { color: #b00020; font-weight: bold; }
  .risk-medium { color: #c77700; font-weight: bold; }
  .risk-low { color: #2e7d32; }
  .risk-none { color: #666; }
  .errors { color: #b00020; font-size: 11px; }
  ul.actions { font-size: 12px; }
</style>
</head>
<body>
<h1>SOW Analysis Report</h1>
<table class="summary">
  <tr><td>Document</td><td>{{.FileName}}</td></tr>
  <tr><td>Generated</td><td>{{.GeneratedAt}}</td></tr>
  <tr><td>Status</td><td>{{.Status}}</td></tr>
  <tr><td>Escalation term hits</td><td>{{.TriggerHits}}</td></tr>
</table>

{{range .Sections}}
<h2>{{.ClauseID}} <span class="risk-{{.OverallRisk}}">[{{.OverallRisk}}]</span></h2>
{{if .Detected}}
  {{if .Findings}}
  <table class="findings">
    <tr><th>Clause text</th><th>Compliance</th><th>Explanation</th><th>Suggested revision</th><th>Risk</th></tr>
    {{range .Findings}}
    <tr>
      <td>{{.OriginalText}}</td>
      <td>{{.ComplianceStatus}}</td>
      <td>{{.Explanation}}</td>
      <td>{{.SuggestedRevision}}</td>
      <td class="risk-{{.RiskLevel}}">{{.RiskLevel}}</td>
    </tr>
    {{end}}
  </table>
  {{end}}
  {{if .Actions}}
  <ul class="actions">
    {{range .Actions}}<li>{{.}}</li>{{end}}
  </ul>
  {{end}}
{{else}}
  <p>No issues detected for this clause.</p>
{{end}}
{{end}}

{{if .Errors}}
<h2>Prompts that could not be evaluated</h2>
<ul class="errors">
  {{range .Errors}}<li>{{.ClauseID}}: {{.Message}}</li>{{end}}
</ul>
{{end}}
</body>
</html>`))

// RenderHTML turns a consolidated result payload into the printable report
// page. Sections follow the prompt order recorded in the payload keys sorted
// for stable output.
func RenderHTML(fileName string, payload string, generatedAt time.Time) (string, error) {
	var result document.ProcessResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return "", err
	}

	data := reportData{
		FileName:    fileName,
		GeneratedAt: generatedAt.Format("2006-01-02 15:04 MST"),
		Status:      result.Status,
		TriggerHits: result.TriggerHits,
		Errors:      result.Errors,
	}
	for _, clauseID := range sortedKeys(result.Results) {
		analysis := result.Results[clauseID]
		data.Sections = append(data.Sections, reportSection{
			ClauseID:    clauseID,
			Detected:    analysis.Detected,
			OverallRisk: analysis.OverallRisk,
			Findings:    analysis.Findings,
			Actions:     analysis.Actions,
		})
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sortedKeys(m map[string]document.Analysis) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
