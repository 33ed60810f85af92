package document

import (
	"context"
	"encoding/json"

	documentDatamodel "github.com/rakhadavedra/sow-analysis/internal/core/datamodel/document"
)

type ServiceAPI interface {
	Upload(ctx context.Context, userID int64, fileName string, data []byte) (*documentDatamodel.Document, error)
	Analyze(ctx context.Context, documentID int64) (*ProcessResult, error)
	GetDocument(ctx context.Context, documentID int64, userID int64) (*documentDatamodel.Document, error)
	ListDocuments(ctx context.Context, userID int64, filter ListFilter) ([]documentDatamodel.Document, int64, error)
	GetResult(ctx context.Context, documentID int64, userID int64) (*documentDatamodel.AnalysisResult, error)
}

type RepositoryAPI interface {
	Insert(ctx context.Context, doc *documentDatamodel.Document) error
	GetByID(ctx context.Context, documentID int64) (*documentDatamodel.Document, error)
	List(ctx context.Context, userID int64, filter ListFilter) ([]documentDatamodel.Document, int64, error)
	UpdateStatus(ctx context.Context, documentID int64, status string, processed bool) error
	InsertResult(ctx context.Context, result *documentDatamodel.AnalysisResult) error
	LatestResult(ctx context.Context, documentID int64) (*documentDatamodel.AnalysisResult, error)
	NextUploaded(ctx context.Context) (*documentDatamodel.Document, error)
}

type ListFilter struct {
	Status  string
	Page    int
	PerPage int
}

func (f *ListFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 20
	}
}

func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.PerPage
}

// Finding is one flagged clause inside an analysis.
type Finding struct {
	OriginalText      string `json:"original_text"`
	ComplianceStatus  string `json:"compliance_status"`
	Explanation       string `json:"explanation,omitempty"`
	SuggestedRevision string `json:"suggested_revision,omitempty"`
	RiskLevel         string `json:"risk_level,omitempty"`
}

// Analysis is the structured verdict for one prompt against one document.
type Analysis struct {
	Detected    bool                   `json:"detected"`
	Findings    []Finding              `json:"findings"`
	OverallRisk string                 `json:"overall_risk"`
	Actions     []string               `json:"actions"`
	Meta        map[string]interface{} `json:"meta,omitempty"`
}

// Risk levels ordered from benign to severe. Merging chunked analyses keeps
// the highest level seen.
const (
	RiskNone   = "none"
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

var riskRank = map[string]int{
	RiskNone:   0,
	RiskLow:    1,
	RiskMedium: 2,
	RiskHigh:   3,
}

func maxRisk(a, b string) string {
	if riskRank[b] > riskRank[a] {
		return b
	}
	return a
}

// PromptError records which prompt failed and why, without aborting the rest
// of the run.
type PromptError struct {
	ClauseID string `json:"clause_id"`
	Message  string `json:"message"`
}

// ProcessResult is the consolidated outcome of running every active prompt
// against one document.
type ProcessResult struct {
	BlobName         string              `json:"blob_name"`
	PromptsProcessed int                 `json:"prompts_processed"`
	Results          map[string]Analysis `json:"results"`
	Errors           []PromptError       `json:"errors,omitempty"`
	TriggerHits      int                 `json:"trigger_hits"`
	Status           string              `json:"status"`
}

func (r ProcessResult) Payload() (string, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
