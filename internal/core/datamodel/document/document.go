package document

import "time"

type Document struct {
	ID           int64      `gorm:"primaryKey"`
	UserID       int64      `gorm:"column:user_id;not null;index"`
	FileName     string     `gorm:"column:file_name;not null"`
	BlobName     string     `gorm:"column:blob_name;uniqueIndex;not null"`
	ContentType  string     `gorm:"column:content_type"`
	SizeBytes    int64      `gorm:"column:size_bytes"`
	Status       string     `gorm:"column:status;default:'uploaded'"`
	UploadedAt   time.Time  `gorm:"column:uploaded_at;default:now()"`
	ProcessedAt  *time.Time `gorm:"column:processed_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;default:now()"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;default:now()"`
}

func (Document) TableName() string { return "documents" }

const (
	StatusUploaded       = "uploaded"
	StatusProcessing     = "processing"
	StatusSuccess        = "success"
	StatusPartialSuccess = "partial_success"
	StatusFailed         = "failed"
)

// AnalysisResult stores the consolidated pipeline output for one document,
// one row per processing run.
type AnalysisResult struct {
	ID             int64     `gorm:"primaryKey"`
	DocumentID     int64     `gorm:"column:document_id;not null;index"`
	ResultBlobName string    `gorm:"column:result_blob_name;not null"`
	Status         string    `gorm:"column:status;not null"`
	PromptsTotal   int       `gorm:"column:prompts_total"`
	PromptsFailed  int       `gorm:"column:prompts_failed"`
	TriggerHits    int       `gorm:"column:trigger_hits"`
	Payload        string    `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time `gorm:"column:created_at;default:now()"`
}

func (AnalysisResult) TableName() string { return "analysis_results" }
