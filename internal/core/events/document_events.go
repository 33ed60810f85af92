package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeDocumentUploaded  = "document.uploaded"
	EventTypeDocumentProcessed = "document.processed"
)

type DocumentUploadedEvent struct {
	BaseEvent
	DocumentID int64  `json:"document_id"`
	UserID     int64  `json:"user_id"`
	BlobName   string `json:"blob_name"`
}

func NewDocumentUploadedEvent(documentID, userID int64, blobName string) *DocumentUploadedEvent {
	return &DocumentUploadedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeDocumentUploaded,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"document_id": documentID,
				"user_id":     userID,
				"blob_name":   blobName,
			},
		},
		DocumentID: documentID,
		UserID:     userID,
		BlobName:   blobName,
	}
}

type DocumentProcessedEvent struct {
	BaseEvent
	DocumentID    int64  `json:"document_id"`
	Status        string `json:"status"`
	PromptsTotal  int    `json:"prompts_total"`
	PromptsFailed int    `json:"prompts_failed"`
}

func NewDocumentProcessedEvent(documentID int64, status string, promptsTotal, promptsFailed int) *DocumentProcessedEvent {
	return &DocumentProcessedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeDocumentProcessed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"document_id":    documentID,
				"status":         status,
				"prompts_total":  promptsTotal,
				"prompts_failed": promptsFailed,
			},
		},
		DocumentID:    documentID,
		Status:        status,
		PromptsTotal:  promptsTotal,
		PromptsFailed: promptsFailed,
	}
}
