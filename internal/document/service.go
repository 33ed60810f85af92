package document

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rakhadavedra/sow-analysis/internal"
	"github.com/rakhadavedra/sow-analysis/internal/blobstore"
	documentDatamodel "github.com/rakhadavedra/sow-analysis/internal/core/datamodel/document"
	"github.com/rakhadavedra/sow-analysis/internal/core/events"
	"github.com/rakhadavedra/sow-analysis/internal/prompt"
)

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type Service struct {
	repo           RepositoryAPI
	blobs          blobstore.API
	prompts        prompt.ServiceAPI
	pipeline       *Pipeline
	publisher      EventPublisher
	maxUploadBytes int64
	logger         *slog.Logger
}

func NewService(
	repo RepositoryAPI,
	blobs blobstore.API,
	prompts prompt.ServiceAPI,
	pipeline *Pipeline,
	publisher EventPublisher,
	maxUploadSizeMB int64,
	logger *slog.Logger,
) *Service {
	if maxUploadSizeMB <= 0 {
		maxUploadSizeMB = 25
	}
	return &Service{
		repo:           repo,
		blobs:          blobs,
		prompts:        prompts,
		pipeline:       pipeline,
		publisher:      publisher,
		maxUploadBytes: maxUploadSizeMB * 1024 * 1024,
		logger:         logger,
	}
}

// Upload validates and stores the raw file, records the document row and
// announces it on the bus. Text extraction waits until processing so a
// corrupt file fails its analysis run, not the upload.
func (s *Service) Upload(ctx context.Context, userID int64, fileName string, data []byte) (*documentDatamodel.Document, error) {
	if len(data) == 0 {
		return nil, internal.NewValidationError("uploaded file is empty", internal.ErrCodeEmptyFile)
	}
	if int64(len(data)) > s.maxUploadBytes {
		return nil, internal.NewValidationError(
			fmt.Sprintf("file exceeds the %d MB upload limit", s.maxUploadBytes/(1024*1024)),
			internal.ErrCodeValidationFailed)
	}

	contentType, ok := contentTypeFor(fileName)
	if !ok {
		return nil, internal.NewValidationError(
			"unsupported file type, allowed: .txt, .md, .pdf, .docx",
			internal.ErrCodeUnsupportedFileType)
	}

	blobName := blobstore.BlobName(fileName, time.Now())
	uploadBucket, _, _ := s.blobs.Buckets()
	if err := s.blobs.Upload(ctx, uploadBucket, blobName, data, contentType); err != nil {
		s.logger.Error("blob upload failed", "blob_name", blobName, "error", err)
		return nil, internal.NewExternalError("could not store uploaded file", internal.ErrCodeBlobStorageFailure, err)
	}

	doc := &documentDatamodel.Document{
		UserID:      userID,
		FileName:    fileName,
		BlobName:    blobName,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		Status:      documentDatamodel.StatusUploaded,
		UploadedAt:  time.Now(),
	}
	if err := s.repo.Insert(ctx, doc); err != nil {
		s.logger.Error("document insert failed", "blob_name", blobName, "error", err)
		return nil, internal.NewInternalError("could not record uploaded document", err)
	}

	s.logger.Info("document uploaded",
		"document_id", doc.ID,
		"user_id", userID,
		"blob_name", blobName,
		"size_bytes", doc.SizeBytes)

	if s.publisher != nil {
		s.publisher.Publish(ctx, events.NewDocumentUploadedEvent(doc.ID, userID, blobName))
	}
	return doc, nil
}

// Analyze runs the full pipeline for one document and persists the
// consolidated result. The document status tracks the run.
func (s *Service) Analyze(ctx context.Context, documentID int64) (*ProcessResult, error) {
	doc, err := s.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, internal.NewNotFoundError("document not found", internal.ErrCodeRecordNotFound)
	}

	if err := s.repo.UpdateStatus(ctx, doc.ID, documentDatamodel.StatusProcessing, false); err != nil {
		return nil, internal.NewInternalError("could not mark document as processing", err)
	}

	uploadBucket, resultBucket, _ := s.blobs.Buckets()
	data, err := s.blobs.Download(ctx, uploadBucket, doc.BlobName)
	if err != nil {
		s.markFailed(ctx, doc.ID)
		return nil, internal.NewExternalError("could not fetch document content", internal.ErrCodeBlobStorageFailure, err)
	}

	text, err := ExtractText(doc.FileName, data)
	if err != nil {
		s.markFailed(ctx, doc.ID)
		return nil, err
	}

	prompts, err := s.prompts.ActivePrompts(ctx)
	if err != nil {
		s.markFailed(ctx, doc.ID)
		return nil, err
	}

	result := s.pipeline.Process(ctx, doc.BlobName, text, prompts)

	payload, err := result.Payload()
	if err != nil {
		s.markFailed(ctx, doc.ID)
		return nil, internal.NewInternalError("could not serialize analysis result", err)
	}

	resultBlobName := doc.BlobName + ".analysis.json"
	if err := s.blobs.Upload(ctx, resultBucket, resultBlobName, []byte(payload), "application/json"); err != nil {
		// The DB row still carries the full payload, so losing the blob
		// copy degrades rather than fails the run.
		s.logger.Error("result blob upload failed", "blob_name", resultBlobName, "error", err)
	}

	record := &documentDatamodel.AnalysisResult{
		DocumentID:     doc.ID,
		ResultBlobName: resultBlobName,
		Status:         result.Status,
		PromptsTotal:   len(prompts),
		PromptsFailed:  len(result.Errors),
		TriggerHits:    result.TriggerHits,
		Payload:        payload,
	}
	if err := s.repo.InsertResult(ctx, record); err != nil {
		s.markFailed(ctx, doc.ID)
		return nil, internal.NewInternalError("could not persist analysis result", err)
	}

	if err := s.repo.UpdateStatus(ctx, doc.ID, result.Status, true); err != nil {
		s.logger.Error("final status update failed", "document_id", doc.ID, "error", err)
	}

	s.logger.Info("document processed",
		"document_id", doc.ID,
		"status", result.Status,
		"prompts_total", len(prompts),
		"prompts_failed", len(result.Errors),
		"trigger_hits", result.TriggerHits)

	if s.publisher != nil {
		s.publisher.Publish(ctx, events.NewDocumentProcessedEvent(doc.ID, result.Status, len(prompts), len(result.Errors)))
	}
	return &result, nil
}

// GetDocument returns one document. A non-zero ownerID restricts the lookup
// to that owner; callers with the view-all permission pass zero.
func (s *Service) GetDocument(ctx context.Context, documentID int64, ownerID int64) (*documentDatamodel.Document, error) {
	doc, err := s.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, internal.NewNotFoundError("document not found", internal.ErrCodeRecordNotFound)
	}
	if ownerID != 0 && doc.UserID != ownerID {
		// Not-found instead of forbidden keeps other users' document IDs
		// unguessable.
		return nil, internal.NewNotFoundError("document not found", internal.ErrCodeRecordNotFound)
	}
	return doc, nil
}

func (s *Service) ListDocuments(ctx context.Context, ownerID int64, filter ListFilter) ([]documentDatamodel.Document, int64, error) {
	filter.Normalize()
	docs, total, err := s.repo.List(ctx, ownerID, filter)
	if err != nil {
		return nil, 0, internal.NewInternalError("could not list documents", err)
	}
	if docs == nil {
		docs = []documentDatamodel.Document{}
	}
	return docs, total, nil
}

func (s *Service) GetResult(ctx context.Context, documentID int64, ownerID int64) (*documentDatamodel.AnalysisResult, error) {
	if _, err := s.GetDocument(ctx, documentID, ownerID); err != nil {
		return nil, err
	}
	result, err := s.repo.LatestResult(ctx, documentID)
	if err != nil {
		return nil, internal.NewNotFoundError("no analysis result for this document yet", internal.ErrCodeRecordNotFound)
	}
	return result, nil
}

// NextUploadedDocument is the worker's poll: the oldest document still in
// the uploaded state, or an error when the queue is empty.
func (s *Service) NextUploadedDocument(ctx context.Context) (*documentDatamodel.Document, error) {
	return s.repo.NextUploaded(ctx)
}

func (s *Service) markFailed(ctx context.Context, documentID int64) {
	if err := s.repo.UpdateStatus(ctx, documentID, documentDatamodel.StatusFailed, true); err != nil {
		s.logger.Error("could not mark document as failed", "document_id", documentID, "error", err)
	}
}
