package report

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/rakhadavedra/sow-analysis/internal"
	"github.com/rakhadavedra/sow-analysis/internal/blobstore"
	"github.com/rakhadavedra/sow-analysis/internal/document"
)

type ServiceAPI interface {
	GeneratePDF(ctx context.Context, documentID int64, ownerID int64) ([]byte, string, error)
}

// renderFunc is swapped in tests so they never spawn Chrome.
type renderFunc func(ctx context.Context, html string, timeout time.Duration) ([]byte, error)

type Service struct {
	documents    document.ServiceAPI
	blobs        blobstore.API
	enabled      bool
	printTimeout time.Duration
	render       renderFunc
	logger       *slog.Logger
}

func NewService(documents document.ServiceAPI, blobs blobstore.API, enabled bool, printTimeout time.Duration, logger *slog.Logger) *Service {
	return &Service{
		documents:    documents,
		blobs:        blobs,
		enabled:      enabled,
		printTimeout: printTimeout,
		render:       printToPDF,
		logger:       logger,
	}
}

// GeneratePDF renders the latest analysis of a document to a PDF report and
// stores a copy in the reports bucket. Returns the bytes and suggested
// filename for the download response.
func (s *Service) GeneratePDF(ctx context.Context, documentID int64, ownerID int64) ([]byte, string, error) {
	if !s.enabled {
		return nil, "", internal.NewValidationError("report generation is disabled", internal.ErrCodeNotImplements)
	}

	doc, err := s.documents.GetDocument(ctx, documentID, ownerID)
	if err != nil {
		return nil, "", err
	}
	result, err := s.documents.GetResult(ctx, documentID, ownerID)
	if err != nil {
		return nil, "", err
	}

	html, err := RenderHTML(doc.FileName, result.Payload, time.Now())
	if err != nil {
		return nil, "", internal.NewInternalError("could not render report", err)
	}

	pdf, err := s.render(ctx, html, s.printTimeout)
	if err != nil {
		return nil, "", internal.NewInternalError("could not print report to PDF", err)
	}

	reportName := reportBlobName(doc.BlobName)
	_, _, reportBucket := s.blobs.Buckets()
	if err := s.blobs.Upload(ctx, reportBucket, reportName, pdf, "application/pdf"); err != nil {
		// The caller still gets the bytes; only the archived copy is lost.
		s.logger.Error("report blob upload failed", "blob_name", reportName, "error", err)
	}

	s.logger.Info("report generated", "document_id", documentID, "blob_name", reportName, "size_bytes", len(pdf))
	return pdf, reportName, nil
}

func reportBlobName(blobName string) string {
	base := blobName
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	return base + "_report.pdf"
}
