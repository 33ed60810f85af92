package report

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/rakhadavedra/sow-analysis/internal"
	documentDatamodel "github.com/rakhadavedra/sow-analysis/internal/core/datamodel/document"
	"github.com/rakhadavedra/sow-analysis/internal/document"
)

func TestReport(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Report Module Suite")
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const samplePayload = `{
	"blob_name": "20260314_092653_contract.pdf",
	"prompts_processed": 2,
	"results": {
		"liability": {
			"detected": true,
			"findings": [{"original_text": "Unlimited liability applies.", "compliance_status": "non_compliant", "explanation": "No cap.", "suggested_revision": "Cap at fees paid.", "risk_level": "high"}],
			"overall_risk": "high",
			"actions": ["escalate to legal"]
		},
		"termination": {
			"detected": false,
			"findings": [],
			"overall_risk": "none",
			"actions": []
		}
	},
	"errors": [{"clause_id": "payment", "message": "rate limited"}],
	"trigger_hits": 3,
	"status": "partial_success"
}`

type mockDocumentService struct {
	doc    *documentDatamodel.Document
	result *documentDatamodel.AnalysisResult
}

func (m *mockDocumentService) Upload(ctx context.Context, userID int64, fileName string, data []byte) (*documentDatamodel.Document, error) {
	return nil, errors.New("not implemented")
}

func (m *mockDocumentService) Analyze(ctx context.Context, documentID int64) (*document.ProcessResult, error) {
	return nil, errors.New("not implemented")
}

func (m *mockDocumentService) GetDocument(ctx context.Context, documentID int64, ownerID int64) (*documentDatamodel.Document, error) {
	if m.doc == nil || (ownerID != 0 && m.doc.UserID != ownerID) {
		return nil, internal.NewNotFoundError("document not found", internal.ErrCodeRecordNotFound)
	}
	return m.doc, nil
}

func (m *mockDocumentService) ListDocuments(ctx context.Context, ownerID int64, filter document.ListFilter) ([]documentDatamodel.Document, int64, error) {
	return nil, 0, errors.New("not implemented")
}

func (m *mockDocumentService) GetResult(ctx context.Context, documentID int64, ownerID int64) (*documentDatamodel.AnalysisResult, error) {
	if m.result == nil {
		return nil, internal.NewNotFoundError("no analysis result for this document yet", internal.ErrCodeRecordNotFound)
	}
	return m.result, nil
}

type mockBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMockBlobStore() *mockBlobStore {
	return &mockBlobStore{objects: make(map[string][]byte)}
}

func (m *mockBlobStore) Upload(ctx context.Context, bucket, objectName string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+objectName] = data
	return nil
}

func (m *mockBlobStore) Download(ctx context.Context, bucket, objectName string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (m *mockBlobStore) Buckets() (string, string, string) {
	return "uploads", "results", "reports"
}

var _ = ginkgo.Describe("RenderHTML", func() {
	ginkgo.Context("with a consolidated result payload", func() {
		ginkgo.It("should render every clause section and the failure list", func() {
			// When
			html, err := RenderHTML("contract.pdf", samplePayload, time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC))

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(html).To(gomega.ContainSubstring("contract.pdf"))
			gomega.Expect(html).To(gomega.ContainSubstring("liability"))
			gomega.Expect(html).To(gomega.ContainSubstring("Unlimited liability applies."))
			gomega.Expect(html).To(gomega.ContainSubstring("escalate to legal"))
			gomega.Expect(html).To(gomega.ContainSubstring("No issues detected for this clause."))
			gomega.Expect(html).To(gomega.ContainSubstring("payment: rate limited"))
		})

		ginkgo.It("should order clause sections deterministically", func() {
			// When
			html, err := RenderHTML("contract.pdf", samplePayload, time.Now())

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(strings.Index(html, "liability")).To(gomega.BeNumerically("<", strings.Index(html, "termination")))
		})

		ginkgo.It("should escape markup inside clause text", func() {
			// Given
			payload := `{"results": {"liability": {"detected": true, "findings": [{"original_text": "<script>alert(1)</script>", "compliance_status": "bad"}], "overall_risk": "low", "actions": []}}, "status": "success"}`

			// When
			html, err := RenderHTML("contract.pdf", payload, time.Now())

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(html).ToNot(gomega.ContainSubstring("<script>alert(1)</script>"))
		})
	})

	ginkgo.Context("with a corrupt payload", func() {
		ginkgo.It("should return the parse error", func() {
			_, err := RenderHTML("contract.pdf", "not json", time.Now())
			gomega.Expect(err).To(gomega.HaveOccurred())
		})
	})
})

var _ = ginkgo.Describe("Service", func() {
	var (
		ctx     context.Context
		docs    *mockDocumentService
		blobs   *mockBlobStore
		service *Service
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		docs = &mockDocumentService{
			doc: &documentDatamodel.Document{
				ID:       1,
				UserID:   7,
				FileName: "contract.pdf",
				BlobName: "20260314_092653_contract.pdf",
			},
			result: &documentDatamodel.AnalysisResult{
				DocumentID: 1,
				Payload:    samplePayload,
				Status:     documentDatamodel.StatusPartialSuccess,
			},
		}
		blobs = newMockBlobStore()
		service = NewService(docs, blobs, true, 5*time.Second, slogDiscard())
		service.render = func(ctx context.Context, html string, timeout time.Duration) ([]byte, error) {
			return []byte("%PDF-1.7 " + html[:20]), nil
		}
	})

	ginkgo.Describe("GeneratePDF", func() {
		ginkgo.Context("for a document with an analysis result", func() {
			ginkgo.It("should return the PDF and archive a copy", func() {
				// When
				pdf, fileName, err := service.GeneratePDF(ctx, 1, 7)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(pdf).ToNot(gomega.BeEmpty())
				gomega.Expect(fileName).To(gomega.Equal("20260314_092653_contract_report.pdf"))
				gomega.Expect(blobs.objects).To(gomega.HaveKey("reports/" + fileName))
			})
		})

		ginkgo.Context("when generation is disabled", func() {
			ginkgo.It("should refuse without touching storage", func() {
				// Given
				service = NewService(docs, blobs, false, 5*time.Second, slogDiscard())

				// When
				_, _, err := service.GeneratePDF(ctx, 1, 7)

				// Then
				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(blobs.objects).To(gomega.BeEmpty())
			})
		})

		ginkgo.Context("for another user's document", func() {
			ginkgo.It("should answer not found", func() {
				// When
				_, _, err := service.GeneratePDF(ctx, 1, 8)

				// Then
				appErr, ok := internal.IsAppError(err)
				gomega.Expect(ok).To(gomega.BeTrue())
				gomega.Expect(appErr.Code).To(gomega.Equal(internal.ErrCodeRecordNotFound))
			})
		})

		ginkgo.Context("when the renderer fails", func() {
			ginkgo.It("should surface an internal error", func() {
				// Given
				service.render = func(ctx context.Context, html string, timeout time.Duration) ([]byte, error) {
					return nil, errors.New("chrome not installed")
				}

				// When
				_, _, err := service.GeneratePDF(ctx, 1, 7)

				// Then
				appErr, ok := internal.IsAppError(err)
				gomega.Expect(ok).To(gomega.BeTrue())
				gomega.Expect(appErr.Type).To(gomega.Equal(internal.ErrorTypeInternal))
			})
		})
	})
})
