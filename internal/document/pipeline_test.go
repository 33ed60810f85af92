package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/rakhadavedra/sow-analysis/internal"
	"github.com/rakhadavedra/sow-analysis/internal/blobstore"
	documentDatamodel "github.com/rakhadavedra/sow-analysis/internal/core/datamodel/document"
	"github.com/rakhadavedra/sow-analysis/internal/prompt"
)

func TestDocument(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Document Module Suite")
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockLLMClient answers from a per-prompt script keyed on the system prompt.
type mockLLMClient struct {
	mu        sync.Mutex
	responses map[string]string
	errors    map[string]error
	calls     int32
}

func newMockLLMClient() *mockLLMClient {
	return &mockLLMClient{
		responses: make(map[string]string),
		errors:    make(map[string]error),
	}
}

func (m *mockLLMClient) Complete(ctx context.Context, systemPrompt, userContent string) (string, error) {
	atomic.AddInt32(&m.calls, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errors[systemPrompt]; ok {
		return "", err
	}
	if resp, ok := m.responses[systemPrompt]; ok {
		return resp, nil
	}
	return `{"detected": false, "findings": [], "overall_risk": "none", "actions": []}`, nil
}

func (m *mockLLMClient) callCount() int32 {
	return atomic.LoadInt32(&m.calls)
}

func renderedPrompt(clauseID string) prompt.RenderedPrompt {
	return prompt.RenderedPrompt{
		ClauseID:     clauseID,
		Title:        clauseID,
		SystemPrompt: "prompt-" + clauseID,
	}
}

var _ = ginkgo.Describe("Pipeline", func() {
	var (
		ctx    context.Context
		client *mockLLMClient
	)

	newPipeline := func(config PipelineConfig) *Pipeline {
		return NewPipeline(client, config, slogDiscard())
	}

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		client = newMockLLMClient()
	})

	ginkgo.Describe("Process", func() {
		ginkgo.Context("when every prompt succeeds", func() {
			ginkgo.It("should report success with one analysis per prompt", func() {
				// Given
				client.responses["prompt-liability"] = `{"detected": true, "findings": [{"original_text": "clause A", "compliance_status": "non_compliant"}], "overall_risk": "high", "actions": ["review"]}`
				pipeline := newPipeline(PipelineConfig{})

				// When
				result := pipeline.Process(ctx, "doc.pdf", "some contract text", []prompt.RenderedPrompt{
					renderedPrompt("liability"),
					renderedPrompt("termination"),
				})

				// Then
				gomega.Expect(result.Status).To(gomega.Equal(documentDatamodel.StatusSuccess))
				gomega.Expect(result.PromptsProcessed).To(gomega.Equal(2))
				gomega.Expect(result.Results).To(gomega.HaveLen(2))
				gomega.Expect(result.Results["liability"].Detected).To(gomega.BeTrue())
				gomega.Expect(result.Results["liability"].OverallRisk).To(gomega.Equal(RiskHigh))
				gomega.Expect(result.Results["termination"].Detected).To(gomega.BeFalse())
				gomega.Expect(result.Errors).To(gomega.BeEmpty())
			})
		})

		ginkgo.Context("when one prompt fails and another succeeds", func() {
			ginkgo.It("should report partial success and record the failure", func() {
				// Given
				client.errors["prompt-liability"] = errors.New("model exploded")
				pipeline := newPipeline(PipelineConfig{})

				// When
				result := pipeline.Process(ctx, "doc.pdf", "text", []prompt.RenderedPrompt{
					renderedPrompt("liability"),
					renderedPrompt("termination"),
				})

				// Then
				gomega.Expect(result.Status).To(gomega.Equal(documentDatamodel.StatusPartialSuccess))
				gomega.Expect(result.PromptsProcessed).To(gomega.Equal(1))
				gomega.Expect(result.Errors).To(gomega.HaveLen(1))
				gomega.Expect(result.Errors[0].ClauseID).To(gomega.Equal("liability"))
				gomega.Expect(result.Results).To(gomega.HaveKey("termination"))
			})
		})

		ginkgo.Context("when every prompt fails", func() {
			ginkgo.It("should report failure", func() {
				// Given
				client.errors["prompt-liability"] = errors.New("down")
				client.errors["prompt-termination"] = errors.New("down")
				pipeline := newPipeline(PipelineConfig{})

				// When
				result := pipeline.Process(ctx, "doc.pdf", "text", []prompt.RenderedPrompt{
					renderedPrompt("liability"),
					renderedPrompt("termination"),
				})

				// Then
				gomega.Expect(result.Status).To(gomega.Equal(documentDatamodel.StatusFailed))
				gomega.Expect(result.PromptsProcessed).To(gomega.Equal(0))
				gomega.Expect(result.Errors).To(gomega.HaveLen(2))
			})
		})

		ginkgo.Context("when the model replies with prose instead of JSON", func() {
			ginkgo.It("should record an empty analysis rather than an error", func() {
				// Given
				client.responses["prompt-liability"] = "I am unable to analyze this document."
				pipeline := newPipeline(PipelineConfig{})

				// When
				result := pipeline.Process(ctx, "doc.pdf", "text", []prompt.RenderedPrompt{
					renderedPrompt("liability"),
				})

				// Then
				gomega.Expect(result.Status).To(gomega.Equal(documentDatamodel.StatusSuccess))
				analysis := result.Results["liability"]
				gomega.Expect(analysis.Detected).To(gomega.BeFalse())
				gomega.Expect(analysis.Findings).To(gomega.BeEmpty())
				gomega.Expect(analysis.Meta).To(gomega.HaveKey("raw"))
			})
		})

		ginkgo.Context("when the text contains escalation vocabulary", func() {
			ginkgo.It("should count trigger hits before any model call", func() {
				// Given
				pipeline := newPipeline(PipelineConfig{})
				text := "Pricing follows CPI adjustments. Annual increase capped; inflation and COLA apply."

				// When
				result := pipeline.Process(ctx, "doc.pdf", text, []prompt.RenderedPrompt{
					renderedPrompt("escalation"),
				})

				// Then
				gomega.Expect(result.TriggerHits).To(gomega.Equal(4))
			})
		})

		ginkgo.Context("with duplicate findings in one reply", func() {
			ginkgo.It("should keep the first occurrence per text and status pair", func() {
				// Given
				client.responses["prompt-liability"] = `{"detected": true, "overall_risk": "medium", "findings": [
					{"original_text": "clause A", "compliance_status": "non_compliant", "explanation": "first"},
					{"original_text": "clause A ", "compliance_status": "non_compliant", "explanation": "second"},
					{"original_text": "clause A", "compliance_status": "needs_review", "explanation": "different status"}
				]}`
				pipeline := newPipeline(PipelineConfig{})

				// When
				result := pipeline.Process(ctx, "doc.pdf", "text", []prompt.RenderedPrompt{
					renderedPrompt("liability"),
				})

				// Then
				findings := result.Results["liability"].Findings
				gomega.Expect(findings).To(gomega.HaveLen(2))
				gomega.Expect(findings[0].Explanation).To(gomega.Equal("first"))
				gomega.Expect(findings[1].Explanation).To(gomega.Equal("different status"))
			})
		})

		ginkgo.Context("when the document exceeds the single call threshold", func() {
			ginkgo.It("should chunk and merge with risk escalation", func() {
				// Given
				var chunkCalls int32
				scripted := &scriptedLLMClient{
					replies: []string{
						`{"detected": false, "overall_risk": "low", "findings": [{"original_text": "clause A", "compliance_status": "ok"}], "actions": ["note"]}`,
						`{"detected": true, "overall_risk": "high", "findings": [{"original_text": "clause B", "compliance_status": "bad"}], "actions": ["note", "escalate"]}`,
					},
					calls: &chunkCalls,
				}
				pipeline := NewPipeline(scripted, PipelineConfig{
					MaxCharsSingleCall: 10,
					ChunkSize:          12,
				}, slogDiscard())
				text := strings.Repeat("a", 24)

				// When
				result := pipeline.Process(ctx, "doc.pdf", text, []prompt.RenderedPrompt{
					renderedPrompt("liability"),
				})

				// Then
				gomega.Expect(atomic.LoadInt32(&chunkCalls)).To(gomega.Equal(int32(2)))
				analysis := result.Results["liability"]
				gomega.Expect(analysis.Detected).To(gomega.BeTrue())
				gomega.Expect(analysis.OverallRisk).To(gomega.Equal(RiskHigh))
				gomega.Expect(analysis.Findings).To(gomega.HaveLen(2))
				gomega.Expect(analysis.Actions).To(gomega.Equal([]string{"note", "escalate"}))
			})

			ginkgo.It("should still merge when one chunk fails", func() {
				// Given
				var chunkCalls int32
				scripted := &scriptedLLMClient{
					replies: []string{
						`{"detected": true, "overall_risk": "medium", "findings": [], "actions": []}`,
					},
					failFrom: 2,
					calls:    &chunkCalls,
				}
				pipeline := NewPipeline(scripted, PipelineConfig{
					MaxCharsSingleCall: 10,
					ChunkSize:          12,
				}, slogDiscard())

				// When
				result := pipeline.Process(ctx, "doc.pdf", strings.Repeat("b", 24), []prompt.RenderedPrompt{
					renderedPrompt("liability"),
				})

				// Then
				gomega.Expect(result.Status).To(gomega.Equal(documentDatamodel.StatusSuccess))
				gomega.Expect(result.Results["liability"].OverallRisk).To(gomega.Equal(RiskMedium))
			})
		})

		ginkgo.Context("with no prompts configured", func() {
			ginkgo.It("should report failure without calling the model", func() {
				// Given
				pipeline := newPipeline(PipelineConfig{})

				// When
				result := pipeline.Process(ctx, "doc.pdf", "text", nil)

				// Then
				gomega.Expect(result.Status).To(gomega.Equal(documentDatamodel.StatusFailed))
				gomega.Expect(client.callCount()).To(gomega.Equal(int32(0)))
			})
		})
	})

	ginkgo.Describe("chunkText", func() {
		ginkgo.It("should split long text into bounded chunks covering every byte", func() {
			chunks := chunkText(strings.Repeat("x", 25), 10)
			gomega.Expect(chunks).To(gomega.HaveLen(3))
			gomega.Expect(strings.Join(chunks, "")).To(gomega.Equal(strings.Repeat("x", 25)))
		})

		ginkgo.It("should not split a chunk in the middle of a rune", func() {
			chunks := chunkText(strings.Repeat("é", 10), 3)
			for _, c := range chunks {
				gomega.Expect(len(c) <= 3).To(gomega.BeTrue())
				gomega.Expect(strings.ToValidUTF8(c, "?")).To(gomega.Equal(c))
			}
		})
	})
})

// scriptedLLMClient answers each call with the next scripted reply; calls
// numbered failFrom and later fail.
type scriptedLLMClient struct {
	mu       sync.Mutex
	replies  []string
	next     int
	failFrom int
	calls    *int32
}

func (s *scriptedLLMClient) Complete(ctx context.Context, systemPrompt, userContent string) (string, error) {
	if s.calls != nil {
		atomic.AddInt32(s.calls, 1)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	if s.failFrom > 0 && s.next >= s.failFrom {
		return "", errors.New("model unavailable")
	}
	if s.next-1 < len(s.replies) {
		return s.replies[s.next-1], nil
	}
	return "", errors.New("script exhausted")
}

// ---------- service-level mocks ----------

type mockDocumentRepository struct {
	mu        sync.Mutex
	documents map[int64]*documentDatamodel.Document
	results   map[int64][]*documentDatamodel.AnalysisResult
	nextID    int64
}

func newMockDocumentRepository() *mockDocumentRepository {
	return &mockDocumentRepository{
		documents: make(map[int64]*documentDatamodel.Document),
		results:   make(map[int64][]*documentDatamodel.AnalysisResult),
		nextID:    1,
	}
}

func (m *mockDocumentRepository) Insert(ctx context.Context, doc *documentDatamodel.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc.ID = m.nextID
	m.nextID++
	m.documents[doc.ID] = doc
	return nil
}

func (m *mockDocumentRepository) GetByID(ctx context.Context, documentID int64) (*documentDatamodel.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[documentID]
	if !ok {
		return nil, errors.New("record not found")
	}
	return doc, nil
}

func (m *mockDocumentRepository) List(ctx context.Context, userID int64, filter ListFilter) ([]documentDatamodel.Document, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var docs []documentDatamodel.Document
	for _, doc := range m.documents {
		if userID != 0 && doc.UserID != userID {
			continue
		}
		docs = append(docs, *doc)
	}
	return docs, int64(len(docs)), nil
}

func (m *mockDocumentRepository) UpdateStatus(ctx context.Context, documentID int64, status string, processed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[documentID]
	if !ok {
		return errors.New("record not found")
	}
	doc.Status = status
	if processed {
		now := time.Now()
		doc.ProcessedAt = &now
	}
	return nil
}

func (m *mockDocumentRepository) InsertResult(ctx context.Context, result *documentDatamodel.AnalysisResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	result.ID = m.nextID
	m.nextID++
	m.results[result.DocumentID] = append(m.results[result.DocumentID], result)
	return nil
}

func (m *mockDocumentRepository) LatestResult(ctx context.Context, documentID int64) (*documentDatamodel.AnalysisResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	results := m.results[documentID]
	if len(results) == 0 {
		return nil, errors.New("record not found")
	}
	return results[len(results)-1], nil
}

func (m *mockDocumentRepository) NextUploaded(ctx context.Context) (*documentDatamodel.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range m.documents {
		if doc.Status == documentDatamodel.StatusUploaded {
			return doc, nil
		}
	}
	return nil, errors.New("record not found")
}

type mockBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failUp  bool
}

func newMockBlobStore() *mockBlobStore {
	return &mockBlobStore{objects: make(map[string][]byte)}
}

func (m *mockBlobStore) Upload(ctx context.Context, bucket, objectName string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUp {
		return errors.New("storage unreachable")
	}
	m.objects[bucket+"/"+objectName] = data
	return nil
}

func (m *mockBlobStore) Download(ctx context.Context, bucket, objectName string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket+"/"+objectName]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (m *mockBlobStore) Buckets() (string, string, string) {
	return "uploads", "results", "reports"
}

type mockPromptService struct {
	prompts []prompt.RenderedPrompt
}

func (m *mockPromptService) ActivePrompts(ctx context.Context) ([]prompt.RenderedPrompt, error) {
	return m.prompts, nil
}

func (m *mockPromptService) ListPrompts(ctx context.Context) ([]prompt.PromptWithVariables, error) {
	return nil, nil
}

func (m *mockPromptService) CreatePrompt(ctx context.Context, dto prompt.CreatePromptDTO) (*prompt.PromptWithVariables, error) {
	return nil, nil
}

func (m *mockPromptService) UpdatePrompt(ctx context.Context, promptID int64, dto prompt.UpdatePromptDTO) error {
	return nil
}

func (m *mockPromptService) DeletePrompt(ctx context.Context, promptID int64) error {
	return nil
}

var _ = ginkgo.Describe("Service", func() {
	var (
		ctx     context.Context
		repo    *mockDocumentRepository
		blobs   *mockBlobStore
		client  *mockLLMClient
		service *Service
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		repo = newMockDocumentRepository()
		blobs = newMockBlobStore()
		client = newMockLLMClient()
		prompts := &mockPromptService{prompts: []prompt.RenderedPrompt{renderedPrompt("liability")}}
		pipeline := NewPipeline(client, PipelineConfig{}, slogDiscard())
		service = NewService(repo, blobs, prompts, pipeline, nil, 1, slogDiscard())
	})

	ginkgo.Describe("Upload", func() {
		ginkgo.Context("with a valid text file", func() {
			ginkgo.It("should store the blob and record the document", func() {
				// When
				doc, err := service.Upload(ctx, 7, "contract.txt", []byte("payment terms"))

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(doc.UserID).To(gomega.Equal(int64(7)))
				gomega.Expect(doc.Status).To(gomega.Equal(documentDatamodel.StatusUploaded))
				gomega.Expect(doc.BlobName).To(gomega.HaveSuffix("_contract.txt"))
				gomega.Expect(blobs.objects).To(gomega.HaveKey("uploads/" + doc.BlobName))
			})
		})

		ginkgo.Context("with an empty payload", func() {
			ginkgo.It("should reject with the empty file code", func() {
				// When
				_, err := service.Upload(ctx, 7, "contract.txt", nil)

				// Then
				appErr, ok := internal.IsAppError(err)
				gomega.Expect(ok).To(gomega.BeTrue())
				gomega.Expect(appErr.Code).To(gomega.Equal(internal.ErrCodeEmptyFile))
			})
		})

		ginkgo.Context("with a disallowed extension", func() {
			ginkgo.It("should reject with the unsupported type code", func() {
				// When
				_, err := service.Upload(ctx, 7, "contract.exe", []byte("MZ"))

				// Then
				appErr, ok := internal.IsAppError(err)
				gomega.Expect(ok).To(gomega.BeTrue())
				gomega.Expect(appErr.Code).To(gomega.Equal(internal.ErrCodeUnsupportedFileType))
			})
		})

		ginkgo.Context("with a payload above the size limit", func() {
			ginkgo.It("should reject the upload", func() {
				// Given the service was built with a 1 MB limit
				big := make([]byte, 2*1024*1024)

				// When
				_, err := service.Upload(ctx, 7, "contract.txt", big)

				// Then
				gomega.Expect(err).To(gomega.HaveOccurred())
				appErr, ok := internal.IsAppError(err)
				gomega.Expect(ok).To(gomega.BeTrue())
				gomega.Expect(appErr.Type).To(gomega.Equal(internal.ErrorTypeValidation))
			})
		})

		ginkgo.Context("when blob storage is down", func() {
			ginkgo.It("should surface the storage failure code", func() {
				// Given
				blobs.failUp = true

				// When
				_, err := service.Upload(ctx, 7, "contract.txt", []byte("text"))

				// Then
				appErr, ok := internal.IsAppError(err)
				gomega.Expect(ok).To(gomega.BeTrue())
				gomega.Expect(appErr.Code).To(gomega.Equal(internal.ErrCodeBlobStorageFailure))
			})
		})
	})

	ginkgo.Describe("Analyze", func() {
		ginkgo.Context("for an uploaded document", func() {
			ginkgo.It("should run the pipeline and persist the consolidated result", func() {
				// Given
				doc, err := service.Upload(ctx, 7, "contract.txt", []byte("liability text with CPI escalation"))
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				// When
				result, err := service.Analyze(ctx, doc.ID)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(result.Status).To(gomega.Equal(documentDatamodel.StatusSuccess))
				gomega.Expect(result.TriggerHits).To(gomega.Equal(2))

				stored, err := repo.GetByID(ctx, doc.ID)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(stored.Status).To(gomega.Equal(documentDatamodel.StatusSuccess))
				gomega.Expect(stored.ProcessedAt).ToNot(gomega.BeNil())

				persisted, err := repo.LatestResult(ctx, doc.ID)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(persisted.Status).To(gomega.Equal(documentDatamodel.StatusSuccess))
				gomega.Expect(persisted.PromptsTotal).To(gomega.Equal(1))
				gomega.Expect(blobs.objects).To(gomega.HaveKey(fmt.Sprintf("results/%s.analysis.json", doc.BlobName)))
			})
		})

		ginkgo.Context("for an unknown document", func() {
			ginkgo.It("should return not found", func() {
				// When
				_, err := service.Analyze(ctx, 999)

				// Then
				appErr, ok := internal.IsAppError(err)
				gomega.Expect(ok).To(gomega.BeTrue())
				gomega.Expect(appErr.Code).To(gomega.Equal(internal.ErrCodeRecordNotFound))
			})
		})
	})

	ginkgo.Describe("GetDocument", func() {
		ginkgo.Context("when an owner looks up someone else's document", func() {
			ginkgo.It("should answer not found rather than forbidden", func() {
				// Given
				doc, err := service.Upload(ctx, 7, "contract.txt", []byte("text"))
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				// When
				_, err = service.GetDocument(ctx, doc.ID, 8)

				// Then
				appErr, ok := internal.IsAppError(err)
				gomega.Expect(ok).To(gomega.BeTrue())
				gomega.Expect(appErr.Code).To(gomega.Equal(internal.ErrCodeRecordNotFound))
			})

			ginkgo.It("should allow the unrestricted scope", func() {
				// Given
				doc, err := service.Upload(ctx, 7, "contract.txt", []byte("text"))
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				// When
				found, err := service.GetDocument(ctx, doc.ID, 0)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(found.ID).To(gomega.Equal(doc.ID))
			})
		})
	})
})

var _ = ginkgo.Describe("ExtractText", func() {
	ginkgo.Context("with plain text and markdown", func() {
		ginkgo.It("should pass the content through", func() {
			text, err := ExtractText("notes.md", []byte("# Terms\nNet 30."))
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(text).To(gomega.Equal("# Terms\nNet 30."))
		})
	})

	ginkgo.Context("with an unsupported extension", func() {
		ginkgo.It("should reject the file", func() {
			_, err := ExtractText("image.png", []byte{0x89, 0x50})
			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Code).To(gomega.Equal(internal.ErrCodeUnsupportedFileType))
		})
	})

	ginkgo.Context("with a corrupt PDF", func() {
		ginkgo.It("should report an extraction failure", func() {
			_, err := ExtractText("broken.pdf", []byte("not a pdf"))
			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Code).To(gomega.Equal(internal.ErrCodeExtractionFailed))
		})
	})
})

var _ = ginkgo.Describe("BlobName", func() {
	ginkgo.It("should prefix a timestamp and sanitize spaces", func() {
		now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
		gomega.Expect(blobstore.BlobName("my contract.pdf", now)).
			To(gomega.Equal("20260314_092653_my_contract.pdf"))
	})
})
