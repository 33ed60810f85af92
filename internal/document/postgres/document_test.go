package postgres

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	documentDatamodel "github.com/rakhadavedra/sow-analysis/internal/core/datamodel/document"
	"github.com/rakhadavedra/sow-analysis/internal/document"
)

func TestDocumentRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "DocumentRepository Suite")
}

type SQLiteDocument struct {
	ID          int64      `gorm:"primaryKey"`
	UserID      int64      `gorm:"column:user_id;not null"`
	FileName    string     `gorm:"column:file_name;not null"`
	BlobName    string     `gorm:"column:blob_name;not null"`
	ContentType string     `gorm:"column:content_type"`
	SizeBytes   int64      `gorm:"column:size_bytes"`
	Status      string     `gorm:"column:status;default:'uploaded'"`
	UploadedAt  time.Time  `gorm:"column:uploaded_at"`
	ProcessedAt *time.Time `gorm:"column:processed_at"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
}

func (SQLiteDocument) TableName() string {
	return "documents"
}

type SQLiteAnalysisResult struct {
	ID             int64     `gorm:"primaryKey"`
	DocumentID     int64     `gorm:"column:document_id;not null"`
	ResultBlobName string    `gorm:"column:result_blob_name;not null"`
	Status         string    `gorm:"column:status;not null"`
	PromptsTotal   int       `gorm:"column:prompts_total"`
	PromptsFailed  int       `gorm:"column:prompts_failed"`
	TriggerHits    int       `gorm:"column:trigger_hits"`
	Payload        string    `gorm:"column:payload"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (SQLiteAnalysisResult) TableName() string {
	return "analysis_results"
}

var _ = Describe("DocumentRepository", func() {
	var (
		db   *gorm.DB
		repo *Repository
		ctx  context.Context
	)

	insertDoc := func(userID int64, blobName, status string, uploadedAt time.Time) *documentDatamodel.Document {
		doc := &documentDatamodel.Document{
			UserID:     userID,
			FileName:   "contract.txt",
			BlobName:   blobName,
			Status:     status,
			UploadedAt: uploadedAt,
			CreatedAt:  time.Now(),
			UpdatedAt:  time.Now(),
		}
		Expect(repo.Insert(ctx, doc)).To(Succeed())
		return doc
	}

	BeforeEach(func() {
		var err error

		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(&SQLiteDocument{}, &SQLiteAnalysisResult{})
		Expect(err).NotTo(HaveOccurred())

		repo = NewRepository(db)
		ctx = context.Background()
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).To(Succeed())
	})

	Describe("Insert and GetByID", func() {
		It("should round-trip a document", func() {
			doc := insertDoc(1, "20260314_092653_contract.txt", documentDatamodel.StatusUploaded, time.Now())
			Expect(doc.ID).NotTo(BeZero())

			found, err := repo.GetByID(ctx, doc.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(found.BlobName).To(Equal("20260314_092653_contract.txt"))
			Expect(found.Status).To(Equal(documentDatamodel.StatusUploaded))
		})

		It("should return an error for an unknown id", func() {
			_, err := repo.GetByID(ctx, 999)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("List", func() {
		BeforeEach(func() {
			now := time.Now()
			insertDoc(1, "blob-a", documentDatamodel.StatusSuccess, now.Add(-2*time.Hour))
			insertDoc(1, "blob-b", documentDatamodel.StatusUploaded, now.Add(-1*time.Hour))
			insertDoc(2, "blob-c", documentDatamodel.StatusSuccess, now)
		})

		It("should scope to one user", func() {
			docs, total, err := repo.List(ctx, 1, document.ListFilter{Page: 1, PerPage: 10})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(int64(2)))
			Expect(docs).To(HaveLen(2))
		})

		It("should return every user's documents for the unrestricted scope", func() {
			_, total, err := repo.List(ctx, 0, document.ListFilter{Page: 1, PerPage: 10})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(int64(3)))
		})

		It("should filter by status and order newest first", func() {
			docs, total, err := repo.List(ctx, 0, document.ListFilter{
				Status: documentDatamodel.StatusSuccess, Page: 1, PerPage: 10,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(int64(2)))
			Expect(docs[0].BlobName).To(Equal("blob-c"))
			Expect(docs[1].BlobName).To(Equal("blob-a"))
		})

		It("should paginate", func() {
			docs, total, err := repo.List(ctx, 0, document.ListFilter{Page: 2, PerPage: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(int64(3)))
			Expect(docs).To(HaveLen(1))
		})
	})

	Describe("UpdateStatus", func() {
		It("should set processed_at only when the run finished", func() {
			doc := insertDoc(1, "blob-d", documentDatamodel.StatusUploaded, time.Now())

			Expect(repo.UpdateStatus(ctx, doc.ID, documentDatamodel.StatusProcessing, false)).To(Succeed())
			mid, err := repo.GetByID(ctx, doc.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(mid.Status).To(Equal(documentDatamodel.StatusProcessing))
			Expect(mid.ProcessedAt).To(BeNil())

			Expect(repo.UpdateStatus(ctx, doc.ID, documentDatamodel.StatusSuccess, true)).To(Succeed())
			done, err := repo.GetByID(ctx, doc.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(done.Status).To(Equal(documentDatamodel.StatusSuccess))
			Expect(done.ProcessedAt).NotTo(BeNil())
		})
	})

	Describe("Results", func() {
		It("should return the most recent result", func() {
			doc := insertDoc(1, "blob-e", documentDatamodel.StatusSuccess, time.Now())

			older := &documentDatamodel.AnalysisResult{
				DocumentID: doc.ID, ResultBlobName: "blob-e.analysis.json",
				Status: documentDatamodel.StatusPartialSuccess, PromptsTotal: 3, PromptsFailed: 1,
				Payload: "{}", CreatedAt: time.Now().Add(-time.Hour),
			}
			newer := &documentDatamodel.AnalysisResult{
				DocumentID: doc.ID, ResultBlobName: "blob-e.analysis.json",
				Status: documentDatamodel.StatusSuccess, PromptsTotal: 3, TriggerHits: 2,
				Payload: "{}", CreatedAt: time.Now(),
			}
			Expect(repo.InsertResult(ctx, older)).To(Succeed())
			Expect(repo.InsertResult(ctx, newer)).To(Succeed())

			latest, err := repo.LatestResult(ctx, doc.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(latest.Status).To(Equal(documentDatamodel.StatusSuccess))
			Expect(latest.TriggerHits).To(Equal(2))
		})

		It("should error when no result exists", func() {
			doc := insertDoc(1, "blob-f", documentDatamodel.StatusUploaded, time.Now())
			_, err := repo.LatestResult(ctx, doc.ID)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("NextUploaded", func() {
		It("should return the oldest waiting document", func() {
			now := time.Now()
			insertDoc(1, "blob-g", documentDatamodel.StatusSuccess, now.Add(-3*time.Hour))
			oldest := insertDoc(1, "blob-h", documentDatamodel.StatusUploaded, now.Add(-2*time.Hour))
			insertDoc(2, "blob-i", documentDatamodel.StatusUploaded, now.Add(-1*time.Hour))

			next, err := repo.NextUploaded(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(next.ID).To(Equal(oldest.ID))
		})

		It("should error on an empty queue", func() {
			_, err := repo.NextUploaded(ctx)
			Expect(err).To(HaveOccurred())
		})
	})
})
