package prompt

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/rakhadavedra/sow-analysis/internal/cache"
	promptDatamodel "github.com/rakhadavedra/sow-analysis/internal/core/datamodel/prompt"
)

func TestPrompt(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Prompt Module Suite")
}

type mockPromptRepository struct {
	prompts       map[int64]*PromptWithVariables
	nextID        int64
	activeCalls   int
	returnError   bool
	errorToReturn error
}

func newMockPromptRepository() *mockPromptRepository {
	return &mockPromptRepository{
		prompts: map[int64]*PromptWithVariables{
			1: {
				Prompt: promptDatamodel.Prompt{
					ID: 1, ClauseID: "liability", Title: "Liability Cap",
					SystemPrompt: "Check {document_type} for liability clauses in {jurisdiction}.",
					IsActive:     true, DisplayOrder: 1,
				},
				Variables: map[string]string{"document_type": "SOW", "jurisdiction": "Indonesia"},
			},
			2: {
				Prompt: promptDatamodel.Prompt{
					ID: 2, ClauseID: "payment_terms", Title: "Payment Terms",
					SystemPrompt: "Review payment terms.",
					IsActive:     false, DisplayOrder: 2,
				},
				Variables: map[string]string{},
			},
		},
		nextID: 10,
	}
}

func (m *mockPromptRepository) ActivePrompts(ctx context.Context) ([]PromptWithVariables, error) {
	if m.returnError {
		return nil, m.errorToReturn
	}
	m.activeCalls++
	var out []PromptWithVariables
	for _, p := range m.prompts {
		if p.IsActive {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockPromptRepository) ListPrompts(ctx context.Context) ([]PromptWithVariables, error) {
	var out []PromptWithVariables
	for _, p := range m.prompts {
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockPromptRepository) GetPromptByID(ctx context.Context, promptID int64) (*PromptWithVariables, error) {
	if p, ok := m.prompts[promptID]; ok {
		return p, nil
	}
	return nil, errors.New("record not found")
}

func (m *mockPromptRepository) CreatePrompt(ctx context.Context, p *promptDatamodel.Prompt, variables map[string]string) error {
	if m.returnError {
		return m.errorToReturn
	}
	m.nextID++
	p.ID = m.nextID
	m.prompts[p.ID] = &PromptWithVariables{Prompt: *p, Variables: variables}
	return nil
}

func (m *mockPromptRepository) UpdatePrompt(ctx context.Context, promptID int64, updates map[string]interface{}, variables map[string]string) (int64, error) {
	if m.returnError {
		return 0, m.errorToReturn
	}
	if _, ok := m.prompts[promptID]; !ok {
		return 0, nil
	}
	return 1, nil
}

func (m *mockPromptRepository) DeletePrompt(ctx context.Context, promptID int64) (int64, error) {
	if _, ok := m.prompts[promptID]; !ok {
		return 0, nil
	}
	delete(m.prompts, promptID)
	return 1, nil
}

var _ = ginkgo.Describe("PromptService", func() {
	var (
		service  *Service
		mockRepo *mockPromptRepository
		ctx      context.Context
	)

	ginkgo.BeforeEach(func() {
		mockRepo = newMockPromptRepository()
		store := cache.NewStore(cache.Options{}, slog.Default())
		service = NewService(mockRepo, store, slog.Default())
		ctx = context.Background()
	})

	ginkgo.Describe("ActivePrompts", func() {
		ginkgo.It("should render variables into the system prompt", func() {
			// When
			prompts, err := service.ActivePrompts(ctx)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(prompts).To(gomega.HaveLen(1))
			gomega.Expect(prompts[0].ClauseID).To(gomega.Equal("liability"))
			gomega.Expect(prompts[0].SystemPrompt).To(gomega.Equal("Check SOW for liability clauses in Indonesia."))
		})

		ginkgo.It("should serve repeated calls from cache", func() {
			// Given
			_, err := service.ActivePrompts(ctx)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			// When
			_, err = service.ActivePrompts(ctx)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(mockRepo.activeCalls).To(gomega.Equal(1))
		})
	})

	ginkgo.Describe("CreatePrompt", func() {
		ginkgo.It("should invalidate the cached active set", func() {
			// Given
			_, err := service.ActivePrompts(ctx)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			// When
			active := true
			_, err = service.CreatePrompt(ctx, CreatePromptDTO{
				ClauseID:     "termination",
				Title:        "Termination",
				SystemPrompt: "Check termination clauses.",
				IsActive:     &active,
			})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			prompts, err := service.ActivePrompts(ctx)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(prompts).To(gomega.HaveLen(2))
			gomega.Expect(mockRepo.activeCalls).To(gomega.Equal(2))
		})

		ginkgo.It("should reject a prompt without clause_id", func() {
			// When
			_, err := service.CreatePrompt(ctx, CreatePromptDTO{
				Title:        "No Clause",
				SystemPrompt: "text",
			})

			// Then
			gomega.Expect(err).To(gomega.HaveOccurred())
			gomega.Expect(err.Error()).To(gomega.ContainSubstring("clause_id is required"))
		})
	})

	ginkgo.Describe("UpdatePrompt", func() {
		ginkgo.It("should return not found for a missing prompt", func() {
			// Given
			title := "New Title"

			// When
			err := service.UpdatePrompt(ctx, 999, UpdatePromptDTO{Title: &title})

			// Then
			gomega.Expect(err).To(gomega.HaveOccurred())
		})
	})
})

var _ = ginkgo.Describe("PromptWithVariables", func() {
	ginkgo.Describe("Render", func() {
		ginkgo.It("should leave unknown placeholders untouched", func() {
			// Given
			p := PromptWithVariables{
				Prompt: promptDatamodel.Prompt{
					ClauseID:     "test",
					SystemPrompt: "Known: {known}. Unknown: {unknown}.",
				},
				Variables: map[string]string{"known": "value"},
			}

			// When
			rendered := p.Render()

			// Then
			gomega.Expect(rendered.SystemPrompt).To(gomega.Equal("Known: value. Unknown: {unknown}."))
		})

		ginkgo.It("should substitute repeated placeholders", func() {
			// Given
			p := PromptWithVariables{
				Prompt: promptDatamodel.Prompt{
					SystemPrompt: "{x} and {x}",
				},
				Variables: map[string]string{"x": "twice"},
			}

			// When
			rendered := p.Render()

			// Then
			gomega.Expect(rendered.SystemPrompt).To(gomega.Equal("twice and twice"))
		})
	})
})
