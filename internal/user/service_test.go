package user

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	"github.com/rakhadavedra/sow-analysis/internal"
	"github.com/rakhadavedra/sow-analysis/internal/auth"
	userDatamodel "github.com/rakhadavedra/sow-analysis/internal/core/datamodel/user"
)

func TestUser(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "User Module Suite")
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockUserRepository struct {
	mu    sync.Mutex
	users map[int64]*userDatamodel.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[int64]*userDatamodel.User)}
}

func (m *mockUserRepository) GetByID(ctx context.Context, userID int64) (*userDatamodel.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, errors.New("record not found")
	}
	copied := *u
	return &copied, nil
}

func (m *mockUserRepository) UpdateProfile(ctx context.Context, userID int64, updates map[string]interface{}) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return 0, nil
	}
	if v, ok := updates["full_name"].(string); ok {
		u.FullName = v
	}
	if v, ok := updates["job_title"].(string); ok {
		u.JobTitle = &v
	}
	if v, ok := updates["updated_at"].(time.Time); ok {
		u.UpdatedAt = v
	}
	return 1, nil
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return errors.New("record not found")
	}
	u.PasswordHash = passwordHash
	return nil
}

var _ = ginkgo.Describe("Service", func() {
	var (
		ctx     context.Context
		repo    *mockUserRepository
		service *Service
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		repo = newMockUserRepository()

		hash, err := auth.HashPassword("old-password", bcrypt.MinCost)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		repo.users[7] = &userDatamodel.User{
			ID:           7,
			Email:        "analyst@example.com",
			FullName:     "Pat Analyst",
			PasswordHash: hash,
			IsActive:     true,
		}

		service = NewService(repo, bcrypt.MinCost, slogDiscard())
	})

	ginkgo.Describe("GetProfile", func() {
		ginkgo.It("should return the profile without the password hash", func() {
			// When
			profile, err := service.GetProfile(ctx, 7)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(profile.Email).To(gomega.Equal("analyst@example.com"))
			gomega.Expect(profile.FullName).To(gomega.Equal("Pat Analyst"))
		})

		ginkgo.It("should answer not found for an unknown user", func() {
			// When
			_, err := service.GetProfile(ctx, 99)

			// Then
			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Code).To(gomega.Equal(internal.ErrCodeRecordNotFound))
		})
	})

	ginkgo.Describe("UpdateProfile", func() {
		ginkgo.It("should apply only the provided fields", func() {
			// Given
			title := "Contract Analyst"
			dto := UpdateProfileDTO{JobTitle: &title}

			// When
			profile, err := service.UpdateProfile(ctx, 7, dto)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(*profile.JobTitle).To(gomega.Equal("Contract Analyst"))
			gomega.Expect(profile.FullName).To(gomega.Equal("Pat Analyst"))
		})

		ginkgo.It("should reject a blank full name", func() {
			// Given
			blank := "   "

			// When
			_, err := service.UpdateProfile(ctx, 7, UpdateProfileDTO{FullName: &blank})

			// Then
			gomega.Expect(err).To(gomega.BeAssignableToTypeOf(ValidationError{}))
		})
	})

	ginkgo.Describe("ChangePassword", func() {
		ginkgo.Context("with the correct current password", func() {
			ginkgo.It("should store a hash that verifies the new password", func() {
				// When
				err := service.ChangePassword(ctx, 7, ChangePasswordDTO{
					CurrentPassword: "old-password",
					NewPassword:     "brand-new-password",
				})

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				stored := repo.users[7].PasswordHash
				gomega.Expect(auth.VerifyPassword(stored, "brand-new-password")).To(gomega.Succeed())
				gomega.Expect(auth.VerifyPassword(stored, "old-password")).ToNot(gomega.Succeed())
			})
		})

		ginkgo.Context("with a wrong current password", func() {
			ginkgo.It("should refuse and leave the hash untouched", func() {
				// Given
				before := repo.users[7].PasswordHash

				// When
				err := service.ChangePassword(ctx, 7, ChangePasswordDTO{
					CurrentPassword: "guess",
					NewPassword:     "brand-new-password",
				})

				// Then
				appErr, ok := internal.IsAppError(err)
				gomega.Expect(ok).To(gomega.BeTrue())
				gomega.Expect(appErr.Code).To(gomega.Equal(internal.ErrCodeInvalidCredentials))
				gomega.Expect(repo.users[7].PasswordHash).To(gomega.Equal(before))
			})
		})

		ginkgo.Context("with an invalid new password", func() {
			ginkgo.It("should reject short passwords", func() {
				err := service.ChangePassword(ctx, 7, ChangePasswordDTO{
					CurrentPassword: "old-password",
					NewPassword:     "short",
				})
				gomega.Expect(err).To(gomega.BeAssignableToTypeOf(ValidationError{}))
			})

			ginkgo.It("should reject reusing the current password", func() {
				err := service.ChangePassword(ctx, 7, ChangePasswordDTO{
					CurrentPassword: "old-password",
					NewPassword:     "old-password",
				})
				gomega.Expect(err).To(gomega.BeAssignableToTypeOf(ValidationError{}))
			})
		})
	})
})
