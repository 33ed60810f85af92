package auth

import (
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/rakhadavedra/sow-analysis/internal"
	"github.com/rakhadavedra/sow-analysis/internal/authz"
)

var _ = ginkgo.Describe("RBACAuthorization", func() {
	var (
		rbac *RBACAuthorization
		next http.HandlerFunc
	)

	requestAs := func(user *internal.SessionUser) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/documents", nil)
		if user != nil {
			req = req.WithContext(internal.ContextWithUser(req.Context(), user))
		}
		return req
	}

	ginkgo.BeforeEach(func() {
		rbac = NewRBACAuthorization(slog.Default())
		next = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}
	})

	ginkgo.Context("when the user holds the permission", func() {
		ginkgo.It("should pass the request through", func() {
			// Given
			user := &internal.SessionUser{ID: 7, Permissions: []string{authz.PermDocumentUpload}}

			// When
			rec := httptest.NewRecorder()
			rbac.Check(next, authz.PermDocumentUpload)(rec, requestAs(user))

			// Then
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNoContent))
		})
	})

	ginkgo.Context("when the user lacks the permission", func() {
		ginkgo.It("should deny with a body naming the missing code", func() {
			// Given
			user := &internal.SessionUser{ID: 7, Permissions: []string{authz.PermDocumentView}}

			// When
			rec := httptest.NewRecorder()
			rbac.Check(next, authz.PermDocumentUpload)(rec, requestAs(user))

			// Then
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusForbidden))
			gomega.Expect(rec.Header().Get("Content-Type")).To(gomega.Equal("application/json"))
			gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring("permission required: document.upload"))
			gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring(string(internal.ErrCodePermissionDenied)))
		})
	})

	ginkgo.Context("when no session user is in context", func() {
		ginkgo.It("should respond unauthorized", func() {
			// When
			rec := httptest.NewRecorder()
			rbac.Check(next, authz.PermDocumentUpload)(rec, requestAs(nil))

			// Then
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		})
	})
})
