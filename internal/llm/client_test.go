package llm

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/rakhadavedra/sow-analysis/internal"
)

func TestLLM(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "LLM Module Suite")
}

func newTestClient(url string, maxRetries int) *Client {
	client := NewClient(Config{
		BaseURL:          url,
		APIKey:           "test-key",
		Model:            "test-model",
		RequestTimeout:   5 * time.Second,
		MaxRetries:       maxRetries,
		RetryBackoffBase: time.Millisecond,
	}, slogDiscard())
	client.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return client
}

var _ = ginkgo.Describe("Client", func() {
	var ctx context.Context

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
	})

	ginkgo.Describe("Complete", func() {
		ginkgo.Context("when the endpoint responds normally", func() {
			ginkgo.It("should return the completion content", func() {
				// Given
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					gomega.Expect(r.URL.Path).To(gomega.Equal("/chat/completions"))
					gomega.Expect(r.Header.Get("Authorization")).To(gomega.Equal("Bearer test-key"))
					w.Header().Set("Content-Type", "application/json")
					w.Write([]byte(`{"choices":[{"message":{"content":"{\"detected\":false}"}}]}`))
				}))
				defer server.Close()
				client := newTestClient(server.URL, 3)

				// When
				content, err := client.Complete(ctx, "system prompt", "document text")

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(content).To(gomega.Equal(`{"detected":false}`))
			})
		})

		ginkgo.Context("when the endpoint rate limits then recovers", func() {
			ginkgo.It("should retry and succeed", func() {
				// Given
				var calls int32
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					if atomic.AddInt32(&calls, 1) <= 2 {
						w.WriteHeader(http.StatusTooManyRequests)
						return
					}
					w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
				}))
				defer server.Close()
				client := newTestClient(server.URL, 3)

				// When
				content, err := client.Complete(ctx, "system", "user")

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(content).To(gomega.Equal("ok"))
				gomega.Expect(atomic.LoadInt32(&calls)).To(gomega.Equal(int32(3)))
			})
		})

		ginkgo.Context("when rate limiting never stops", func() {
			ginkgo.It("should give up after the configured retries", func() {
				// Given
				var calls int32
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					atomic.AddInt32(&calls, 1)
					w.WriteHeader(http.StatusTooManyRequests)
				}))
				defer server.Close()
				client := newTestClient(server.URL, 2)

				// When
				_, err := client.Complete(ctx, "system", "user")

				// Then
				gomega.Expect(err).To(gomega.Equal(ErrRateLimited))
				gomega.Expect(atomic.LoadInt32(&calls)).To(gomega.Equal(int32(3)))
			})
		})

		ginkgo.Context("when credentials are rejected", func() {
			ginkgo.It("should fail fast with a configuration error", func() {
				// Given
				var calls int32
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					atomic.AddInt32(&calls, 1)
					w.WriteHeader(http.StatusUnauthorized)
				}))
				defer server.Close()
				client := newTestClient(server.URL, 3)

				// When
				_, err := client.Complete(ctx, "system", "user")

				// Then
				gomega.Expect(err).To(gomega.Equal(ErrNotConfigured))
				gomega.Expect(atomic.LoadInt32(&calls)).To(gomega.Equal(int32(1)))
			})
		})

		ginkgo.Context("when the endpoint returns garbage", func() {
			ginkgo.It("should report an invalid format error", func() {
				// Given
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.Write([]byte("not json at all"))
				}))
				defer server.Close()
				client := newTestClient(server.URL, 3)

				// When
				_, err := client.Complete(ctx, "system", "user")

				// Then
				appErr, ok := internal.IsAppError(err)
				gomega.Expect(ok).To(gomega.BeTrue())
				gomega.Expect(appErr.Code).To(gomega.Equal(internal.ErrCodeLLMInvalidFormat))
			})
		})

		ginkgo.Context("when no endpoint is configured", func() {
			ginkgo.It("should fail without making a request", func() {
				// Given
				client := newTestClient("", 3)

				// When
				_, err := client.Complete(ctx, "system", "user")

				// Then
				gomega.Expect(err).To(gomega.Equal(ErrNotConfigured))
			})
		})
	})
})

var _ = ginkgo.Describe("ExtractJSON", func() {
	ginkgo.Context("with a bare JSON object", func() {
		ginkgo.It("should return it unchanged", func() {
			raw, err := ExtractJSON(`{"detected": true, "overall_risk": "high"}`)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(string(raw)).To(gomega.Equal(`{"detected": true, "overall_risk": "high"}`))
		})
	})

	ginkgo.Context("with a markdown code fence", func() {
		ginkgo.It("should extract from a json-tagged fence", func() {
			input := "Here is the analysis:\n```json\n{\"detected\": false}\n```\nDone."
			raw, err := ExtractJSON(input)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(string(raw)).To(gomega.Equal(`{"detected": false}`))
		})

		ginkgo.It("should extract from an untagged fence", func() {
			input := "```\n{\"detected\": true}\n```"
			raw, err := ExtractJSON(input)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(string(raw)).To(gomega.Equal(`{"detected": true}`))
		})
	})

	ginkgo.Context("with JSON buried in prose", func() {
		ginkgo.It("should extract between the outermost braces", func() {
			input := `The result is {"detected": true, "meta": {"nested": 1}} as requested.`
			raw, err := ExtractJSON(input)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(string(raw)).To(gomega.Equal(`{"detected": true, "meta": {"nested": 1}}`))
		})
	})

	ginkgo.Context("with no JSON at all", func() {
		ginkgo.It("should return the invalid output error", func() {
			_, err := ExtractJSON("I could not analyze this document.")
			gomega.Expect(err).To(gomega.Equal(ErrInvalidOutput))
		})
	})

	ginkgo.Context("with a JSON array instead of an object", func() {
		ginkgo.It("should return the invalid output error", func() {
			_, err := ExtractJSON(`[1, 2, 3]`)
			gomega.Expect(err).To(gomega.Equal(ErrInvalidOutput))
		})
	})
})

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
