package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/docqa/pkg/llm"
	"github.com/papercomputeco/docqa/pkg/llm/ollama"
)

var _ = Describe("Generator", func() {
	var (
		server *httptest.Server
		body   map[string]any
		status int
	)

	BeforeEach(func() {
		status = http.StatusOK
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/api/chat"))
			Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())

			if status != http.StatusOK {
				w.WriteHeader(status)
				_, _ = w.Write([]byte("boom"))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"message": map[string]any{"role": "assistant", "content": "25 days."},
				"done":    true,
			})
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("sends a non-streaming chat request with the configured temperature", func() {
		g, err := ollama.NewGenerator(ollama.GeneratorConfig{BaseURL: server.URL, Temperature: 0.1})
		Expect(err).NotTo(HaveOccurred())

		out, err := g.Generate(context.Background(), "How many days?")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("25 days."))

		Expect(body["model"]).To(Equal(ollama.DefaultModel))
		Expect(body["stream"]).To(BeFalse())
		Expect(body["options"]).To(HaveKeyWithValue("temperature", 0.1))
		Expect(body["messages"]).To(ConsistOf(HaveKeyWithValue("content", "How many days?")))
	})

	It("wraps failures in ErrGeneration", func() {
		status = http.StatusInternalServerError
		g, err := ollama.NewGenerator(ollama.GeneratorConfig{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		_, err = g.Generate(context.Background(), "q")
		Expect(err).To(MatchError(llm.ErrGeneration))
		Expect(err.Error()).To(ContainSubstring("status 500"))
	})

	It("wraps connection errors in ErrGeneration", func() {
		g, err := ollama.NewGenerator(ollama.GeneratorConfig{BaseURL: "http://127.0.0.1:1"})
		Expect(err).NotTo(HaveOccurred())

		_, err = g.Generate(context.Background(), "q")
		Expect(err).To(MatchError(llm.ErrGeneration))
	})
})
