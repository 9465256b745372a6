package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/docqa/pkg/llm"
	"github.com/papercomputeco/docqa/pkg/llm/openai"
)

var _ = Describe("Generator", func() {
	var (
		server *httptest.Server
		body   map[string]any
		fail   bool
	)

	BeforeEach(func() {
		fail = false
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/chat/completions"))
			_ = json.NewDecoder(r.Body).Decode(&body)

			w.Header().Set("Content-Type", "application/json")
			if fail {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":      "chatcmpl-1",
				"object":  "chat.completion",
				"created": 0,
				"model":   body["model"],
				"choices": []map[string]any{{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]any{"role": "assistant", "content": "I don't know."},
				}},
			})
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	newGenerator := func() *openai.Generator {
		g, err := openai.NewGenerator(openai.GeneratorConfig{
			BaseURL:     server.URL,
			APIKey:      "sk-test",
			Temperature: 0.1,
		})
		Expect(err).NotTo(HaveOccurred())
		return g
	}

	It("requires an API key", func() {
		_, err := openai.NewGenerator(openai.GeneratorConfig{})
		Expect(err).To(HaveOccurred())
	})

	It("returns the first choice", func() {
		out, err := newGenerator().Generate(context.Background(), "Anything?")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("I don't know."))
		Expect(body["model"]).To(Equal(openai.DefaultModel))
		Expect(body["temperature"]).To(Equal(0.1))
	})

	It("wraps API errors in ErrGeneration", func() {
		fail = true

		_, err := newGenerator().Generate(context.Background(), "q")
		Expect(err).To(MatchError(llm.ErrGeneration))
	})
})
