package anthropic_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/docqa/pkg/llm"
	"github.com/papercomputeco/docqa/pkg/llm/anthropic"
)

var _ = Describe("Generator", func() {
	var (
		server  *httptest.Server
		headers http.Header
		body    map[string]any
		reply   string
		status  int
	)

	BeforeEach(func() {
		status = http.StatusOK
		reply = `{"content":[{"type":"text","text":"Twenty "},{"type":"text","text":"five."}]}`
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/v1/messages"))
			headers = r.Header.Clone()
			Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())

			w.WriteHeader(status)
			_, _ = w.Write([]byte(reply))
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	newGenerator := func() *anthropic.Generator {
		g, err := anthropic.NewGenerator(anthropic.GeneratorConfig{
			BaseURL:     server.URL,
			APIKey:      "sk-ant",
			Temperature: 0.1,
		})
		Expect(err).NotTo(HaveOccurred())
		return g
	}

	It("requires an API key", func() {
		_, err := anthropic.NewGenerator(anthropic.GeneratorConfig{})
		Expect(err).To(HaveOccurred())
	})

	It("concatenates text blocks and sends auth headers", func() {
		out, err := newGenerator().Generate(context.Background(), "q")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("Twenty five."))

		Expect(headers.Get("x-api-key")).To(Equal("sk-ant"))
		Expect(headers.Get("anthropic-version")).NotTo(BeEmpty())
		Expect(body["temperature"]).To(Equal(0.1))
		Expect(body["max_tokens"]).To(BeNumerically("==", anthropic.DefaultMaxTokens))
	})

	It("wraps API errors in ErrGeneration", func() {
		status = http.StatusTooManyRequests
		reply = `{"error":{"message":"rate limited"}}`

		_, err := newGenerator().Generate(context.Background(), "q")
		Expect(err).To(MatchError(llm.ErrGeneration))
		Expect(err.Error()).To(ContainSubstring("429"))
	})

	It("fails on an empty reply", func() {
		reply = `{"content":[]}`

		_, err := newGenerator().Generate(context.Background(), "q")
		Expect(err).To(MatchError(llm.ErrGeneration))
	})
})
