package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/docqa/api"
	"github.com/papercomputeco/docqa/api/client"
)

var _ = Describe("Client", func() {
	var (
		server   *httptest.Server
		question string
	)

	BeforeEach(func() {
		question = ""
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method == http.MethodGet && r.URL.Path == "/":
				_ = json.NewEncoder(w).Encode(map[string]string{"message": "docqa is running"})
			case r.Method == http.MethodPost && r.URL.Path == "/ask":
				var req api.AskRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == nil {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				question = *req.Question
				if question == "broken" {
					w.WriteHeader(http.StatusBadGateway)
					_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "model offline", Kind: api.KindGeneration})
					return
				}
				_, _ = w.Write([]byte(`{"answer":"Four weeks.","source_documents":[{"source":"a.pdf","page":2},{"source":"b.md","page":"unknown"}]}`))
			default:
				http.Error(w, "no route", http.StatusNotFound)
			}
		}))
		DeferCleanup(server.Close)
	})

	It("reads the banner", func() {
		msg, err := client.New(server.URL + "/").Banner(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(msg).To(Equal("docqa is running"))
	})

	It("posts the question and decodes answer and sources", func() {
		got, err := client.New(server.URL).Ask(context.Background(), "How long is leave?")
		Expect(err).NotTo(HaveOccurred())
		Expect(question).To(Equal("How long is leave?"))
		Expect(got.Text).To(Equal("Four weeks."))
		Expect(got.Sources).To(HaveLen(2))
		Expect(got.Sources[0].Source).To(Equal("a.pdf"))
		Expect(got.Sources[0].PageLabel()).To(Equal("2"))
		Expect(got.Sources[1].PageLabel()).To(Equal("unknown"))
	})

	It("surfaces the error kind from the server", func() {
		_, err := client.New(server.URL).Ask(context.Background(), "broken")

		var apiErr *client.APIError
		Expect(errors.As(err, &apiErr)).To(BeTrue())
		Expect(apiErr.StatusCode).To(Equal(http.StatusBadGateway))
		Expect(apiErr.Kind).To(Equal(api.KindGeneration))
		Expect(apiErr.Error()).To(ContainSubstring("model offline"))
	})

	It("keeps the raw body when the error is not JSON", func() {
		_, err := client.New(server.URL + "/missing").Banner(context.Background())

		var apiErr *client.APIError
		Expect(errors.As(err, &apiErr)).To(BeTrue())
		Expect(apiErr.StatusCode).To(Equal(http.StatusNotFound))
		Expect(apiErr.Kind).To(BeEmpty())
	})

	It("fails clearly when the server is unreachable", func() {
		_, err := client.New("http://127.0.0.1:1").Banner(context.Background())
		Expect(err).To(MatchError(ContainSubstring("cannot reach docqa API")))
	})
})
