package chroma_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/docqa/pkg/logger"
	"github.com/papercomputeco/docqa/pkg/vector"
	"github.com/papercomputeco/docqa/pkg/vector/chroma"
)

const collectionsPath = "/api/v2/tenants/default_tenant/databases/default_database/collections"

// fakeChroma keeps a single collection in memory.
type fakeChroma struct {
	mu        sync.Mutex
	exists    bool
	space     string
	deletes   int
	ids       []string
	docs      []string
	metadatas []map[string]any
	distances []float32
}

func (f *fakeChroma) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	path := strings.TrimPrefix(r.URL.Path, collectionsPath)

	switch {
	case r.Method == http.MethodPost && path == "":
		var body struct {
			Name     string         `json:"name"`
			Metadata map[string]any `json:"metadata"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.exists = true
		f.space, _ = body.Metadata["hnsw:space"].(string)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "col-1", "name": body.Name, "metadata": body.Metadata})

	case r.Method == http.MethodGet && path == "/docqa":
		if !f.exists {
			http.Error(w, `{"error":"NotFoundError"}`, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "col-1", "name": "docqa", "metadata": map[string]any{"hnsw:space": f.space}})

	case r.Method == http.MethodDelete && path == "/docqa":
		f.deletes++
		if !f.exists {
			http.Error(w, `{"error":"NotFoundError"}`, http.StatusNotFound)
			return
		}
		f.exists = false
		f.ids, f.docs, f.metadatas = nil, nil, nil
		_, _ = w.Write([]byte(`{}`))

	case r.Method == http.MethodPost && path == "/col-1/add":
		var body struct {
			IDs       []string         `json:"ids"`
			Documents []string         `json:"documents"`
			Metadatas []map[string]any `json:"metadatas"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.ids = append(f.ids, body.IDs...)
		f.docs = append(f.docs, body.Documents...)
		f.metadatas = append(f.metadatas, body.Metadatas...)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))

	case r.Method == http.MethodGet && path == "/col-1/count":
		_ = json.NewEncoder(w).Encode(len(f.ids))

	case r.Method == http.MethodPost && path == "/col-1/query":
		// Return entries in reverse insertion order with preset distances
		// to exercise client-side ordering.
		n := len(f.ids)
		ids, docs, metas, dists := []string{}, []string{}, []map[string]any{}, []float32{}
		for i := n - 1; i >= 0; i-- {
			ids = append(ids, f.ids[i])
			docs = append(docs, f.docs[i])
			metas = append(metas, f.metadatas[i])
			dists = append(dists, f.distances[i])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ids":       [][]string{ids},
			"documents": [][]string{docs},
			"metadatas": [][]map[string]any{metas},
			"distances": [][]float32{dists},
		})

	default:
		http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusBadRequest)
	}
}

var _ = Describe("Driver", func() {
	var (
		ctx    context.Context
		log    *slog.Logger
		fake   *fakeChroma
		server *httptest.Server
	)

	BeforeEach(func() {
		ctx = context.Background()
		log = logger.Nop()
		fake = &fakeChroma{}
		server = httptest.NewServer(fake)
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("NewDriver", func() {
		It("should return an error when URL is empty", func() {
			_, err := chroma.NewDriver(chroma.Config{URL: ""}, log)
			Expect(err).To(MatchError(ContainSubstring("chroma URL is required")))
		})

		It("recreates the collection with the cosine space in build mode", func() {
			fake.exists = true

			driver, err := chroma.NewDriver(chroma.Config{URL: server.URL, Mode: vector.ModeBuild}, log)
			Expect(err).NotTo(HaveOccurred())
			Expect(driver).NotTo(BeNil())
			Expect(fake.deletes).To(Equal(1))
			Expect(fake.space).To(Equal("cosine"))
		})

		It("fails with ErrIndexNotFound when loading a missing collection", func() {
			_, err := chroma.NewDriver(chroma.Config{URL: server.URL, Mode: vector.ModeLoad, MaxRetries: 1}, log)
			Expect(errors.Is(err, vector.ErrIndexNotFound)).To(BeTrue())
		})

		It("should succeed after retrying when Chroma becomes available", func() {
			var attempts atomic.Int32
			flaky := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if attempts.Add(1) <= 2 {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				fake.ServeHTTP(w, r)
			}))
			defer flaky.Close()

			driver, err := chroma.NewDriver(chroma.Config{
				URL:           flaky.URL,
				Mode:          vector.ModeBuild,
				MaxRetries:    5,
				RetryDelay:    10 * time.Millisecond,
				MaxRetryDelay: 50 * time.Millisecond,
			}, log)
			Expect(err).NotTo(HaveOccurred())
			Expect(driver).NotTo(BeNil())
			Expect(attempts.Load()).To(BeNumerically(">=", int32(3)))
		})

		It("should return an error after exhausting all retries", func() {
			down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			}))
			defer down.Close()

			_, err := chroma.NewDriver(chroma.Config{
				URL:           down.URL,
				MaxRetries:    3,
				RetryDelay:    10 * time.Millisecond,
				MaxRetryDelay: 50 * time.Millisecond,
			}, log)
			Expect(errors.Is(err, vector.ErrConnection)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("after 3 attempts"))
		})
	})

	Describe("build, persist and query", func() {
		page := 4

		BeforeEach(func() {
			driver, err := chroma.NewDriver(chroma.Config{URL: server.URL, Mode: vector.ModeBuild}, log)
			Expect(err).NotTo(HaveOccurred())
			Expect(driver.InsertAll(ctx, []vector.Entry{
				{ID: "a", Text: "alpha", Source: "A.pdf", Page: &page, Embedding: []float32{1, 0}},
				{ID: "b", Text: "beta", Source: "B.docx", Embedding: []float32{0, 1}},
				{ID: "c", Text: "gamma", Source: "C.docx", Embedding: []float32{0, 1}},
			})).To(Succeed())
			Expect(driver.Persist(ctx)).To(Succeed())
			Expect(driver.Close()).To(Succeed())

			fake.distances = []float32{0.1, 0.4, 0.4}
		})

		It("keeps the collection after Close", func() {
			Expect(fake.exists).To(BeTrue())
		})

		It("returns results by score with insertion order on ties", func() {
			driver, err := chroma.NewDriver(chroma.Config{URL: server.URL, Mode: vector.ModeLoad}, log)
			Expect(err).NotTo(HaveOccurred())

			results, err := driver.Query(ctx, []float32{1, 0}, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
			Expect([]string{results[0].ID, results[1].ID, results[2].ID}).To(Equal([]string{"a", "b", "c"}))
			Expect(results[0].Text).To(Equal("alpha"))
			Expect(results[0].Source).To(Equal("A.pdf"))
			Expect(results[0].Page).To(HaveValue(Equal(4)))
			Expect(results[0].Score).To(BeNumerically("~", 0.9, 1e-6))
			Expect(results[1].Page).To(BeNil())

			n, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(3))
		})

		It("rejects inserts in load mode", func() {
			driver, err := chroma.NewDriver(chroma.Config{URL: server.URL, Mode: vector.ModeLoad}, log)
			Expect(err).NotTo(HaveOccurred())

			err = driver.InsertAll(ctx, []vector.Entry{{ID: "d"}})
			Expect(errors.Is(err, vector.ErrReadOnly)).To(BeTrue())
		})
	})

	It("drops the collection when a build is closed without Persist", func() {
		driver, err := chroma.NewDriver(chroma.Config{URL: server.URL, Mode: vector.ModeBuild}, log)
		Expect(err).NotTo(HaveOccurred())
		Expect(driver.InsertAll(ctx, []vector.Entry{{ID: "a", Embedding: []float32{1}}})).To(Succeed())
		Expect(driver.Close()).To(Succeed())

		Expect(fake.exists).To(BeFalse())
	})
})
