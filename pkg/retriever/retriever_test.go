package retriever_test

import (
	"bytes"
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/docqa/pkg/embeddings"
	"github.com/papercomputeco/docqa/pkg/logger"
	"github.com/papercomputeco/docqa/pkg/retriever"
	testutils "github.com/papercomputeco/docqa/pkg/utils/test"
	"github.com/papercomputeco/docqa/pkg/vector"
	"github.com/papercomputeco/docqa/pkg/vector/inmemory"
)

func page(n int) *int { return &n }

var _ = Describe("Retriever", func() {
	var (
		ctx      context.Context
		embedder *testutils.MockEmbedder
		index    *inmemory.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		embedder = testutils.NewMockEmbedder()
		embedder.Embeddings["about A"] = []float32{1, 0, 0}
		index = inmemory.NewDriver(logger.Nop())

		Expect(index.InsertAll(ctx, []vector.Entry{
			{ID: "a1", Text: "A first", Source: "A", Page: page(1), Embedding: []float32{1, 0, 0}},
			{ID: "b3", Text: "B third", Source: "B", Page: page(3), Embedding: []float32{0, 1, 0}},
			{ID: "a2", Text: "A second", Source: "A", Page: page(2), Embedding: []float32{0.9, 0.1, 0}},
			{ID: "c", Text: "C", Source: "C", Embedding: []float32{0, 0, 1}},
		})).To(Succeed())
		Expect(index.Persist(ctx)).To(Succeed())
	})

	newRetriever := func(k int) *retriever.Retriever {
		r, err := retriever.New(retriever.Config{Embedder: embedder, Index: index, K: k, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())
		return r
	}

	It("defaults k to 3", func() {
		Expect(newRetriever(0).K()).To(Equal(retriever.DefaultK))
	})

	It("ranks the closest chunk first", func() {
		results, err := newRetriever(0).Retrieve(ctx, "about A")
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(3))
		Expect(results[0].Source).To(Equal("A"))
		Expect(*results[0].Page).To(Equal(1))
		Expect(results[1].ID).To(Equal("a2"))
	})

	It("embeds the question exactly once", func() {
		_, err := newRetriever(2).Retrieve(ctx, "about A")
		Expect(err).NotTo(HaveOccurred())
		Expect(embedder.Calls()).To(Equal(1))
	})

	It("is deterministic for the same question", func() {
		r := newRetriever(0)
		first, err := r.Retrieve(ctx, "about A")
		Expect(err).NotTo(HaveOccurred())
		second, err := r.Retrieve(ctx, "about A")
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(Equal(first))
	})

	It("returns no more than the index holds", func() {
		results, err := newRetriever(10).Retrieve(ctx, "about A")
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(4))
	})

	It("returns an empty set from an empty index", func() {
		empty := inmemory.NewDriver(logger.Nop())
		Expect(empty.Persist(ctx)).To(Succeed())

		r, err := retriever.New(retriever.Config{Embedder: embedder, Index: empty})
		Expect(err).NotTo(HaveOccurred())

		results, err := r.Retrieve(ctx, "anything")
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(BeEmpty())
	})

	It("keeps the embedding error kind", func() {
		embedder.FailOn = "broken"

		_, err := newRetriever(0).Retrieve(ctx, "broken")
		Expect(errors.Is(err, embeddings.ErrEmbedding)).To(BeTrue())
		Expect(errors.Is(err, retriever.ErrRetrieval)).To(BeFalse())
	})

	It("wraps index failures in ErrRetrieval", func() {
		mock := testutils.NewMockVectorDriver()
		mock.QueryErr = vector.ErrConnection

		r, err := retriever.New(retriever.Config{Embedder: embedder, Index: mock})
		Expect(err).NotTo(HaveOccurred())

		_, err = r.Retrieve(ctx, "q")
		Expect(err).To(MatchError(retriever.ErrRetrieval))
		Expect(err).To(MatchError(vector.ErrConnection))
	})

	It("logs a preview of each retrieved chunk at debug level", func() {
		var buf bytes.Buffer
		long := strings.Repeat("x", 300)
		mock := testutils.NewMockVectorDriver()
		mock.Results = []vector.QueryResult{{Entry: vector.Entry{Text: long, Source: "doc.docx"}, Score: 1}}

		r, err := retriever.New(retriever.Config{
			Embedder: embedder,
			Index:    mock,
			Logger:   logger.New(logger.WithDebug(true), logger.WithWriter(&buf)),
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = r.Retrieve(ctx, "q")
		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(ContainSubstring("source=doc.docx"))
		Expect(buf.String()).To(ContainSubstring("page=unknown"))
		Expect(buf.String()).To(ContainSubstring(strings.Repeat("x", 200) + "..."))
		Expect(buf.String()).NotTo(ContainSubstring(strings.Repeat("x", 201)))
	})

	It("rejects a missing index", func() {
		_, err := retriever.New(retriever.Config{Embedder: embedder})
		Expect(err).To(HaveOccurred())
	})
})
