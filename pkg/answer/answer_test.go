package answer_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/docqa/pkg/answer"
	"github.com/papercomputeco/docqa/pkg/embeddings"
	"github.com/papercomputeco/docqa/pkg/eventstream"
	"github.com/papercomputeco/docqa/pkg/llm"
	"github.com/papercomputeco/docqa/pkg/logger"
	"github.com/papercomputeco/docqa/pkg/retriever"
	testutils "github.com/papercomputeco/docqa/pkg/utils/test"
	"github.com/papercomputeco/docqa/pkg/vector"
	"github.com/papercomputeco/docqa/pkg/vector/inmemory"
)

func page(n int) *int { return &n }

type sink struct {
	mu     sync.Mutex
	events []*eventstream.Event
}

func (s *sink) Enqueue(e *eventstream.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return true
}

var _ = Describe("Source", func() {
	It("marshals a missing page as unknown", func() {
		out, err := json.Marshal([]answer.Source{{Source: "a.pdf", Page: page(1)}, {Source: "b.docx"}})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(out)).To(Equal(`[{"source":"a.pdf","page":1},{"source":"b.docx","page":"unknown"}]`))
	})

	It("reads back numeric and unknown pages", func() {
		var sources []answer.Source
		Expect(json.Unmarshal([]byte(`[{"source":"a","page":4},{"source":"b","page":"unknown"}]`), &sources)).To(Succeed())
		Expect(*sources[0].Page).To(Equal(4))
		Expect(sources[1].Page).To(BeNil())
		Expect(sources[1].PageLabel()).To(Equal("unknown"))
	})
})

var _ = Describe("Pipeline", func() {
	var (
		ctx       context.Context
		embedder  *testutils.MockEmbedder
		index     *inmemory.Driver
		generator *testutils.MockGenerator
		events    *sink
	)

	BeforeEach(func() {
		ctx = context.Background()
		embedder = testutils.NewMockEmbedder()
		index = inmemory.NewDriver(logger.Nop())
		generator = testutils.NewMockGenerator("Twenty five days.")
		events = &sink{}
	})

	newPipeline := func() *answer.Pipeline {
		r, err := retriever.New(retriever.Config{Embedder: embedder, Index: index, K: 3})
		Expect(err).NotTo(HaveOccurred())

		p, err := answer.New(answer.Config{
			Retriever: r,
			Generator: generator,
			Events:    events,
			Logger:    logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
		return p
	}

	Context("with chunks from two documents", func() {
		BeforeEach(func() {
			embedder.Embeddings["How much leave?"] = []float32{1, 0}
			Expect(index.InsertAll(ctx, []vector.Entry{
				{ID: "b", Text: "B talks about parking.", Source: "B", Page: page(3), Embedding: []float32{0, 1}},
				{ID: "a", Text: "A grants 25 days of leave.", Source: "A", Page: page(1), Embedding: []float32{1, 0.1}},
			})).To(Succeed())
			Expect(index.Persist(ctx)).To(Succeed())
		})

		It("cites the closest document first", func() {
			ans, err := newPipeline().Answer(ctx, "How much leave?")
			Expect(err).NotTo(HaveOccurred())
			Expect(ans.Text).To(Equal("Twenty five days."))
			Expect(ans.Sources).To(HaveLen(2))
			Expect(ans.Sources[0].Source).To(Equal("A"))
			Expect(*ans.Sources[0].Page).To(Equal(1))
			Expect(ans.Sources[1].Source).To(Equal("B"))
		})

		It("builds the prompt from the retrieved chunks in order", func() {
			_, err := newPipeline().Answer(ctx, "How much leave?")
			Expect(err).NotTo(HaveOccurred())

			prompts := generator.Prompts()
			Expect(prompts).To(HaveLen(1))
			Expect(prompts[0]).To(ContainSubstring("A grants 25 days of leave.\n\nB talks about parking."))
			Expect(prompts[0]).To(ContainSubstring("Question: How much leave?"))
		})

		It("returns one source per retrieved chunk without deduplication", func() {
			dup := inmemory.NewDriver(logger.Nop())
			Expect(dup.InsertAll(ctx, []vector.Entry{
				{ID: "1", Text: "one", Source: "A", Embedding: []float32{1, 0}},
				{ID: "2", Text: "two", Source: "A", Embedding: []float32{1, 0}},
			})).To(Succeed())
			index = dup

			ans, err := newPipeline().Answer(ctx, "How much leave?")
			Expect(err).NotTo(HaveOccurred())
			Expect(ans.Sources).To(Equal([]answer.Source{{Source: "A"}, {Source: "A"}}))
		})

		It("enqueues a question answered event", func() {
			_, err := newPipeline().Answer(ctx, "How much leave?")
			Expect(err).NotTo(HaveOccurred())
			Expect(events.events).To(HaveLen(1))
			Expect(events.events[0].EventType).To(Equal(eventstream.EventTypeQuestionAnswered))
		})
	})

	It("still asks the model when the index is empty", func() {
		Expect(index.Persist(ctx)).To(Succeed())
		generator.Reply = "I don't know."

		ans, err := newPipeline().Answer(ctx, "What is the refund policy?")
		Expect(err).NotTo(HaveOccurred())
		Expect(ans.Text).To(Equal("I don't know."))
		Expect(ans.Sources).To(BeEmpty())
		Expect(generator.Prompts()).To(HaveLen(1))

		out, err := json.Marshal(ans)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(out)).To(Equal(`{"answer":"I don't know.","source_documents":[]}`))
	})

	It("surfaces embedding failures without generating", func() {
		embedder.FailOn = "q"

		_, err := newPipeline().Answer(ctx, "q")
		Expect(errors.Is(err, embeddings.ErrEmbedding)).To(BeTrue())
		Expect(generator.Prompts()).To(BeEmpty())
		Expect(events.events).To(BeEmpty())
	})

	It("surfaces generation failures", func() {
		generator.Fail = true

		_, err := newPipeline().Answer(ctx, "q")
		Expect(err).To(MatchError(llm.ErrGeneration))
		Expect(events.events).To(BeEmpty())
	})
})
