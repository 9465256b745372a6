package chunker_test

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/docqa/pkg/chunker"
	"github.com/papercomputeco/docqa/pkg/document"
)

func sentences(from, to int) string {
	var b strings.Builder
	for i := from; i < to; i++ {
		fmt.Fprintf(&b, "Sentence %02d is about retrieval. ", i)
	}
	return strings.TrimSpace(b.String())
}

// words returns n unique five-letter words, each followed by a space.
func words(n int) string {
	var b strings.Builder
	for i := range n {
		fmt.Fprintf(&b, "w%04d ", i)
	}
	return b.String()
}

// sharedBoundary is the length of the longest suffix of prev that is also a
// prefix of next.
func sharedBoundary(prev, next string) int {
	for k := min(len(prev), len(next)); k > 0; k-- {
		if strings.HasSuffix(prev, next[:k]) {
			return k
		}
	}
	return 0
}

// mixedText builds text with paragraphs, lines, sentences and long runs
// without any separator.
func mixedText(r *rand.Rand) string {
	var b strings.Builder
	for range 1 + r.IntN(6) {
		for range 1 + r.IntN(12) {
			switch r.IntN(5) {
			case 0:
				b.WriteString(strings.Repeat("x", 1+r.IntN(400)))
			case 1:
				b.WriteString("Grüße aus Köln! ")
			case 2:
				b.WriteString("第一句话。")
			case 3:
				b.WriteString("a line\n")
			default:
				fmt.Fprintf(&b, "Sentence %d is about retrieval. ", r.IntN(1000))
			}
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

var _ = Describe("Splitter", func() {
	var splitter *chunker.Splitter

	BeforeEach(func() {
		var err error
		splitter, err = chunker.New(chunker.Config{Size: 100, Overlap: 40})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("New", func() {
		It("rejects an overlap that is not smaller than the size", func() {
			_, err := chunker.New(chunker.Config{Size: 100, Overlap: 100})
			Expect(err).To(MatchError(chunker.ErrInvalidConfig))
		})

		It("rejects a non-positive size", func() {
			_, err := chunker.New(chunker.Config{Size: 0})
			Expect(err).To(MatchError(chunker.ErrInvalidConfig))
		})

		It("accepts the defaults", func() {
			_, err := chunker.New(chunker.Config{Size: chunker.DefaultSize, Overlap: chunker.DefaultOverlap})
			Expect(err).NotTo(HaveOccurred())
		})
	})

	It("returns a single trimmed chunk for a short document", func() {
		chunks, err := splitter.Split(document.Document{
			Text:     "  Short text.\n",
			Metadata: document.Metadata{Source: "a.docx"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(HaveLen(1))
		Expect(chunks[0].Text).To(Equal("Short text."))
		Expect(chunks[0].Index).To(Equal(0))
		Expect(chunks[0].Metadata.Source).To(Equal("a.docx"))
	})

	It("fails on whitespace-only input", func() {
		_, err := splitter.Split(document.Document{Text: " \n\n\t ", Metadata: document.Metadata{Source: "blank.docx"}})
		Expect(err).To(MatchError(chunker.ErrEmptyInput))
	})

	It("splits two long paragraphs into several bounded chunks", func() {
		text := sentences(0, 6) + "\n\n" + sentences(6, 12)

		chunks, err := splitter.Split(document.Document{Text: text, Metadata: document.Metadata{Source: "two.docx"}})
		Expect(err).NotTo(HaveOccurred())
		Expect(len(chunks)).To(BeNumerically(">=", 2))

		for _, c := range chunks {
			Expect(utf8.RuneCountInString(c.Text)).To(BeNumerically("<=", 100))
			Expect(c.Text).NotTo(BeEmpty())
		}
		Expect(chunks[0].Text).To(HavePrefix("Sentence 00"))
		Expect(chunks[len(chunks)-1].Text).To(HaveSuffix("Sentence 11 is about retrieval."))
	})

	DescribeTable("bounds chunks and overlaps consecutive ones",
		func(size, overlap int) {
			s, err := chunker.New(chunker.Config{Size: size, Overlap: overlap})
			Expect(err).NotTo(HaveOccurred())

			chunks := s.SplitText(words(3000))
			Expect(len(chunks)).To(BeNumerically(">", 1))
			Expect(chunks[0]).To(HavePrefix("w0000"))
			Expect(chunks[len(chunks)-1]).To(HaveSuffix("w2999"))

			for i, c := range chunks {
				Expect(utf8.RuneCountInString(c)).To(BeNumerically("<=", size), "chunk %d", i)
				if i == 0 {
					continue
				}
				shared := sharedBoundary(chunks[i-1], c)
				Expect(shared).To(BeNumerically("<=", overlap), "chunk %d", i)
				Expect(shared).To(BeNumerically(">=", max(0, overlap-len("w0000 ")-1)), "chunk %d", i)
			}
		},
		Entry("no overlap", 20, 0),
		Entry("one word of overlap", 20, 6),
		Entry("small", 50, 10),
		Entry("medium", 100, 40),
		Entry("large overlap", 64, 57),
		Entry("wide", 250, 100),
		Entry("defaults", chunker.DefaultSize, chunker.DefaultOverlap),
	)

	It("never exceeds the size bound on mixed text", func() {
		r := rand.New(rand.NewPCG(7, 11))
		for range 300 {
			size := 1 + r.IntN(300)
			overlap := r.IntN(size)
			s, err := chunker.New(chunker.Config{Size: size, Overlap: overlap})
			Expect(err).NotTo(HaveOccurred())

			for _, c := range s.SplitText(mixedText(r)) {
				Expect(utf8.RuneCountInString(c)).To(BeNumerically("<=", size), "size %d overlap %d", size, overlap)
				Expect(strings.TrimSpace(c)).To(Equal(c))
				Expect(c).NotTo(BeEmpty())
			}
		}
	})

	It("splits two paragraphs longer than the default size with overlapping boundaries", func() {
		s, err := chunker.New(chunker.Config{Size: chunker.DefaultSize, Overlap: chunker.DefaultOverlap})
		Expect(err).NotTo(HaveOccurred())

		first, second := sentences(0, 40), sentences(40, 80)
		Expect(utf8.RuneCountInString(first)).To(BeNumerically(">", chunker.DefaultSize))
		Expect(utf8.RuneCountInString(second)).To(BeNumerically(">", chunker.DefaultSize))

		chunks, err := s.Split(document.Document{
			Text:     first + "\n\n" + second,
			Metadata: document.Metadata{Source: "handbook.docx"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(len(chunks)).To(BeNumerically(">=", 2))

		for _, c := range chunks {
			Expect(utf8.RuneCountInString(c.Text)).To(BeNumerically("<=", chunker.DefaultSize))
			Expect(c.Metadata.Source).To(Equal("handbook.docx"))
		}

		shared := sharedBoundary(chunks[0].Text, chunks[1].Text)
		Expect(shared).To(BeNumerically(">", 0))
		Expect(shared).To(BeNumerically("<=", chunker.DefaultOverlap))
		Expect(chunks[1].Text).To(HavePrefix("Sentence"))
	})

	It("carries trailing text of a chunk into the next one", func() {
		chunks, err := splitter.Split(document.Document{Text: sentences(0, 10), Metadata: document.Metadata{Source: "p.docx"}})
		Expect(err).NotTo(HaveOccurred())
		Expect(len(chunks)).To(BeNumerically(">=", 3))

		for i := 1; i < len(chunks); i++ {
			first := strings.TrimSpace(strings.SplitAfter(chunks[i].Text, ". ")[0])
			Expect(chunks[i-1].Text).To(ContainSubstring(first))
		}
	})

	It("prefers paragraph breaks over finer separators", func() {
		s, err := chunker.New(chunker.Config{Size: 40, Overlap: 0})
		Expect(err).NotTo(HaveOccurred())

		chunks := s.SplitText("First paragraph here.\n\nSecond paragraph here.")
		Expect(chunks).To(Equal([]string{"First paragraph here.", "Second paragraph here."}))
	})

	It("hard cuts text without separators by runes", func() {
		s, err := chunker.New(chunker.Config{Size: 100, Overlap: 10})
		Expect(err).NotTo(HaveOccurred())

		chunks := s.SplitText(strings.Repeat("字", 250))
		Expect(chunks).To(HaveLen(3))
		Expect(utf8.RuneCountInString(chunks[0])).To(Equal(100))
		for _, c := range chunks {
			Expect(utf8.RuneCountInString(c)).To(BeNumerically("<=", 100))
		}
	})

	It("splits on full-width sentence punctuation", func() {
		s, err := chunker.New(chunker.Config{Size: 12, Overlap: 0})
		Expect(err).NotTo(HaveOccurred())

		chunks := s.SplitText("第一句话很长很长。第二句话也很长很长。")
		Expect(chunks).To(Equal([]string{"第一句话很长很长。", "第二句话也很长很长。"}))
	})

	It("derives stable ids and inherits page metadata", func() {
		doc := document.Document{
			Text:     sentences(0, 8),
			Metadata: document.Metadata{Source: "a.pdf", Page: document.PageOf(2)},
		}

		first, err := splitter.Split(doc)
		Expect(err).NotTo(HaveOccurred())
		second, err := splitter.Split(doc)
		Expect(err).NotTo(HaveOccurred())

		Expect(len(first)).To(BeNumerically(">", 1))
		for i := range first {
			Expect(first[i].ID).To(Equal(second[i].ID))
			Expect(*first[i].Metadata.Page).To(Equal(2))
		}
		Expect(first[0].ID).NotTo(Equal(first[1].ID))
		Expect(first[0].ID).To(Equal(chunker.ChunkID(doc.Metadata, 0)))
		Expect(chunker.ChunkID(document.Metadata{Source: "a.pdf", Page: document.PageOf(3)}, 0)).NotTo(Equal(first[0].ID))
	})
})
