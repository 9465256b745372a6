package embeddings_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/docqa/pkg/embeddings"
)

func lengthVectors(_ context.Context, batch []string) ([][]float32, error) {
	out := make([][]float32, len(batch))
	for i, t := range batch {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

var _ = Describe("Batched", func() {
	It("returns one vector per input in input order", func() {
		var calls [][]string
		fn := func(ctx context.Context, batch []string) ([][]float32, error) {
			calls = append(calls, append([]string(nil), batch...))
			return lengthVectors(ctx, batch)
		}

		texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
		vecs, err := embeddings.Batched(context.Background(), texts, 2, fn)
		Expect(err).NotTo(HaveOccurred())
		Expect(vecs).To(HaveLen(5))
		for i, v := range vecs {
			Expect(v).To(Equal([]float32{float32(i + 1)}))
		}
		Expect(calls).To(Equal([][]string{{"a", "bb"}, {"ccc", "dddd"}, {"eeeee"}}))
	})

	It("returns an empty result for no input without calling the provider", func() {
		vecs, err := embeddings.Batched(context.Background(), nil, 4, func(context.Context, []string) ([][]float32, error) {
			Fail("provider should not be called")
			return nil, nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(vecs).To(BeEmpty())
	})

	It("reports the failing batch as a ServiceError", func() {
		boom := errors.New("connection refused")
		n := 0
		fn := func(ctx context.Context, batch []string) ([][]float32, error) {
			n++
			if n == 2 {
				return nil, boom
			}
			return lengthVectors(ctx, batch)
		}

		_, err := embeddings.Batched(context.Background(), []string{"a", "b", "c"}, 1, fn)
		Expect(errors.Is(err, embeddings.ErrEmbedding)).To(BeTrue())
		Expect(errors.Is(err, boom)).To(BeTrue())

		var svcErr *embeddings.ServiceError
		Expect(errors.As(err, &svcErr)).To(BeTrue())
		Expect(svcErr.BatchIndex).To(Equal(1))
	})

	It("rejects a provider that drops vectors", func() {
		fn := func(context.Context, []string) ([][]float32, error) {
			return [][]float32{{1}}, nil
		}

		_, err := embeddings.Batched(context.Background(), []string{"a", "b"}, 8, fn)
		Expect(errors.Is(err, embeddings.ErrEmbedding)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("1 embeddings for 2 inputs"))
	})

	It("stops on a cancelled context", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := embeddings.Batched(ctx, []string{"a"}, 1, lengthVectors)
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		Expect(errors.Is(err, embeddings.ErrEmbedding)).To(BeTrue())
	})
})

var _ = Describe("Throttle", func() {
	It("spaces batches out to the configured rate", func() {
		fn := embeddings.Throttle(lengthVectors, 20)

		start := time.Now()
		vecs, err := embeddings.Batched(context.Background(), []string{"a", "b", "c"}, 1, fn)
		Expect(err).NotTo(HaveOccurred())
		Expect(vecs).To(HaveLen(3))
		Expect(time.Since(start)).To(BeNumerically(">=", 80*time.Millisecond))
	})

	It("leaves the function untouched at rate zero", func() {
		fn := embeddings.Throttle(lengthVectors, 0)

		vecs, err := fn(context.Background(), []string{"abc"})
		Expect(err).NotTo(HaveOccurred())
		Expect(vecs).To(Equal([][]float32{{3}}))
	})

	It("gives up when the context is cancelled while waiting", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := embeddings.Throttle(lengthVectors, 1)(ctx, []string{"a"})
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
	})
})

var _ = Describe("ServiceError", func() {
	It("names the batch in its message", func() {
		err := &embeddings.ServiceError{BatchIndex: 3, Err: fmt.Errorf("status 500")}
		Expect(err.Error()).To(Equal("embedding service failure (batch 3): status 500"))
	})
})
