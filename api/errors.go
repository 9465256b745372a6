package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/docqa/pkg/answer"
	"github.com/papercomputeco/docqa/pkg/embeddings"
	"github.com/papercomputeco/docqa/pkg/llm"
	"github.com/papercomputeco/docqa/pkg/retriever"
)

// Error kinds reported in ErrorResponse.Kind.
const (
	KindBadRequest = "bad_request"
	KindNotReady   = "not_ready"
	KindEmbedding  = "embedding"
	KindGeneration = "generation"
	KindRetrieval  = "retrieval"
	KindCanceled   = "canceled"
	KindInternal   = "internal"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// classify maps pipeline errors to an HTTP status and error kind.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, answer.ErrNotReady):
		return fiber.StatusServiceUnavailable, KindNotReady
	case errors.Is(err, embeddings.ErrEmbedding):
		return fiber.StatusBadGateway, KindEmbedding
	case errors.Is(err, llm.ErrGeneration):
		return fiber.StatusBadGateway, KindGeneration
	case errors.Is(err, retriever.ErrRetrieval):
		return fiber.StatusInternalServerError, KindRetrieval
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, KindCanceled
	default:
		return fiber.StatusInternalServerError, KindInternal
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		kind := KindInternal
		if fe.Code < fiber.StatusInternalServerError {
			kind = KindBadRequest
		}
		return c.Status(fe.Code).JSON(ErrorResponse{Error: fe.Message, Kind: kind})
	}

	status, kind := classify(err)
	return c.Status(status).JSON(ErrorResponse{Error: err.Error(), Kind: kind})
}
