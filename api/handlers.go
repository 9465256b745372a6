package api

import (
	"github.com/gofiber/fiber/v2"
)

const welcomeMessage = "Welcome to the docqa document question answering API. POST a question to /ask."

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Question *string `json:"question"`
}

// handleRoot returns the service banner.
func (s *Server) handleRoot(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": welcomeMessage})
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleReady reports whether the answer pipeline is loaded.
func (s *Server) handleReady(c *fiber.Ctx) error {
	if !s.Ready() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"ready": false})
	}
	return c.JSON(fiber.Map{"ready": true})
}

// handleAsk answers a question.
func (s *Server) handleAsk(c *fiber.Ctx) error {
	var req AskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Kind:  KindBadRequest,
		})
	}
	if req.Question == nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "question is required",
			Kind:  KindBadRequest,
		})
	}

	s.logger.Info("question received", "question", *req.Question)

	ans, err := s.Answer(c.UserContext(), *req.Question)
	if err != nil {
		status, kind := classify(err)
		if status >= fiber.StatusInternalServerError && kind != KindNotReady {
			s.logger.Error("failed to answer question", "kind", kind, "error", err)
		}
		return c.Status(status).JSON(ErrorResponse{Error: err.Error(), Kind: kind})
	}

	return c.JSON(ans)
}
