package api

import (
	"context"

	"docchat/types"

	"github.com/gofiber/fiber/v2"
)

// Answerer is the query pipeline as the handler sees it.
type Answerer interface {
	Answer(ctx context.Context, question string) (*types.SearchResponse, error)
}

type RequestHandler struct {
	answerer Answerer
}

func NewRequestHandler(answerer Answerer) *RequestHandler {
	return &RequestHandler{
		answerer: answerer,
	}
}

func (h *RequestHandler) HandleRequest(c *fiber.Ctx) error {
	var params types.QueryParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	resp, err := h.answerer.Answer(c.UserContext(), params.Question)
	if err != nil {
		return err
	}

	return c.JSON(resp)
}
