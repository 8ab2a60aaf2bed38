package api

import (
	"docchat/store"

	"github.com/gofiber/fiber/v2"
)

type CheckHandler struct {
	store store.VectorStorer
}

func NewCheckHandler(s store.VectorStorer) *CheckHandler {
	return &CheckHandler{store: s}
}

func (h *CheckHandler) HandleHealthy(c *fiber.Ctx) error {
	if _, err := h.store.Stats(c.UserContext()); err != nil {
		return NewError(fiber.StatusServiceUnavailable, "vector store unreachable: "+err.Error())
	}
	return c.JSON(fiber.Map{"result": "ok"})
}

func (h *CheckHandler) HandleStats(c *fiber.Ctx) error {
	stats, err := h.store.Stats(c.UserContext())
	if err != nil {
		return NewError(fiber.StatusServiceUnavailable, "vector store unreachable: "+err.Error())
	}
	return c.JSON(stats)
}
