package api

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"docchat/types"

	"github.com/gofiber/fiber/v2"
)

// Ingester is the ingestion pipeline as the handler sees it.
type Ingester interface {
	Ingest(ctx context.Context, data []byte, source string) (types.IngestionOutcome, error)
}

type DocumentHandler struct {
	ingester  Ingester
	maxUpload int
}

func NewDocumentHandler(ingester Ingester, maxUpload int) *DocumentHandler {
	return &DocumentHandler{
		ingester:  ingester,
		maxUpload: maxUpload,
	}
}

// HandleUpload accepts one PDF as multipart form data and runs it through
// the ingestion pipeline. A partial run still answers 200; the outcome
// status tells the caller what happened.
func (h *DocumentHandler) HandleUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest()
	}

	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".pdf") {
		return ErrUnsupportedMedia("only PDF documents are accepted")
	}
	if h.maxUpload > 0 && fileHeader.Size > int64(h.maxUpload) {
		return ErrTooLarge(fmt.Sprintf("document exceeds the %d byte upload limit", h.maxUpload))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	outcome, err := h.ingester.Ingest(c.UserContext(), data, fileHeader.Filename)
	if err != nil {
		return err
	}

	return c.JSON(outcome)
}
