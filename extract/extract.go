package extract

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dslipak/pdf"
)

// TextExtractor converts raw document bytes into plain text.
type TextExtractor interface {
	Extract(data []byte) (string, error)
}

// PDFExtractor pulls plain text out of a PDF, page by page. Pages that
// fail to decode are skipped so one broken page does not sink the
// document.
type PDFExtractor struct {
	logger *slog.Logger
}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{logger: slog.Default()}
}

func (p *PDFExtractor) Extract(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	var buf strings.Builder
	numPages := r.NumPage()

	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			p.logger.Warn("failed to extract page, skipping", "page", i, "error", err)
			continue
		}

		buf.WriteString(text)
		buf.WriteString("\n")
	}

	content := strings.TrimSpace(buf.String())
	if content == "" {
		return "", fmt.Errorf("PDF contains no extractable text")
	}

	return content, nil
}
