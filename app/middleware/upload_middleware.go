package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// PlugUploadGuard rejects oversized or non-multipart uploads before the
// body is read. The handler still validates the file itself; this only
// keeps obviously bad requests off the pipeline.
func PlugUploadGuard(uploadPath string, maxBytes int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost || c.Path() != uploadPath {
			return c.Next()
		}

		if maxBytes > 0 && c.Request().Header.ContentLength() > maxBytes {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
				"error": "upload too large",
			})
		}

		contentType := string(c.Request().Header.ContentType())
		if !strings.HasPrefix(contentType, fiber.MIMEMultipartForm) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "expected multipart form upload",
			})
		}

		return c.Next()
	}
}
