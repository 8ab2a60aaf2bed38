package api

import (
	"errors"
	"log/slog"

	"docchat/types"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler maps pipeline failures to HTTP responses. Callers need to
// tell which external capability failed, so each taxonomy branch gets its
// own message.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var apiErr Error
	if errors.As(err, &apiErr) {
		return c.Status(apiErr.Code).JSON(apiErr)
	}

	var valErr ValidationError
	if errors.As(err, &valErr) {
		return c.Status(valErr.Status).JSON(valErr)
	}

	apiErr = fromDomain(err)
	slog.Default().Error("request failed", "code", apiErr.Code, "error", err)
	return c.Status(apiErr.Code).JSON(apiErr)
}

func fromDomain(err error) Error {
	var extractionErr *types.ExtractionError
	var storageErr *types.StorageWriteError
	var dimensionErr *types.DimensionError
	var fiberErr *fiber.Error

	switch {
	case errors.As(err, &extractionErr):
		return NewError(fiber.StatusBadRequest, "could not extract text from document: "+extractionErr.Err.Error())
	case errors.Is(err, types.ErrEmptyInput), errors.Is(err, types.ErrNoFragments):
		return NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrEmptyQuestion):
		return NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrNoVectors):
		return NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &storageErr):
		return NewError(fiber.StatusBadGateway, err.Error())
	case errors.As(err, &dimensionErr):
		return NewError(fiber.StatusInternalServerError, err.Error())
	case errors.As(err, &fiberErr):
		return NewError(fiberErr.Code, fiberErr.Message)
	default:
		return NewError(fiber.StatusInternalServerError, err.Error())
	}
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

// Error implements the error interface
func (e Error) Error() string {
	return e.Message
}

func NewError(code int, err string) Error {
	return Error{
		Code:    code,
		Message: err,
	}
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: fiber.StatusUnprocessableEntity,
		Errors: errors,
	}
}

func ErrBadRequest() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid request",
	}
}

func ErrUnsupportedMedia(msg string) Error {
	return Error{
		Code:    fiber.StatusUnsupportedMediaType,
		Message: msg,
	}
}

func ErrTooLarge(msg string) Error {
	return Error{
		Code:    fiber.StatusRequestEntityTooLarge,
		Message: msg,
	}
}
