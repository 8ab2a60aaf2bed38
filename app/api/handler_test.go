package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"docchat/types"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAnswerer struct {
	resp  *types.SearchResponse
	err   error
	calls int
}

func (s *stubAnswerer) Answer(ctx context.Context, question string) (*types.SearchResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

type stubIngester struct {
	outcome types.IngestionOutcome
	err     error
	source  string
	size    int
}

func (s *stubIngester) Ingest(ctx context.Context, data []byte, source string) (types.IngestionOutcome, error) {
	s.source = source
	s.size = len(data)
	if s.err != nil {
		return types.IngestionOutcome{}, s.err
	}
	return s.outcome, nil
}

func newTestApp(answerer Answerer, ingester Ingester, maxUpload int) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Post("/api/v1/request", NewRequestHandler(answerer).HandleRequest)
	app.Post("/api/v1/documents", NewDocumentHandler(ingester, maxUpload).HandleUpload)
	return app
}

func TestHandleRequest(t *testing.T) {
	answerer := &stubAnswerer{resp: &types.SearchResponse{
		Answer:    "It is about whales.",
		Timestamp: time.Now(),
	}}
	app := newTestApp(answerer, &stubIngester{}, 0)

	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/request",
		strings.NewReader(`{"question":"What is this about?"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var got types.SearchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "It is about whales.", got.Answer)
	assert.Equal(t, 1, answerer.calls)
}

func TestHandleRequestMissingQuestion(t *testing.T) {
	answerer := &stubAnswerer{}
	app := newTestApp(answerer, &stubIngester{}, 0)

	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/request",
		strings.NewReader(`{}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Zero(t, answerer.calls)
}

func multipartFile(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestHandleUpload(t *testing.T) {
	ingester := &stubIngester{
		outcome: types.NewIngestionOutcome("report.pdf", 4, 4, 4),
	}
	app := newTestApp(&stubAnswerer{}, ingester, 1024)

	body, contentType := multipartFile(t, "report.pdf", []byte("%PDF-1.7 fake"))
	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/documents", body)
	req.Header.Set(fiber.HeaderContentType, contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	var outcome types.IngestionOutcome
	require.NoError(t, json.Unmarshal(raw, &outcome))
	assert.Equal(t, types.IngestSuccess, outcome.Status)
	assert.Equal(t, "report.pdf", ingester.source)
	assert.Positive(t, ingester.size)
}

func TestHandleUploadRejectsNonPDF(t *testing.T) {
	ingester := &stubIngester{}
	app := newTestApp(&stubAnswerer{}, ingester, 1024)

	body, contentType := multipartFile(t, "notes.txt", []byte("plain text"))
	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/documents", body)
	req.Header.Set(fiber.HeaderContentType, contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)
	assert.Empty(t, ingester.source)
}

func TestHandleUploadRejectsOversized(t *testing.T) {
	ingester := &stubIngester{}
	app := newTestApp(&stubAnswerer{}, ingester, 8)

	body, contentType := multipartFile(t, "big.pdf", bytes.Repeat([]byte("x"), 64))
	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/documents", body)
	req.Header.Set(fiber.HeaderContentType, contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestErrorHandlerMapsTaxonomy(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"extraction", &types.ExtractionError{Source: "a.pdf", Err: types.ErrEmptyInput}, fiber.StatusBadRequest},
		{"no vectors", types.ErrNoVectors, fiber.StatusUnprocessableEntity},
		{"storage", &types.StorageWriteError{Source: "a.pdf", Batch: 1}, fiber.StatusBadGateway},
		{"dimension", &types.DimensionError{Want: 1536, Got: 768}, fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ingester := &stubIngester{err: tc.err}
			app := newTestApp(&stubAnswerer{}, ingester, 1024)

			body, contentType := multipartFile(t, "doc.pdf", []byte("%PDF"))
			req := httptest.NewRequest(fiber.MethodPost, "/api/v1/documents", body)
			req.Header.Set(fiber.HeaderContentType, contentType)

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.code, resp.StatusCode)
		})
	}
}
