// Package handler provides HTTP handlers for the document chat service.
package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/docchat/internal/docchat/biz"
	"github.com/kart-io/docchat/internal/docchat/extract"
	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/pkg/llm"
)

// DefaultMaxUploadSize caps accepted documents at 5 MB.
const DefaultMaxUploadSize = 5 << 20

// askTimeout bounds retrieval plus generation for one question.
const askTimeout = 60 * time.Second

// summaryTimeout bounds map-reduce summarization, which may take several
// generation calls for large documents.
const summaryTimeout = 180 * time.Second

// DocChatHandler handles document chat HTTP requests.
type DocChatHandler struct {
	service       *biz.Service
	maxUploadSize int64
}

// NewDocChatHandler creates a handler. Non-positive size limits fall back
// to the default.
func NewDocChatHandler(service *biz.Service, maxUploadSize int64) *DocChatHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = DefaultMaxUploadSize
	}
	return &DocChatHandler{
		service:       service,
		maxUploadSize: maxUploadSize,
	}
}

// SuccessResponse is a standard success response.
type SuccessResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Upload accepts a multipart document upload and indexes it as the new
// active document.
func (h *DocChatHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: "multipart field 'file' is required"})
		return
	}

	if fileHeader.Size > h.maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Code:    413,
			Message: "file exceeds the upload size limit",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
		return
	}
	if int64(len(data)) > h.maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Code:    413,
			Message: "file exceeds the upload size limit",
		})
		return
	}

	result, err := h.service.Upload(c.Request.Context(), fileHeader.Filename, data)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Code:    0,
		Message: "Document uploaded and indexed",
		Data:    result,
	})
}

// AskRequest is the ask endpoint's body.
type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

// Ask answers a question about the active document.
func (h *DocChatHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), askTimeout)
	defer cancel()

	answer, err := h.service.Ask(ctx, req.Question)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Code:    0,
		Message: "OK",
		Data:    answer,
	})
}

// Summary returns the document summary, generating it on first request.
func (h *DocChatHandler) Summary(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), summaryTimeout)
	defer cancel()

	summary, err := h.service.Summary(ctx)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Code:    0,
		Message: "OK",
		Data:    gin.H{"summary": summary},
	})
}

// SuggestedQuestions returns questions the document can answer.
func (h *DocChatHandler) SuggestedQuestions(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), summaryTimeout)
	defer cancel()

	questions, err := h.service.SuggestedQuestions(ctx)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Code:    0,
		Message: "OK",
		Data:    gin.H{"questions": questions},
	})
}

// History returns the conversation turns, oldest first.
func (h *DocChatHandler) History(c *gin.Context) {
	turns, err := h.service.History(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Code:    0,
		Message: "OK",
		Data:    gin.H{"turns": turns},
	})
}

// Status reports the current document, build state, and metrics.
func (h *DocChatHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, SuccessResponse{
		Code:    0,
		Message: "OK",
		Data:    h.service.Status(c.Request.Context()),
	})
}

// Healthz is the liveness probe.
func (h *DocChatHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeError maps domain errors onto HTTP status codes.
func (h *DocChatHandler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, extract.ErrUnsupportedFormat),
		errors.Is(err, extract.ErrEmptyText),
		errors.Is(err, extract.ErrCorruptFile),
		errors.Is(err, biz.ErrEmptyQuestion):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrEmptyIndex):
		status = http.StatusNotFound
	case errors.Is(err, biz.ErrBuildInProgress),
		errors.Is(err, biz.ErrSessionReplaced):
		status = http.StatusConflict
	case isProviderError(err):
		status = http.StatusBadGateway
	}

	c.JSON(status, ErrorResponse{Code: status, Message: err.Error()})
}

func isProviderError(err error) bool {
	var embedErr *llm.EmbeddingError
	var genErr *llm.GenerationError
	return errors.As(err, &embedErr) || errors.As(err, &genErr)
}
