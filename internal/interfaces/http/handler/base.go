// Package handler implements the KPI HTTP endpoints.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appreport "github.com/kpidash/backend/internal/application/report"
	"github.com/kpidash/backend/internal/domain/report"
	"github.com/kpidash/backend/internal/infrastructure/export"
	csvimport "github.com/kpidash/backend/internal/infrastructure/import"
	"github.com/kpidash/backend/internal/infrastructure/logger"
	"github.com/kpidash/backend/internal/infrastructure/upstream"
	"github.com/kpidash/backend/internal/interfaces/http/dto"
	"github.com/kpidash/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.ErrorWithCode(c, dto.ErrCodeBadRequest, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.ErrorWithCode(c, dto.ErrCodeInternal, message)
}

// ErrorCode maps an application error to its API error code
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, upstream.ErrTokenExpired):
		return dto.ErrCodeTokenExpired
	case errors.Is(err, upstream.ErrUpstreamUnavailable),
		errors.Is(err, upstream.ErrUpstreamRequestFailed),
		errors.Is(err, upstream.ErrUpstreamInvalidResponse),
		errors.Is(err, ErrMemberAPIDisabled):
		return dto.ErrCodeUpstreamError
	case errors.Is(err, csvimport.ErrEmptyFile),
		errors.Is(err, csvimport.ErrInvalidEncoding),
		errors.Is(err, csvimport.ErrMissingHeader),
		errors.Is(err, csvimport.ErrInvalidHeader),
		errors.Is(err, csvimport.ErrInvalidJSON):
		return dto.ErrCodeUpstreamError
	case errors.Is(err, report.ErrUnknownKind),
		errors.Is(err, export.ErrUnsupportedFormat):
		return dto.ErrCodeBadRequest
	case errors.Is(err, appreport.ErrExportFailed),
		errors.Is(err, appreport.ErrStorageNotConfigured):
		return dto.ErrCodeExportFailed
	}
	return dto.ErrCodeInternal
}

// HandleError converts an application error into an API error response.
// Internal errors are logged and their message is not exposed.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	code := ErrorCode(err)
	message := err.Error()
	if code == dto.ErrCodeInternal {
		logger.L(c.Request.Context()).Error("Unhandled request error", zap.Error(err))
		message = "An unexpected error occurred"
	}
	h.ErrorWithCode(c, code, message)
}
