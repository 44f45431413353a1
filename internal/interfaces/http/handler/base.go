// Package handler implements the HTTP handlers of the kiosk backend: the
// storefront proxies, the catalog API, the Shopify webhook receiver and the
// health endpoints.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/catalog"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/shared"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/interfaces/http/dto"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context, falling back to the header
func getRequestID(c *gin.Context) string {
	if id := middleware.GetRequestID(c); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// Unauthorized sends a 401 unauthorized response
func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// ValidationError sends a 400 validation error response with details
func (h *BaseHandler) ValidationError(c *gin.Context, details []dto.ValidationDetail) {
	c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
		"Request validation failed",
		getRequestID(c),
		details,
	))
}

// HandleError maps domain, validation, state and remote errors onto the
// response envelope. Anything unrecognised becomes a 500.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID := getRequestID(c)

	var validationErr *shared.ValidationError
	if errors.As(err, &validationErr) {
		h.ValidationError(c, []dto.ValidationDetail{{
			Field:   validationErr.Field,
			Message: validationErr.Message,
		}})
		return
	}

	var stateErr *shared.StateError
	if errors.As(err, &stateErr) {
		h.Error(c, http.StatusConflict, dto.ErrCodeInvalidState, stateErr.Error())
		return
	}

	var remoteErr *shared.RemoteError
	if errors.As(err, &remoteErr) {
		resp := dto.NewErrorResponseWithRequestID(dto.ErrCodeUpstream, remoteErr.Error(), requestID)
		resp.Error.Upstream = remoteErr.Details
		c.JSON(remoteStatus(remoteErr), resp)
		return
	}

	switch {
	case errors.Is(err, catalog.ErrSyncInProgress):
		h.Error(c, http.StatusConflict, dto.ErrCodeSyncInProgress, "A catalog sync is already running")
		return
	case errors.Is(err, catalog.ErrProductNotFound):
		h.NotFound(c, "Product not found")
		return
	case errors.Is(err, catalog.ErrInvalidStatus), errors.Is(err, catalog.ErrInvalidSource):
		h.BadRequest(c, err.Error())
		return
	case errors.Is(err, catalog.ErrSourceNotEnabled):
		h.InternalError(c, "Server configuration error: catalog source is not configured")
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, domainErr.Message, requestID))
		return
	}

	h.InternalError(c, "An unexpected error occurred")
}

// remoteStatus mirrors the upstream status, 502 when there is none
func remoteStatus(err *shared.RemoteError) int {
	if err.StatusCode >= http.StatusBadRequest {
		return err.StatusCode
	}
	return http.StatusBadGateway
}
