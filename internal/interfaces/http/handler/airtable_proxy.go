package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/shared"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/airtable"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/logger"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/interfaces/http/dto"
)

// AirtableProxyHandler forwards read-only table listings to Airtable so the
// access token never reaches the browser.
type AirtableProxyHandler struct {
	client *airtable.Client
}

// NewAirtableProxyHandler creates a new AirtableProxyHandler. A nil client
// answers every request with a configuration error.
func NewAirtableProxyHandler(client *airtable.Client) *AirtableProxyHandler {
	return &AirtableProxyHandler{client: client}
}

// List handles GET /api/airtable?table=&maxRecords=&filterByFormula=&sort=
func (h *AirtableProxyHandler) List(c *gin.Context) {
	if c.Request.Method != http.MethodGet {
		methodNotAllowed(c)
		return
	}
	if h.client == nil {
		proxyError(c, http.StatusInternalServerError, msgConfigError, "Airtable credentials are not configured")
		return
	}

	table := c.Query("table")
	if table == "" {
		proxyError(c, http.StatusBadRequest, "Table parameter is required", nil)
		return
	}

	view := h.client.Config().View
	if view == "" {
		view = airtable.DefaultView
	}
	opts := airtable.ListOptions{
		FilterByFormula: c.Query("filterByFormula"),
		SortField:       c.Query("sort"),
		View:            view,
	}
	if raw := c.Query("maxRecords"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			proxyError(c, http.StatusBadRequest, "maxRecords must be a positive integer", nil)
			return
		}
		opts.MaxRecords = n
	}

	body, err := h.client.ListRecordsRaw(c.Request.Context(), table, opts)
	if err != nil {
		h.writeError(c, table, err)
		return
	}
	c.Data(http.StatusOK, "application/json", body)
}

func (h *AirtableProxyHandler) writeError(c *gin.Context, table string, err error) {
	reqLog := logger.GetGinLogger(c)

	var remoteErr *shared.RemoteError
	if !errors.As(err, &remoteErr) || remoteErr.StatusCode == 0 {
		reqLog.Error("Airtable proxy request failed", zap.String("table", table), zap.Error(err))
		proxyError(c, http.StatusInternalServerError, msgInternalError, err.Error())
		return
	}

	reqLog.Warn("Airtable returned an error",
		zap.String("table", table),
		zap.Int("status", remoteErr.StatusCode),
		zap.String("message", remoteErr.Message),
	)
	switch {
	case errors.Is(err, airtable.ErrAuthFailed):
		proxyError(c, http.StatusUnauthorized, "Airtable authentication failed", remoteDetails(err))
	case errors.Is(err, airtable.ErrTableNotFound):
		proxyError(c, http.StatusNotFound, "Table not found", remoteDetails(err))
	default:
		c.JSON(remoteErr.StatusCode, dto.ProxyError{
			Error:   "Airtable API error",
			Details: remoteDetails(err),
			Status:  remoteErr.StatusCode,
		})
	}
}
