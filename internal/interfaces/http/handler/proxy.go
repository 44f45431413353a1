package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/shared"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/interfaces/http/dto"
)

// Proxy error messages shared by the storefront proxies
const (
	msgMethodNotAllowed = "Method not allowed"
	msgConfigError      = "Server configuration error"
	msgInternalError    = "Internal server error"
	msgInvalidJSON      = "Invalid JSON body"
)

// proxyError writes the flat error body the storefront scripts read
func proxyError(c *gin.Context, status int, message string, details any) {
	c.JSON(status, dto.ProxyError{Error: message, Details: details})
}

// upstreamDetails returns the upstream body as JSON when it is valid JSON and
// as text otherwise.
func upstreamDetails(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	return string(body)
}

// remoteDetails picks the most useful details of a remote failure
func remoteDetails(err error) any {
	var remoteErr *shared.RemoteError
	if !errors.As(err, &remoteErr) {
		return err.Error()
	}
	if len(remoteErr.Details) > 0 {
		return remoteErr.Details
	}
	if remoteErr.Message != "" {
		return remoteErr.Message
	}
	return remoteErr.Error()
}

func methodNotAllowed(c *gin.Context) {
	proxyError(c, http.StatusMethodNotAllowed, msgMethodNotAllowed, nil)
}
