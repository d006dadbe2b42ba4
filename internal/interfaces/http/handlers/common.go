// Package handlers implements the thin ingest/github/search/health HTTP
// surface named in spec.md §6, wired to the application layer's Service
// types and rendered with gin-gonic.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tagwalker/tagwalker/pkg/errors"
)

// errorResponse is the JSON error body shape for every non-2xx response.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError maps a domain AppError (or plain error) onto the HTTP status
// its ErrorCode carries and writes the standard error body.
func respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	message := err.Error()
	if appErr, ok := err.(*errors.AppError); ok {
		message = appErr.Message
	}
	c.JSON(code.HTTPStatus(), errorResponse{Code: code.String(), Message: message})
}

// ok writes a 200 JSON response.
func ok(c *gin.Context, body interface{}) {
	c.JSON(http.StatusOK, body)
}
