package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"stashpad/types"
)

// envelope is the uniform response shape for every endpoint.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *errBody    `json:"error,omitempty"`
}

type errBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, envelope{Success: true, Data: data})
}

// respondError maps a pipeline error onto its HTTP status. Unclassified
// errors come back as a generic 500 without leaking internals.
func respondError(c *gin.Context, err error) {
	var pe *types.PipelineError
	if !errors.As(err, &pe) {
		log.Printf("unhandled error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, envelope{
			Error: &errBody{Code: "INTERNAL", Message: "internal error"},
		})
		return
	}

	body := &errBody{Code: pe.Code, Message: pe.Message}
	if pe.Details != "" {
		body.Details = pe.Details
	}
	c.JSON(statusFor(pe.Code), envelope{Error: body})
}

func statusFor(code string) int {
	switch code {
	case types.CodeInvalidInput:
		return http.StatusBadRequest
	case types.CodeDuplicateArticle:
		return http.StatusConflict
	case types.CodeNotFound:
		return http.StatusNotFound
	case types.CodeForbidden:
		return http.StatusForbidden
	case types.CodeTimeout:
		return http.StatusGatewayTimeout
	case types.CodeUploadError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// requireUser resolves the caller's user id from the X-User-ID header. A
// missing id fails the request; handlers return immediately on false.
func requireUser(c *gin.Context) (string, bool) {
	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		respondError(c, types.NewError(types.CodeInvalidInput, "X-User-ID header is required"))
		return "", false
	}
	return userID, true
}
