// Package response writes the JSON envelope every endpoint returns:
// {success, status_code, message?, data?}.
package response

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"studenttracker/internal/apperr"
	"studenttracker/internal/validate"
)

// Envelope is the logical shape of every response.
type Envelope struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code"`
	Message    string `json:"message,omitempty"`
	Data       any    `json:"data,omitempty"`
}

// JSON writes an envelope with the given status.
func JSON(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Envelope{
		Success:    status < 400,
		StatusCode: status,
		Message:    message,
		Data:       data,
	})
}

// Abort writes an error envelope and stops the handler chain.
func Abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Envelope{StatusCode: status, Message: message})
}

// Error maps err to its status and public message. Internal errors are
// logged with the request path and never echoed.
func Error(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= 500 {
		slog.ErrorContext(c.Request.Context(), "request failed",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.String("error", err.Error()))
	}
	Abort(c, status, apperr.PublicMessage(err))
}

// BindError turns a gin binding failure into a 400 message naming the
// offending fields.
func BindError(err error) error {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		return apperr.Invalid(validate.Message(errs))
	}
	return apperr.Invalid("Invalid request body")
}

// UseJSONFieldNames makes gin's validator report fields by their json tag,
// so messages name what the client actually sent.
func UseJSONFieldNames() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(validate.JSONName)
	}
}

// Page is the pagination block of list responses.
type Page struct {
	Total   int `json:"total"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Pages   int `json:"pages"`
}

// NewPage computes pages = ceil(total/per_page).
func NewPage(total, page, perPage int) Page {
	pages := 0
	if perPage > 0 {
		pages = (total + perPage - 1) / perPage
	}
	return Page{Total: total, Page: page, PerPage: perPage, Pages: pages}
}
