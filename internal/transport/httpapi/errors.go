package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"remindd/internal/reminder"
	logx "remindd/pkg/logx"
)

// statusFor maps an error kind to an HTTP status.
func statusFor(kind reminder.Kind) int {
	switch kind {
	case reminder.KindValidation:
		return http.StatusBadRequest
	case reminder.KindNotFound:
		return http.StatusNotFound
	case reminder.KindPersistence, reminder.KindDataAccess:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	kind := reminder.KindOf(err)
	status := statusFor(kind)

	resp := ErrorResponse{Error: string(kind) + "_error", Message: err.Error()}
	switch kind {
	case reminder.KindNotFound:
		resp.Error = "not_found"
	case reminder.KindValidation:
		var re *reminder.Error
		if errors.As(err, &re) {
			resp.Field = fieldFor(re.Op)
		}
		if errors.Is(err, reminder.ErrInvalidTransition) {
			resp.Error = "invalid_transition"
			resp.Field = ""
		}
	case reminder.KindInternal:
		// internal details stay in the log
		resp.Message = "internal error"
	}

	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", logx.String("path", c.Request.URL.Path), logx.String("kind", string(kind)), logx.Err(err))
	} else {
		h.log.Debug("request rejected", logx.String("path", c.Request.URL.Path), logx.String("kind", string(kind)), logx.Err(err))
	}
	c.JSON(status, resp)
}

// fieldFor names the request field a validation op refers to.
func fieldFor(op string) string {
	switch op {
	case "translate schedule":
		return "cronExpression"
	case "create reminder", "update reminder":
		return "title"
	case "create group":
		return "name"
	default:
		return ""
	}
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "validation_error",
		Message: err.Error(),
	})
}
