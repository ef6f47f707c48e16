package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"docqa/internal/models"
	"docqa/internal/parser"
	"docqa/internal/session"
	"docqa/internal/transport/http/response"
)

// statusFor maps a domain error to an HTTP status, an envelope code and a user message.
func statusFor(err error) (int, int, string) {
	var loadErr *parser.LoadError
	switch {
	case errors.Is(err, session.ErrNoFiles), errors.Is(err, session.ErrEmptyQuestion):
		return http.StatusBadRequest, response.CodeBadRequest, err.Error()
	case errors.Is(err, session.ErrNoDocuments):
		return http.StatusBadRequest, response.CodeNoDocuments, err.Error()
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, response.CodeSessionNotFound, err.Error()
	case errors.Is(err, session.ErrSessionBusy):
		return http.StatusConflict, response.CodeSessionBusy, err.Error()
	case errors.As(err, &loadErr):
		return http.StatusUnprocessableEntity, response.CodeIngestion, loadErr.Error()
	case errors.Is(err, models.ErrBackendUnavailable):
		return http.StatusServiceUnavailable, response.CodeUnavailable, "the language model backend is unavailable, please try again later"
	default:
		return http.StatusInternalServerError, response.CodeInternalServer, "internal error"
	}
}

func writeError(c *gin.Context, err error) {
	status, code, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	response.Error(c, status, code, message)
}
