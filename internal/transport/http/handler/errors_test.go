package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"docqa/internal/models"
	"docqa/internal/parser"
	"docqa/internal/session"
	"docqa/internal/transport/http/response"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   int
	}{
		{"no files", session.ErrNoFiles, http.StatusBadRequest, response.CodeBadRequest},
		{"empty question", session.ErrEmptyQuestion, http.StatusBadRequest, response.CodeBadRequest},
		{"no documents", session.ErrNoDocuments, http.StatusBadRequest, response.CodeNoDocuments},
		{"not found", session.ErrSessionNotFound, http.StatusNotFound, response.CodeSessionNotFound},
		{"busy", session.ErrSessionBusy, http.StatusConflict, response.CodeSessionBusy},
		{"load error", &parser.LoadError{File: "/x/bad.pdf", Err: errors.New("corrupt pdf")}, http.StatusUnprocessableEntity, response.CodeIngestion},
		{"backend", fmt.Errorf("%w: llm: boom", models.ErrBackendUnavailable), http.StatusServiceUnavailable, response.CodeUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError, response.CodeInternalServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, message := statusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
			assert.NotEmpty(t, message)
		})
	}
}

func TestStatusFor_LoadErrorNamesFile(t *testing.T) {
	_, _, message := statusFor(fmt.Errorf("process: %w", &parser.LoadError{File: "/x/bad.pdf", Err: errors.New("corrupt pdf")}))
	assert.Contains(t, message, "bad.pdf")
	assert.NotContains(t, message, "/x/")
}

func TestBaseNames(t *testing.T) {
	assert.Equal(t, []string{"a.docx", "b.csv"}, baseNames([]string{"/up/a.docx", "b.csv"}))
}
