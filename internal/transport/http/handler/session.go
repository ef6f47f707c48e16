package handler

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"docqa/internal/models"
	"docqa/internal/session"
	"docqa/internal/transport/http/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type SessionHandler struct {
	sessions  *session.Manager
	uploadDir string
}

type AskRequest struct {
	Question string `json:"question"`
}

type AskResponse struct {
	Question string          `json:"question"`
	Answer   string          `json:"answer"`
	Sources  []models.Source `json:"sources"`
}

type ProcessResponse struct {
	Documents int      `json:"documents"`
	Chunks    int      `json:"chunks"`
	Skipped   []string `json:"skipped"`
}

func NewSessionHandler(sessions *session.Manager, uploadDir string) *SessionHandler {
	return &SessionHandler{sessions: sessions, uploadDir: uploadDir}
}

func (h *SessionHandler) lookup(c *gin.Context) (*session.Session, bool) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return s, true
}

func (h *SessionHandler) CreateSession(c *gin.Context) {
	s, err := h.sessions.Create(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, gin.H{"id": s.ID, "ready": s.Ready()})
}

func (h *SessionHandler) DeleteSession(c *gin.Context) {
	id := c.Param("id")
	if err := h.sessions.Destroy(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, gin.H{"deleted_session_id": id})
}

// UploadDocuments saves the multipart "files" and processes them.
func (h *SessionHandler) UploadDocuments(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	files := uploadedFiles(c)
	if len(files) == 0 {
		writeError(c, session.ErrNoFiles)
		return
	}
	paths, err := saveUploads(c, files, h.uploadDir, s.ID)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	}

	report, err := s.Process(c.Request.Context(), paths)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, ProcessResponse{
		Documents: report.Documents,
		Chunks:    report.Chunks,
		Skipped:   baseNames(report.Skipped),
	})
}

func (h *SessionHandler) Ask(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	turn, err := s.Ask(c.Request.Context(), req.Question)
	if err != nil {
		writeError(c, err)
		return
	}
	exported := turn.Export()
	response.OK(c, AskResponse{Question: exported.Question, Answer: exported.Answer, Sources: exported.Sources})
}

func (h *SessionHandler) GetHistory(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	turns, err := s.History(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	exported := make([]models.ExportedTurn, 0, len(turns))
	for _, t := range turns {
		exported = append(exported, t.Export())
	}
	response.OK(c, exported)
}

func (h *SessionHandler) ClearHistory(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	if err := s.Clear(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, gin.H{"cleared": true})
}

// Export downloads the history as JSON (default) or, with format=xlsx, as a spreadsheet.
func (h *SessionHandler) Export(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	writeExport(c, s, c.DefaultQuery("format", "json"))
}

func writeExport(c *gin.Context, s *session.Session, format string) {
	var buf bytes.Buffer
	var contentType, fileName string
	switch format {
	case "json":
		if err := s.Export(c.Request.Context(), &buf); err != nil {
			writeError(c, err)
			return
		}
		contentType, fileName = "application/json; charset=utf-8", session.ExportFileName
	case "xlsx":
		if err := s.ExportXLSX(c.Request.Context(), &buf); err != nil {
			writeError(c, err)
			return
		}
		contentType, fileName = xlsxContentType, "conversation_history.xlsx"
	default:
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "format must be json or xlsx")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
