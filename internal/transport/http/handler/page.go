package handler

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"docqa/internal/models"
	"docqa/internal/session"
)

//go:embed templates/index.html
var templates embed.FS

const sessionCookie = "docqa_session"

// PageHandler serves the single HTML page. The session is tracked by cookie.
type PageHandler struct {
	sessions  *session.Manager
	uploadDir string
	tmpl      *template.Template
	md        goldmark.Markdown
}

type pageTurn struct {
	Question string
	Answer   template.HTML
	Sources  []string
}

type pageView struct {
	Flash   string
	Warning string
	Error   string
	Turns   []pageTurn
}

func NewPageHandler(sessions *session.Manager, uploadDir string) (*PageHandler, error) {
	tmpl, err := template.ParseFS(templates, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
		),
	)
	return &PageHandler{sessions: sessions, uploadDir: uploadDir, tmpl: tmpl, md: md}, nil
}

func (h *PageHandler) session(c *gin.Context) (*session.Session, error) {
	id, _ := c.Cookie(sessionCookie)
	s, err := h.sessions.GetOrCreate(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	if s.ID != id {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(sessionCookie, s.ID, 0, "/", "", false, true)
	}
	return s, nil
}

func (h *PageHandler) Index(c *gin.Context) {
	s, err := h.session(c)
	if err != nil {
		h.render(c, nil, http.StatusInternalServerError, pageView{Error: err.Error()})
		return
	}
	h.render(c, s, http.StatusOK, pageView{})
}

func (h *PageHandler) Upload(c *gin.Context) {
	s, err := h.session(c)
	if err != nil {
		h.render(c, nil, http.StatusInternalServerError, pageView{Error: err.Error()})
		return
	}
	files := uploadedFiles(c)
	if len(files) == 0 {
		h.renderError(c, s, session.ErrNoFiles)
		return
	}
	paths, err := saveUploads(c, files, h.uploadDir, s.ID)
	if err != nil {
		h.render(c, s, http.StatusBadRequest, pageView{Error: err.Error()})
		return
	}
	report, err := s.Process(c.Request.Context(), paths)
	if err != nil {
		h.renderError(c, s, err)
		return
	}

	view := pageView{Flash: "Documents processed successfully! You can now ask questions."}
	if len(report.Skipped) > 0 {
		view.Warning = fmt.Sprintf("Skipped unsupported files: %v", baseNames(report.Skipped))
	}
	h.render(c, s, http.StatusOK, view)
}

func (h *PageHandler) Ask(c *gin.Context) {
	s, err := h.session(c)
	if err != nil {
		h.render(c, nil, http.StatusInternalServerError, pageView{Error: err.Error()})
		return
	}
	if _, err := s.Ask(c.Request.Context(), c.PostForm("question")); err != nil {
		h.renderError(c, s, err)
		return
	}
	h.render(c, s, http.StatusOK, pageView{})
}

func (h *PageHandler) Clear(c *gin.Context) {
	s, err := h.session(c)
	if err != nil {
		h.render(c, nil, http.StatusInternalServerError, pageView{Error: err.Error()})
		return
	}
	if err := s.Clear(c.Request.Context()); err != nil {
		h.renderError(c, s, err)
		return
	}
	h.render(c, s, http.StatusOK, pageView{Flash: "Conversation cleared."})
}

func (h *PageHandler) Export(c *gin.Context) {
	s, err := h.session(c)
	if err != nil {
		writeError(c, err)
		return
	}
	writeExport(c, s, c.DefaultQuery("format", "json"))
}

func (h *PageHandler) renderError(c *gin.Context, s *session.Session, err error) {
	status, _, message := statusFor(err)
	view := pageView{Error: message}
	// user input problems are warnings on the page
	if errors.Is(err, session.ErrNoFiles) || errors.Is(err, session.ErrEmptyQuestion) {
		view = pageView{Warning: message}
	}
	h.render(c, s, status, view)
}

func (h *PageHandler) render(c *gin.Context, s *session.Session, status int, view pageView) {
	if s != nil {
		turns, err := s.History(c.Request.Context())
		if err != nil {
			log.Error().Err(err).Str("session", s.ID).Msg("Failed to load history")
			view.Error = "failed to load conversation history"
		}
		for _, t := range turns {
			view.Turns = append(view.Turns, h.pageTurn(t))
		}
	}

	var buf bytes.Buffer
	if err := h.tmpl.Execute(&buf, view); err != nil {
		log.Error().Err(err).Msg("Failed to render page")
		c.String(http.StatusInternalServerError, "failed to render page")
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

func (h *PageHandler) pageTurn(t models.Turn) pageTurn {
	var answer bytes.Buffer
	if err := h.md.Convert([]byte(t.Answer), &answer); err != nil {
		answer.Reset()
		answer.WriteString(template.HTMLEscapeString(t.Answer))
	}

	exported := t.Export()
	sources := make([]string, 0, len(exported.Sources))
	for i, src := range exported.Sources {
		page := "N/A"
		if src.Page != nil {
			page = fmt.Sprint(*src.Page)
		}
		sources = append(sources, fmt.Sprintf("Source %d: %s, page %s", i+1, src.Source, page))
	}
	return pageTurn{Question: t.Question, Answer: template.HTML(answer.String()), Sources: sources}
}
