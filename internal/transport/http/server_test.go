package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/chromemdb"
	"docqa/internal/config"
	"docqa/internal/embedding/embeddingtest"
	"docqa/internal/llmservice"
	"docqa/internal/models"
	"docqa/internal/parser"
	"docqa/internal/rag"
	"docqa/internal/session"
	"docqa/internal/transport/http/response"
	"docqa/internal/vectorstore"
)

type staticModel struct{ answer string }

func (m staticModel) Complete(context.Context, string) (string, error) { return m.answer, nil }

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	cfg := config.Default()
	cfg.App.UploadDir = t.TempDir()
	cfg.Server.GinMode = gin.TestMode

	store, err := chromemdb.NewVectorDBManager("", "docs", true, false, "")
	require.NoError(t, err)
	collection := vectorstore.NewCollection(store, &embeddingtest.Hashing{}, 8)
	engine := rag.NewEngine(
		parser.NewSplitter(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap),
		collection,
		rag.NewRetriever(collection, 1, 0),
		rag.NewGenerator(staticModel{answer: "The sky is **blue**."}),
	)

	router, err := NewRouter(Deps{
		Config:   cfg,
		Engine:   engine,
		Sessions: session.NewManager(engine, session.NewMemoryHistory(cfg.Session.MaxHistory)),
		Guards:   []*llmservice.Guard{llmservice.NewGuard("llm", 0, 0)},
	})
	require.NoError(t, err)
	return router
}

func do(t *testing.T, router *gin.Engine, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func jsonRequest(method, path string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func uploadRequest(t *testing.T, path string, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func createSession(t *testing.T, router *gin.Engine) string {
	t.Helper()
	w, env := do(t, router, jsonRequest(http.MethodPost, "/api/v1/sessions", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		ID    string `json:"id"`
		Ready bool   `json:"ready"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.ID)
	assert.False(t, data.Ready)
	return data.ID
}

func TestAPI_Flow(t *testing.T) {
	router := newTestRouter(t)
	id := createSession(t, router)
	base := "/api/v1/sessions/" + id

	w, env := do(t, router, jsonRequest(http.MethodPost, base+"/ask", map[string]string{"question": "What color is the sky?"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeNoDocuments, env.Code)

	w, env = do(t, router, uploadRequest(t, base+"/documents", map[string]string{
		"sky.txt":    "The sky is blue.",
		"notes.docx": "ignored",
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var processed struct {
		Documents int      `json:"documents"`
		Chunks    int      `json:"chunks"`
		Skipped   []string `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &processed))
	assert.Equal(t, 1, processed.Documents)
	assert.Equal(t, 1, processed.Chunks)
	assert.Equal(t, []string{"notes.docx"}, processed.Skipped)

	w, env = do(t, router, jsonRequest(http.MethodPost, base+"/ask", map[string]string{"question": "What color is the sky?"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var answer struct {
		Answer  string          `json:"answer"`
		Sources []models.Source `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &answer))
	assert.Equal(t, "The sky is **blue**.", answer.Answer)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "sky.txt", answer.Sources[0].Source)
	assert.Nil(t, answer.Sources[0].Page)

	w, env = do(t, router, httptest.NewRequest(http.MethodGet, base+"/history", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var history []models.ExportedTurn
	require.NoError(t, json.Unmarshal(env.Data, &history))
	require.Len(t, history, 1)

	w, _ = do(t, router, httptest.NewRequest(http.MethodGet, base+"/export", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "conversation_history.json")
	assert.JSONEq(t, `[{"question":"What color is the sky?","answer":"The sky is **blue**.","sources":[{"source":"sky.txt","page":null}]}]`, w.Body.String())

	w, _ = do(t, router, httptest.NewRequest(http.MethodGet, base+"/export?format=xlsx", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "conversation_history.xlsx")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))

	w, _ = do(t, router, httptest.NewRequest(http.MethodGet, base+"/export?format=csv", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, router, httptest.NewRequest(http.MethodDelete, base+"/history", nil))
	require.Equal(t, http.StatusOK, w.Code)
	_, env = do(t, router, httptest.NewRequest(http.MethodGet, base+"/history", nil))
	assert.JSONEq(t, "[]", string(env.Data))

	w, _ = do(t, router, httptest.NewRequest(http.MethodDelete, base, nil))
	require.Equal(t, http.StatusOK, w.Code)
	w, env = do(t, router, httptest.NewRequest(http.MethodGet, base+"/history", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.CodeSessionNotFound, env.Code)
}

func TestAPI_InputErrors(t *testing.T) {
	router := newTestRouter(t)
	base := "/api/v1/sessions/" + createSession(t, router)

	w, env := do(t, router, jsonRequest(http.MethodPost, base+"/ask", map[string]string{"question": "  "}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeBadRequest, env.Code)

	w, _ = do(t, router, httptest.NewRequest(http.MethodPost, base+"/ask", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = do(t, router, uploadRequest(t, base+"/documents", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, session.ErrNoFiles.Error(), env.Message)

	w, env = do(t, router, uploadRequest(t, base+"/documents", map[string]string{"bad.txt": "\xff\xfe"}))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, response.CodeIngestion, env.Code)
	assert.Contains(t, env.Message, "bad.txt")

	w, _ = do(t, router, jsonRequest(http.MethodPost, "/api/v1/sessions/nope/ask", map[string]string{"question": "q"}))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)
	w, _ := do(t, router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		VectorStore struct {
			OK      bool `json:"ok"`
			Records int  `json:"records"`
		} `json:"vector_store"`
		Breakers map[string]string `json:"breakers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.VectorStore.OK)
	assert.Zero(t, body.VectorStore.Records)
	assert.Equal(t, "closed", body.Breakers["llm"])
}

func TestPage_Flow(t *testing.T) {
	router := newTestRouter(t)

	w, _ := do(t, router, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No conversation yet.")
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, "docqa_session", cookie.Name)

	req := uploadRequest(t, "/upload", map[string]string{"sky.txt": "The sky is blue."})
	req.AddCookie(cookie)
	w, _ = do(t, router, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Documents processed successfully!")
	assert.Empty(t, w.Result().Cookies())

	req = httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader("question=What+color+is+the+sky%3F"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	w, _ = do(t, router, req)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "What color is the sky?")
	assert.Contains(t, body, "<strong>blue</strong>")
	assert.Contains(t, body, "Source 1: sky.txt, page N/A")

	req = httptest.NewRequest(http.MethodGet, "/export", nil)
	req.AddCookie(cookie)
	w, _ = do(t, router, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"source": "sky.txt"`)

	req = httptest.NewRequest(http.MethodPost, "/clear", nil)
	req.AddCookie(cookie)
	w, _ = do(t, router, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Conversation cleared.")
	assert.Contains(t, w.Body.String(), "No conversation yet.")
}

func TestPage_AskWithoutDocuments(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader("question=hello"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w, _ := do(t, router, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "please upload and process documents first")
}
