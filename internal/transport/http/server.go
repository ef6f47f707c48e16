package http

import (
	"context"
	"errors"
	nethttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"docqa/internal/config"
	"docqa/internal/llmservice"
	"docqa/internal/rag"
	"docqa/internal/session"
	"docqa/internal/transport/http/handler"
)

// Deps are the services the router serves.
type Deps struct {
	Config   *config.Config
	Engine   *rag.Engine
	Sessions *session.Manager
	Guards   []*llmservice.Guard
}

func NewRouter(deps Deps) (*gin.Engine, error) {
	cfg := deps.Config
	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()
	router.Use(RequestLogger(), gin.Recovery(), CORS(cfg.Server.AllowOrigins))
	router.MaxMultipartMemory = int64(cfg.Server.MaxUploadMB) << 20

	healthHandler := handler.NewHealthHandler(deps.Engine, deps.Guards...)
	sessionHandler := handler.NewSessionHandler(deps.Sessions, cfg.App.UploadDir)
	pageHandler, err := handler.NewPageHandler(deps.Sessions, cfg.App.UploadDir)
	if err != nil {
		return nil, err
	}

	router.GET("/healthz", healthHandler.Check)
	router.GET("/", pageHandler.Index)
	router.POST("/upload", pageHandler.Upload)
	router.POST("/ask", pageHandler.Ask)
	router.POST("/clear", pageHandler.Clear)
	router.GET("/export", pageHandler.Export)

	v1 := router.Group("/api/v1")
	sessions := v1.Group("/sessions")
	sessions.POST("", sessionHandler.CreateSession)
	sessions.DELETE("/:id", sessionHandler.DeleteSession)
	sessions.POST("/:id/documents", sessionHandler.UploadDocuments)
	sessions.POST("/:id/ask", sessionHandler.Ask)
	sessions.GET("/:id/history", sessionHandler.GetHistory)
	sessions.DELETE("/:id/history", sessionHandler.ClearHistory)
	sessions.GET("/:id/export", sessionHandler.Export)

	return router, nil
}

// Serve runs the router on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, router *gin.Engine) error {
	srv := &nethttp.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
