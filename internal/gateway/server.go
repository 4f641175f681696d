package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/bubblewire/bubblewire/internal/config"
	"github.com/bubblewire/bubblewire/internal/session"
	"github.com/bubblewire/bubblewire/internal/stream"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16 * 1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server exposes the chat pipeline over HTTP and WebSocket. Config is read
// through a provider on every use, so hot-reloaded values (auth token, model
// selection) take effect without a restart; only the listen port is fixed at
// startup.
type Server struct {
	cfg      func() *config.Config
	Pipeline *stream.Pipeline
	Store    *session.Store
	Conns    *ConnManager
	httpSrv  *http.Server
	startAt  time.Time
}

func NewServer(cfg func() *config.Config, pipeline *stream.Pipeline, store *session.Store) *Server {
	return &Server{
		cfg:      cfg,
		Pipeline: pipeline,
		Store:    store,
		Conns:    NewConnManager(),
		startAt:  time.Now(),
	}
}

// Start begins listening for connections and blocks until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/health", s.ginHealth)
	engine.GET("/ws", s.ginWebSocket)
	s.registerAPIRoutes(engine)

	port := s.cfg().Gateway.Port
	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: engine,
	}

	slog.Info("gateway starting", "port", port)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpSrv.Shutdown(shutdownCtx)
	}()

	if err := s.httpSrv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) ginHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"uptime":  time.Since(s.startAt).String(),
		"clients": s.Conns.Count(),
	})
}

func (s *Server) authenticate(token string) bool {
	expected := s.cfg().Gateway.Auth.Token
	if expected == "" {
		return true // no auth configured
	}
	return token == expected
}
