// Package control is the operator HTTP surface: status, pause, resume,
// emergency stop, stuck-exit retry and prometheus metrics.
package control

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rustyeddy/reversion/engine"
	"github.com/rustyeddy/reversion/metrics"
)

// Engine is the part of the lifecycle engine operators may drive.
type Engine interface {
	Status() engine.Report
	Pause()
	Resume() error
	EmergencyStop()
	RetryExit(ctx context.Context, positionID string) error
}

type Server struct {
	eng    Engine
	log    *zap.Logger
	router *gin.Engine
}

func NewServer(eng Engine, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{eng: eng, log: log.Named("control"), router: gin.New()}
	s.router.Use(gin.Recovery(), s.logger)
	s.Load(s.router)
	return s
}

// Load registers the routes on g.
func (s *Server) Load(g *gin.Engine) {
	g.GET("/healthz", s.healthz())
	g.GET("/status", s.status())
	g.GET("/positions", s.positions())
	g.POST("/pause", s.pause())
	g.POST("/resume", s.resume())
	g.POST("/emergency-stop", s.emergencyStop())
	g.POST("/positions/:id/retry-exit", s.retryExit())
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
}

func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("control listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Error("control shutdown", zap.Error(err))
		return err
	}
	s.log.Info("control stopped", zap.String("addr", addr))
	return nil
}

func (s *Server) logger(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.log.Debug("request",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", c.Writer.Status()),
		zap.String("ip", c.ClientIP()),
		zap.Duration("cost", time.Since(start)))
}
