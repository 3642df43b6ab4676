package control

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rustyeddy/reversion/engine"
)

type stateResponse struct {
	State engine.State `json:"state"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) healthz() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	}
}

func (s *Server) status() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, s.eng.Status())
	}
}

// positions lists positions; ?active=true keeps only PENDING, OPEN and
// CLOSING ones.
func (s *Server) positions() gin.HandlerFunc {
	return func(c *gin.Context) {
		activeOnly := c.Query("active") == "true"
		out := []engine.Position{}
		for _, p := range s.eng.Status().Positions {
			if activeOnly && !p.Status.Active() {
				continue
			}
			out = append(out, p)
		}
		c.JSON(http.StatusOK, out)
	}
}

func (s *Server) pause() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.eng.Pause()
		s.log.Warn("entries paused by operator", zap.String("ip", c.ClientIP()))
		c.JSON(http.StatusOK, stateResponse{State: s.eng.Status().State})
	}
}

func (s *Server) resume() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.eng.Resume(); err != nil {
			c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
			return
		}
		s.log.Info("entries resumed by operator", zap.String("ip", c.ClientIP()))
		c.JSON(http.StatusOK, stateResponse{State: s.eng.Status().State})
	}
}

func (s *Server) emergencyStop() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.eng.EmergencyStop()
		s.log.Error("emergency stop by operator", zap.String("ip", c.ClientIP()))
		c.JSON(http.StatusOK, stateResponse{State: s.eng.Status().State})
	}
}

func (s *Server) retryExit() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		err := s.eng.RetryExit(c.Request.Context(), id)
		switch {
		case err == nil:
			c.JSON(http.StatusAccepted, gin.H{"position_id": id})
		case errors.Is(err, engine.ErrUnknownPosition):
			c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
		case errors.Is(err, engine.ErrNotStuck):
			c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}
	}
}
