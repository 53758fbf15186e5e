package health

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/john/chattui/internal/twitch"
)

// StateFunc reports the current session state.
type StateFunc func() twitch.State

type healthResponse struct {
	Status  string `json:"status"`
	Phase   string `json:"phase"`
	Attempt int    `json:"attempt"`
	Error   string `json:"error,omitempty"`
}

// Server provides the health and metrics endpoints.
type Server struct {
	server *http.Server
	log    *slog.Logger
}

// New creates a status server on addr. /health reports the session state
// and /metrics serves gatherer.
func New(addr string, state StateFunc, gatherer prometheus.Gatherer, log *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		st := state()
		resp := healthResponse{
			Status:  "ok",
			Phase:   st.Phase.String(),
			Attempt: st.Attempt,
		}
		if st.Err != nil {
			resp.Error = st.Err.Error()
		}

		code := http.StatusOK
		if st.Phase == twitch.PhaseTerminated {
			resp.Status = "terminated"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, resp)
	})

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       30 * time.Second,
		},
		log: log,
	}
}

// Handler exposes the router.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	s.log.Info("Status server listening", slog.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down status server")
	return s.server.Shutdown(ctx)
}
