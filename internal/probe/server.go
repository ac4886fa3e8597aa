package probe

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/cqi/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const Version = "0.1.0"

// Server exposes a Prober over HTTP.
type Server struct {
	ID       string
	Addr     string
	Appeared time.Time

	prober *Prober
	router *gin.Engine
}

func NewServer(id, addr string, corsOrigins []string, prober *Prober) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		ID:       id,
		Addr:     addr,
		Appeared: time.Now(),
		prober:   prober,
		router:   r,
	}
	s.RegisterRoutes()
	return s
}

func (s *Server) HTTPRouter() *gin.Engine { return s.router }

func (s *Server) RegisterRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.ID,
			"version": Version,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ready once every target has been observed at least once
	s.router.GET("/ready", func(c *gin.Context) {
		seen := len(s.prober.Snapshot())
		want := len(s.prober.Targets())
		status := http.StatusOK
		if seen < want {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"ready": seen >= want, "observed": seen, "targets": want})
	})

	s.router.GET("/targets", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"targets": s.prober.Snapshot()})
	})

	s.router.GET("/targets/:target", func(c *gin.Context) {
		st, ok := s.prober.Lookup(c.Param("target"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "target not observed"})
			return
		}
		c.JSON(http.StatusOK, st)
	})

	s.router.POST("/probe", func(c *gin.Context) {
		results := s.prober.ProbeAll(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"targets": results})
	})
}

// Serve runs the HTTP listener until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("probe.Server listening addr=%s", s.Addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
