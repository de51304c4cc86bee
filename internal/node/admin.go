package node

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/kvlink/internal/auth"
	logs "github.com/danmuck/kvlink/internal/logging"
	"github.com/danmuck/kvlink/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const version = "0.1.0"

// AdminRouter builds the node's HTTP admin surface.
func (s *Server) AdminRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.AdminMiddleware(s.cfg.ID, log.Logger))
	if origins := normalizeOrigins(s.cfg.CorsOrigins); len(origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: origins,
			AllowMethods: []string{"GET"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
			MaxAge:       12 * time.Hour,
		}))
	}
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.started).String(),
			"node":    s.cfg.ID,
			"version": version,
		})
	})

	r.GET("/ready", func(c *gin.Context) {
		ready := s.serving.Load()
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":   ready,
			"node":    s.cfg.ID,
			"version": version,
		})
	})

	private := r.Group("/")
	if s.cfg.AdminToken != "" {
		private.Use(auth.Require(auth.StaticToken{Token: s.cfg.AdminToken}))
	}

	private.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.Stats())
	})

	private.GET("/keys", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"keys": s.store.Keys(c.Query("prefix"))})
	})

	private.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// ServeAdmin runs the admin surface on addr until ctx ends.
func (s *Server) ServeAdmin(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.AdminRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logs.Infof("node.ServeAdmin id=%q addr=%q", s.cfg.ID, addr)
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

// normalizeOrigins trims entries and drops blanks.
func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
