// Package api exposes the session gateway contract over REST.
package api

import (
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"dainage/internal/auth"
	"dainage/internal/ports"
)

// Deps collects everything the handlers need.
type Deps struct {
	Sessions  ports.SessionGateway
	Projects  ports.ProjectDirectory
	Entries   ports.EntryLog
	Users     ports.UserDirectory
	JWTSecret []byte
	TokenTTL  time.Duration
	Log       *slog.Logger
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(d.Log))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	r.Use(cors.New(corsCfg))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(200, "ok")
	})

	h := &handlers{deps: d}

	v1 := r.Group("/api/v1")
	v1.POST("/auth/login", h.login)
	v1.POST("/auth/demo", h.demoLogin)

	protected := v1.Group("", auth.Middleware(d.JWTSecret))
	protected.GET("/projects", h.listProjects)
	protected.POST("/projects", h.createProject)
	protected.GET("/time-entries", h.listEntries)
	protected.GET("/time-entries/active", h.activeSession)
	protected.POST("/time-entries/start", h.startSession)
	protected.POST("/time-entries/:id/stop", h.stopSession)

	return r
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("dur", time.Since(start)),
		)
	}
}
