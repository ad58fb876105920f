package httpserver

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"parley-server/internal/config"
	"parley-server/internal/infrastructure"
	middleware "parley-server/internal/interfaces/httpserver/middlewares"
	v1 "parley-server/internal/interfaces/httpserver/routes/v1"
)

type HTTPServer struct {
	engine  *gin.Engine
	infra   *infrastructure.Infrastructure
	v1Route *v1.V1Route
	config  *config.Config
}

func NewHttpServer(
	v1Route *v1.V1Route,
	infra *infrastructure.Infrastructure,
	cfg *config.Config,
) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)
	server := HTTPServer{
		gin.New(),
		infra,
		v1Route,
		cfg,
	}
	server.engine.Use(middleware.RequestID())
	server.engine.Use(middleware.TracingMiddleware(cfg.ServiceName))
	server.engine.Use(middleware.LoggingMiddleware(infra.Logger))
	server.engine.Use(middleware.CORSMiddleware())
	server.engine.Use(middleware.MetricsMiddleware())

	server.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness gates on the pieces a turn actually needs: the database and,
	// when JWT auth is on, a loaded key set.
	server.engine.GET("/readyz", server.getReadyz)

	return &server
}

func (httpServer *HTTPServer) getReadyz(c *gin.Context) {
	sqlDB, err := httpServer.infra.DB.DB()
	if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "database"})
		return
	}
	if httpServer.infra.Validator != nil && !httpServer.infra.Validator.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "jwks"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Engine exposes the underlying router for tests.
func (httpServer *HTTPServer) Engine() *gin.Engine {
	return httpServer.engine
}

func (httpServer *HTTPServer) Run() error {
	protected := httpServer.engine.Group("/")
	protected.Use(
		middleware.AuthMiddleware(httpServer.infra.Validator, httpServer.infra.Logger),
	)

	httpServer.v1Route.RegisterRouter(protected)

	if err := httpServer.engine.Run(fmt.Sprintf(":%d", httpServer.config.HTTPPort)); err != nil {
		return err
	}
	return nil
}
