package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kpeis695/ithaca-weather-dashboard/internal/config"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/logger"
)

type APIServer struct {
	server     *http.Server
	router     *gin.Engine
	handler    *APIHandler
	middleware *Middleware
	config     *config.Config
	logger     logger.Logger
}

func NewAPIServer(handler *APIHandler, middleware *Middleware, cfg *config.Config, log logger.Logger) *APIServer {
	gin.SetMode(gin.ReleaseMode)
	if cfg.App.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}

	return &APIServer{
		router:     gin.New(),
		handler:    handler,
		middleware: middleware,
		config:     cfg,
		logger:     log.WithField("component", "api_server"),
	}
}

func (s *APIServer) setupRoutes() {
	api := s.router.Group(s.config.API.BasePath)

	api.Use(s.middleware.Recovery())
	api.Use(s.middleware.Logging())
	api.Use(s.middleware.CORS())
	api.Use(s.middleware.RateLimit())

	api.GET("/health", s.handler.HealthCheck)
	api.GET("/locations", s.handler.GetLocations)

	readings := api.Group("/readings")
	{
		readings.GET("", s.handler.GetReadings)
		readings.GET("/latest/:location_id", s.handler.GetLatestReading)
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Not Found",
			"message": fmt.Sprintf("Route %s not found", c.Request.URL.Path),
		})
	})
}

func (s *APIServer) Start() error {
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.API.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.Infof("Starting API server on port %d", s.config.API.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	return nil
}

func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.App.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	s.logger.Info("API server stopped")
	return nil
}
