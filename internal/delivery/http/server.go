package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"remoteworks-cleaner/internal/pkg/metrics"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ServerConfig - параметры HTTP-сервера
type ServerConfig struct {
	Port int
	// WriteTimeout должен покрывать синхронную очистку
	WriteTimeout time.Duration
}

// Server представляет HTTP-сервер
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer создает новый HTTP-сервер
func NewServer(handler *Handler, logger *zap.Logger, cfg ServerConfig) *Server {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 15 * time.Second
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(handler, logger, metrics.NewHTTPMetrics()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		logger:     logger,
	}
}

// NewRouter собирает маршруты API с middleware и восстановлением после паники
func NewRouter(handler *Handler, logger *zap.Logger, m metrics.HTTPMetrics) http.Handler {
	// Создаем маршрутизатор
	router := mux.NewRouter()

	// Регистрируем middleware
	router.Use(LoggingMiddleware(logger))
	router.Use(MetricsMiddleware(m))

	// Регистрируем маршруты
	handler.RegisterRoutes(router)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(logger)),
		handlers.PrintRecoveryStack(true),
	)(router)
}

// Start запускает HTTP-сервер
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", zap.String("address", s.httpServer.Addr))

	// Запускаем сервер
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Stop останавливает HTTP-сервер
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	// Останавливаем сервер
	return s.httpServer.Shutdown(ctx)
}
