package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"remoteworks-cleaner/internal/app"
	"remoteworks-cleaner/internal/delivery/http"
	"remoteworks-cleaner/internal/pkg/config"
	"remoteworks-cleaner/internal/pkg/logger"
	"remoteworks-cleaner/internal/pkg/metrics"
)

func main() {
	// Создаем контекст приложения
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Загружаем конфигурацию
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	// Инициализируем логгер
	l, err := logger.NewLogger(cfg.IsDevelopment())
	if err != nil {
		panic(err)
	}
	defer l.Sync()

	log := l.Named("main")

	if cfg.MetricsEnabled {
		metrics.InitRegistry()
	}

	// Подключаемся к хранилищам и собираем слои приложения
	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize application", zap.Error(err))
	}

	handler := http.NewHandler(application.Cleaner, application.Roles, http.HandlerConfig{
		DefaultBatchSize: cfg.Cleanup.DefaultBatchSize,
		MaxRequestTime:   cfg.Cleanup.MaxRequestTime,
	}, log.Named("handler"))

	// Создаем и запускаем HTTP-сервер
	server := http.NewServer(handler, log.Named("server"), http.ServerConfig{
		Port:         cfg.ServerPort,
		WriteTimeout: cfg.Cleanup.MaxRequestTime + 15*time.Second,
	})

	// Запускаем сервер в отдельной горутине
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Application started",
		zap.String("datastore", cfg.DatastoreBackend),
		zap.String("task_store", cfg.TaskStore))

	// Обрабатываем сигналы остановки
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Ждем сигнал остановки
	<-quit
	log.Info("Shutting down application...")

	// Даем серверу 30 секунд на завершение текущих запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	// Останавливаем сервер
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}

	// Дожидаемся асинхронных задач и закрываем хранилища
	application.Close()

	log.Info("Application stopped")
}
