package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"remoteworks-cleaner/internal/models/entities"
	"remoteworks-cleaner/internal/models/ports"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// HandlerConfig - значения по умолчанию для запросов
type HandlerConfig struct {
	DefaultBatchSize int
	MaxRequestTime   time.Duration
}

type Handler struct {
	cleanerUseCase ports.CleanerUseCase
	roleUseCase    ports.RoleUseCase
	cfg            HandlerConfig
	logger         *zap.Logger
}

// NewHandler создает новый обработчик HTTP-запросов
func NewHandler(uc ports.CleanerUseCase, roles ports.RoleUseCase, cfg HandlerConfig, logger *zap.Logger) *Handler {
	if cfg.DefaultBatchSize <= 0 {
		cfg.DefaultBatchSize = entities.MaxBatchCapacity
	}
	if cfg.MaxRequestTime <= 0 {
		cfg.MaxRequestTime = 5 * time.Minute
	}

	return &Handler{
		cleanerUseCase: uc,
		roleUseCase:    roles,
		cfg:            cfg,
		logger:         logger,
	}
}

// RegisterRoutes регистрирует пути API
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/cleanup", h.HandleCleanup).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/cleanup/async", h.HandleAsyncCleanup).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/cleanup/notifications", h.HandleNotificationsCleanup).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/cleanup/{taskID}", h.HandleGetCleanupStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/users/role", h.HandleSetUserRole).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/health", h.HandleHealthCheck).Methods(http.MethodGet)
}

// HandleCleanup обрабатывает синхронный запрос на очистку коллекции
func (h *Handler) HandleCleanup(w http.ResponseWriter, r *http.Request) {
	var req entities.CleanupRequest

	// Декодируем JSON-запрос
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	// Устанавливаем значения по умолчанию, если необходимо
	if req.BatchSize == 0 {
		req.BatchSize = h.cfg.DefaultBatchSize
	}

	// Создаем контекст с таймаутом
	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.MaxRequestTime)
	defer cancel()

	// Выполняем очистку
	result, err := h.cleanerUseCase.CleanCollection(ctx, req)
	if err != nil {
		h.respondWithCleanupError(w, result, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, result)
}

// HandleAsyncCleanup обрабатывает асинхронный запрос на очистку коллекции
func (h *Handler) HandleAsyncCleanup(w http.ResponseWriter, r *http.Request) {
	var req entities.CleanupRequest

	// Декодируем JSON-запрос
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	if req.BatchSize == 0 {
		req.BatchSize = h.cfg.DefaultBatchSize
	}

	// Запускаем асинхронную очистку
	taskID, err := h.cleanerUseCase.StartAsyncCleanup(r.Context(), req)
	if err != nil {
		h.respondWithCleanupError(w, nil, err)
		return
	}

	h.respondAccepted(w, taskID)
}

// HandleNotificationsCleanup удаляет старые уведомления и, по флагу, проекты с зависимыми документами.
// Параметр ?async=true запускает очистку в фоне.
func (h *Handler) HandleNotificationsCleanup(w http.ResponseWriter, r *http.Request) {
	var req entities.NotificationsCleanupRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request format")
		return
	}
	if req.BatchSize == 0 {
		req.BatchSize = h.cfg.DefaultBatchSize
	}

	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	if async {
		taskID, err := h.cleanerUseCase.StartAsyncNotificationsCleanup(r.Context(), req)
		if err != nil {
			h.respondWithCleanupError(w, nil, err)
			return
		}
		h.respondAccepted(w, taskID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.MaxRequestTime)
	defer cancel()

	result, err := h.cleanerUseCase.CleanNotifications(ctx, req)
	if err != nil {
		h.respondWithCleanupError(w, result, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, result)
}

// HandleGetCleanupStatus возвращает статус операции очистки
func (h *Handler) HandleGetCleanupStatus(w http.ResponseWriter, r *http.Request) {
	// Извлекаем ID задачи из URL
	vars := mux.Vars(r)
	taskID := vars["taskID"]

	// Получаем статус
	result, err := h.cleanerUseCase.GetCleanupStatus(r.Context(), taskID)
	if errors.Is(err, ports.ErrTaskNotFound) {
		h.respondWithError(w, http.StatusNotFound, "Task not found")
		return
	}
	if err != nil {
		h.logger.Error("Task status error", zap.String("task_id", taskID), zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.respondWithJSON(w, http.StatusOK, result)
}

// HandleSetUserRole назначает роль пользователю, найденному по email
func (h *Handler) HandleSetUserRole(w http.ResponseWriter, r *http.Request) {
	var req entities.RoleUpdateRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	result, err := h.roleUseCase.SetUserRole(r.Context(), req)
	switch {
	case err == nil:
		h.respondWithJSON(w, http.StatusOK, result)
	case errors.Is(err, entities.ErrUserNotFound):
		h.respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, entities.ErrAmbiguousUser):
		h.respondWithError(w, http.StatusConflict, err.Error())
	case isDomainError(err):
		h.respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("Set user role error", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// HandleHealthCheck проверяет работоспособность сервиса
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// Вспомогательные функции для ответов

func (h *Handler) respondAccepted(w http.ResponseWriter, taskID string) {
	h.respondWithJSON(w, http.StatusAccepted, map[string]string{
		"task_id":    taskID,
		"status":     entities.StatusPending,
		"status_url": "/api/v1/cleanup/" + taskID,
	})
}

// respondWithCleanupError отдает частичный результат вместе с ошибкой, если он есть
func (h *Handler) respondWithCleanupError(w http.ResponseWriter, result *entities.CleanupResult, err error) {
	if isDomainError(err) {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Error("Cleanup error", zap.Error(err))
	if result == nil {
		h.respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	code := http.StatusInternalServerError
	if result.Status == entities.StatusCanceled {
		code = http.StatusGatewayTimeout
	}
	h.respondWithJSON(w, code, result)
}

func (h *Handler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, map[string]string{"error": message})
}

func (h *Handler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	// Устанавливаем заголовок Content-Type
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	// Кодируем ответ в JSON
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Error encoding response", zap.Error(err))
	}
}

func isDomainError(err error) bool {
	var domainErr entities.DomainError
	return errors.As(err, &domainErr)
}
