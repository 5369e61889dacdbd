package handlers

import (
	"errors"
	"net/http"

	"todoList/internal/logger"
	"todoList/internal/service"

	"go.uber.org/zap"
)

func handleBusinessError(w http.ResponseWriter, err error) bool {
	var businessErr *service.BusinessError
	if !errors.As(err, &businessErr) {
		return false
	}

	statusCode := mapBusinessErrorToHTTP(businessErr.Code)
	logger.Warn("HTTP: Бизнес-ошибка",
		zap.String("error_code", businessErr.Code),
		zap.Int("http_status", statusCode),
		zap.Error(businessErr.Err))

	responseWithJSON(w, statusCode,
		toPayload("error", businessErr.Code),
		toPayload("message", businessErr.Message),
		toPayload("details", businessErr.Details),
	)
	return true
}

func mapBusinessErrorToHTTP(code string) int {
	switch code {
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeValidation:
		return http.StatusBadRequest
	case service.CodePersistFailed:
		return http.StatusInternalServerError
	case service.CodeSyncFailed:
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

// respondError отвечает бизнес-ошибкой или 500 для всего остального.
func respondError(w http.ResponseWriter, err error, op string) {
	if handleBusinessError(w, err) {
		return
	}
	logger.Error("HTTP: Ошибка Service", err, zap.String("operation", op))
	responseWithError(w, http.StatusInternalServerError, err.Error())
}
