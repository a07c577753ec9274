package handlers

import (
	"errors"
	"net/http"
	"taskManager/internal/logger"
	"taskManager/internal/middleware"
	"taskManager/internal/service"

	"go.uber.org/zap"
)

const CodeBadRequest = "BAD_REQUEST"
const CodeUnsupportedMediaType = "UNSUPPORTED_MEDIA_TYPE"
const CodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
const CodeInternal = "INTERNAL_ERROR"
const CodeUnavailable = "SERVICE_UNAVAILABLE"

const internalMessage = "внутренняя ошибка сервера"

// handleServiceError отвечает клиенту по ошибке сервиса.
// Бизнес-ошибки уходят как есть, всё остальное логируется и скрывается за 500
func handleServiceError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	var businessErr *service.BusinessError
	if errors.As(err, &businessErr) {
		statusCode := mapBusinessErrorToHTTP(businessErr.Code)

		logger.Warn("HTTP: Бизнес-ошибка",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.String("operation", operation),
			zap.String("error_code", businessErr.Code),
			zap.Int("http_status", statusCode))

		responseWithJSON(w, statusCode,
			toPayload("error", businessErr.Code),
			toPayload("message", businessErr.Message),
			toPayload("details", businessErr.Details),
			toPayload("request_id", middleware.GetRequestID(r.Context())),
		)
		return
	}

	logger.Error("HTTP: Ошибка Service", err,
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.String("operation", operation),
		zap.String("client_ip", r.RemoteAddr))

	responseWithError(w, r, http.StatusInternalServerError, CodeInternal, internalMessage)
}

func mapBusinessErrorToHTTP(code string) int {
	switch code {
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusBadRequest
	}
}
