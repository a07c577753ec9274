package handlers

import (
	"encoding/json"
	"net/http"
	"taskManager/internal/logger"
	"taskManager/internal/middleware"
)

type Payload struct {
	Key     string
	Payload any
}

func toPayload(key string, pl any) Payload {
	return Payload{Key: key, Payload: pl}
}

func toJSON(storage map[string]any, payload Payload) {
	storage[payload.Key] = payload.Payload
}

func responseWithJSON(w http.ResponseWriter, code int, payload ...Payload) {
	storage := make(map[string]any, len(payload))
	for _, pl := range payload {
		toJSON(storage, pl)
	}
	responseWithBody(w, code, storage)
}

func responseWithBody(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("HTTP: Не удалось записать ответ", err)
	}
}

func responseWithError(w http.ResponseWriter, r *http.Request, code int, errCode, message string, details ...Payload) {
	payload := []Payload{
		toPayload("error", errCode),
		toPayload("message", message),
		toPayload("request_id", middleware.GetRequestID(r.Context())),
	}
	if len(details) > 0 {
		detailMap := make(map[string]any, len(details))
		for _, d := range details {
			toJSON(detailMap, d)
		}
		payload = append(payload, toPayload("details", detailMap))
	}
	responseWithJSON(w, code, payload...)
}
