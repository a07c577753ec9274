package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"taskManager/internal/logger"
	"taskManager/internal/metrics"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const RequestIdKey contextKey = "request_id"

func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestId := r.Header.Get("X-Request-ID")
		if requestId == "" {
			requestId = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestId)

		ctx := context.WithValue(r.Context(), RequestIdKey, requestId)
		r = r.WithContext(ctx)

		next.ServeHTTP(w, r)
	})
}

func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIdKey).(string); ok {
		return id
	}
	return ""
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	size        int
	wroteHeader bool
}

func wrap(w http.ResponseWriter) *statusWriter {
	if sw, ok := w.(*statusWriter); ok {
		return sw
	}
	return &statusWriter{ResponseWriter: w, status: http.StatusOK}
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
		sw.ResponseWriter.WriteHeader(code)
	}
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if !sw.wroteHeader {
		sw.WriteHeader(http.StatusOK)
	}

	n, err := sw.ResponseWriter.Write(b)
	sw.size += n
	return n, err
}

func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestId := GetRequestID(r.Context())

		fields := []zap.Field{zap.String("request_id", requestId)}
		if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
			fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
		}

		logger.Info(
			"HTTP_IN: Начало запроса",
			append(fields,
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.String("client_ip", r.RemoteAddr),
			)...,
		)

		sw := wrap(w)
		next.ServeHTTP(sw, r)

		logLevel := zap.InfoLevel
		if sw.status >= 400 && sw.status < 500 {
			logLevel = zap.WarnLevel
		} else if sw.status >= 500 {
			logLevel = zap.ErrorLevel
		}
		logger.Log(
			logLevel,
			"HTTP_OUT: Завершение запроса",
			append(fields,
				zap.Int("status", sw.status),
				zap.Int("bytes_written", sw.size),
				zap.Duration("ms", time.Since(start)),
			)...,
		)
	})
}

// Recover - chi Recoverer, но ответ 500 отдаётся телом ошибки API, а паника пишется в zap
func Recover(next http.Handler) http.Handler {
	recoverer := chimw.Recoverer(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pw := &panicWriter{statusWriter: wrap(w), requestID: GetRequestID(r.Context())}
		recoverer.ServeHTTP(pw, chimw.WithLogEntry(r, &panicLog{pw: pw}))
	})
}

// panicWriter подменяет пустой 500 от Recoverer на JSON
type panicWriter struct {
	*statusWriter
	requestID string
	panicked  bool
}

func (pw *panicWriter) WriteHeader(code int) {
	if !pw.panicked || pw.wroteHeader {
		pw.statusWriter.WriteHeader(code)
		return
	}
	writeJSON(pw.statusWriter, code, map[string]any{
		"error":      "INTERNAL_ERROR",
		"message":    "внутренняя ошибка сервера",
		"request_id": pw.requestID,
	})
}

// panicLog - chimw.LogEntry, Recoverer вызывает Panic вместо печати стека в stderr
type panicLog struct {
	pw *panicWriter
}

func (l *panicLog) Write(status, bytes int, header http.Header, elapsed time.Duration, extra interface{}) {
}

func (l *panicLog) Panic(v interface{}, stack []byte) {
	l.pw.panicked = true
	logger.Error("HTTP: Паника в обработчике", nil,
		zap.String("request_id", l.pw.requestID),
		zap.Any("panic", v),
		zap.ByteString("stack", stack))
}

// Metrics пишет счётчик и время запроса с шаблоном маршрута chi
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := wrap(w)

			next.ServeHTTP(sw, r)

			var route string
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
			}
			m.ObserveRequest(r.Method, route, sw.status, time.Since(start))
		})
	}
}

type clientInfo struct {
	count   int
	resetAt time.Time
}

// при таком числе клиентов просроченные окна вычищаются
const sweepThreshold = 10000

// RateLimit - фиксированное окно в минуту на IP клиента
func RateLimit(rpm int) func(http.Handler) http.Handler {
	clients := make(map[string]*clientInfo)
	var mtx sync.Mutex
	window := time.Minute

	return func(next http.Handler) http.Handler {
		if rpm <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := getIp(r)
			now := time.Now()

			mtx.Lock()

			if len(clients) >= sweepThreshold {
				for key, info := range clients {
					if now.After(info.resetAt) {
						delete(clients, key)
					}
				}
			}

			info, exists := clients[ip]

			if !exists {
				info = &clientInfo{
					count:   1,
					resetAt: now.Add(window),
				}
				clients[ip] = info
			} else if now.After(info.resetAt) {
				info.count = 1
				info.resetAt = now.Add(window)
			} else {
				if info.count >= rpm {
					retryAfter := int(info.resetAt.Sub(now).Seconds()) + 1
					mtx.Unlock()

					logger.Warn("HTTP: Превышен лимит запросов",
						zap.String("request_id", GetRequestID(r.Context())),
						zap.String("client_ip", ip))

					w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
					writeJSON(w, http.StatusTooManyRequests, map[string]any{
						"error":       "RATE_LIMIT_EXCEEDED",
						"message":     "Слишком много запросов. Попробуйте позже.",
						"retry_after": retryAfter,
						"request_id":  GetRequestID(r.Context()),
					})
					return
				}

				info.count++
			}

			// значения копируются до разблокировки
			remaining := rpm - info.count
			resetUnix := info.resetAt.Unix()

			mtx.Unlock()

			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rpm))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetUnix, 10))

			next.ServeHTTP(w, r)
		})
	}
}

// RemoteAddr уже переписан chimw.RealIP, если он стоит раньше в цепочке
func getIp(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
