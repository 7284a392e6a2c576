package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	xerrors "AgentSwap/internal/errors"
	"AgentSwap/internal/observability/metrics"
	"AgentSwap/internal/task"
	"AgentSwap/pkg/logger"
)

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.L().Warn("写入响应失败", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Code: string(xerrors.CodeOf(err)), Message: xerrors.MessageOf(err)}
	if e, ok := xerrors.From(err); ok {
		body.Details = e.Metadata()
	}
	writeJSON(w, statusFor(err), map[string]any{"error": body})
}

func statusFor(err error) int {
	switch xerrors.CodeOf(err) {
	case xerrors.CodeInvalidArgument, task.CodeTaskValidation:
		return http.StatusBadRequest
	case xerrors.CodeNotFound, task.CodeTaskNotFound:
		return http.StatusNotFound
	case xerrors.CodeConflict, task.CodeTaskConflict:
		return http.StatusConflict
	case xerrors.CodeInitializationFailure:
		return http.StatusServiceUnavailable
	case xerrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case xerrors.CodeUpstreamFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(name string, fn http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		fn(rec, r)
		metrics.ObserveHTTPRequest(name, r.Method, rec.status, time.Since(start))
		if rec.status >= http.StatusInternalServerError {
			s.logger.Warn("请求处理失败",
				slog.String("handler", name),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status))
		}
	})
}
