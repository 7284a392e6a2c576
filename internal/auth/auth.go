// Package auth 为 direct 客户端提供基于静态 API Key 的访问控制。
package auth

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"AgentSwap/pkg/logger"
)

// 认证失败时返回的错误。
var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Service 校验请求携带的 Bearer Token。未配置任何 Key 时放行全部请求。
type Service struct {
	keys  [][]byte
	audit *slog.Logger
}

// NewService 以给定的 API Key 构造认证服务，空字符串会被忽略。
func NewService(keys ...string) *Service {
	s := &Service{audit: logger.Audit()}
	for _, key := range keys {
		if key = strings.TrimSpace(key); key != "" {
			s.keys = append(s.keys, []byte(key))
		}
	}
	return s
}

// Enabled 判断是否启用了认证。
func (s *Service) Enabled() bool {
	return s != nil && len(s.keys) > 0
}

// Authenticate 校验 Authorization 头。
func (s *Service) Authenticate(header string) error {
	if !s.Enabled() {
		return nil
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return ErrMissingToken
	}
	candidate := []byte(strings.TrimSpace(token))
	for _, key := range s.keys {
		if subtle.ConstantTimeCompare(candidate, key) == 1 {
			return nil
		}
	}
	return ErrInvalidToken
}

// Middleware 返回一个 HTTP 中间件，拒绝未认证的请求并记录审计日志。
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		if err := s.Authenticate(r.Header.Get("Authorization")); err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="agentswap"`)
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			s.audit.Warn("access_denied",
				slog.String("path", r.URL.Path),
				slog.String("method", r.Method),
				slog.String("error", err.Error()),
			)
			return
		}
		start := time.Now()
		aw := &auditWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(aw, r)
		s.audit.Info("api_request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", aw.status),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

// auditWriter 捕获响应状态码。
type auditWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader 捕获响应状态码并调用底层的 WriteHeader 方法。
func (w *auditWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
