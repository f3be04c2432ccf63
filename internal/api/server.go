package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"Snowz-Migrator/internal/app"
	"Snowz-Migrator/internal/descriptor"
	xerrors "Snowz-Migrator/internal/errors"
	"Snowz-Migrator/internal/observability/metrics"
	"Snowz-Migrator/pkg/logger"
)

// Server 负责暴露 REST 接口。
type Server struct {
	addr    string
	service *app.Service
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, service *app.Service) *Server {
	return &Server{addr: addr, service: service}
}

// Handler 返回注册了全部路由的处理器。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/v1/descriptors/resolve", instrument("/api/v1/descriptors/resolve", s.handleResolve))
	mux.Handle("/api/v1/migrations", instrument("/api/v1/migrations", s.handleMigrations))
	mux.Handle("/healthz", instrument("/healthz", handleHealth))
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}

type errorResponse struct {
	Code      string `json:"code"`
	Field     string `json:"field,omitempty"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	if s.service == nil {
		http.Error(w, "服务未初始化", http.StatusServiceUnavailable)
		return
	}

	raw, err := descriptor.Decode(http.MaxBytesReader(w, r.Body, 1<<20), descriptor.FormatJSON)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    string(xerrors.CodeInvalidArgument),
			Message: "请求体解析失败: " + err.Error(),
		})
		return
	}

	desc, err := s.service.Resolve(r.Context(), raw)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

func (s *Server) handleMigrations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.service == nil {
		http.Error(w, "服务未初始化", http.StatusServiceUnavailable)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := s.service.History(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeError 把错误码映射为 HTTP 状态码。
func writeError(w http.ResponseWriter, err error) {
	var cfgErr *descriptor.ConfigError
	if errors.As(err, &cfgErr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    string(xerrors.CodeConfigInvalid),
			Field:   cfgErr.Field,
			Message: cfgErr.Reason,
		})
		return
	}

	code := xerrors.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case xerrors.CodeInvalidArgument, xerrors.CodeConfigInvalid, xerrors.CodeConnectionStringInvalid:
		status = http.StatusBadRequest
	case xerrors.CodeNotFound:
		status = http.StatusNotFound
	case xerrors.CodeLockHeld:
		status = http.StatusConflict
	case xerrors.CodeStorageFailure, xerrors.CodePublishFailure:
		status = http.StatusServiceUnavailable
	}
	if xerrors.SeverityOf(err) == xerrors.SeverityCritical {
		logger.Named("api").Error("请求处理失败", "code", code, "error", err)
	}
	writeJSON(w, status, errorResponse{Code: string(code), Message: err.Error(), Retryable: xerrors.RetryableError(err)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument 记录每个请求的状态码与耗时。
func instrument(name string, fn http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		fn(rec, r)
		metrics.ObserveHTTPRequest(name, r.Method, rec.status, time.Since(start))
	})
}
