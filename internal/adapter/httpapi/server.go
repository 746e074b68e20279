// Package httpapi 基于 chi 提供 A2A 入口、健康检查和推送历史查询
package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github-trend-scout/internal/domain"
	"github-trend-scout/internal/platform/logger"
	"github-trend-scout/internal/port"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// MaxBodyBytes 请求体上限
const MaxBodyBytes = 1 << 20

// A2AHandler 把原始 JSON-RPC 请求体转换成 HTTP 状态码和响应信封
type A2AHandler interface {
	Handle(ctx context.Context, body []byte) (int, *domain.Response)
}

// Sizer 报告共享缓存的条目数
type Sizer interface {
	Len() int
}

// Options 服务配置
type Options struct {
	Addr           string
	AllowedOrigins []string
	RateLimitRPM   int // <= 0 时不限流
	SlowRequest    time.Duration
}

// Server 包装 chi 路由和 http.Server
type Server struct {
	mux     *chi.Mux
	srv     *http.Server
	agent   A2AHandler
	cache   Sizer
	history port.DigestHistory // 为 nil 时不挂载 /digests
	started time.Time
}

// NewServer 挂载中间件和路由
func NewServer(agent A2AHandler, cache Sizer, history port.DigestHistory, opt Options) (*Server, error) {
	s := &Server{
		mux:     chi.NewRouter(),
		agent:   agent,
		cache:   cache,
		history: history,
		started: time.Now(),
	}

	s.mux.Use(chimw.RequestID, chimw.RealIP, requestContext, accessLog(opt.SlowRequest), recoverJSON)

	origins := opt.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
		MaxAge:         300,
	}))

	var limiter *ipLimiter
	if opt.RateLimitRPM > 0 {
		l, err := newIPLimiter(opt.RateLimitRPM)
		if err != nil {
			return nil, err
		}
		limiter = l
	}

	s.mux.Get("/health", s.health)

	s.mux.Group(func(r chi.Router) {
		if limiter != nil {
			r.Use(rateLimit(limiter))
		}
		r.Post("/", s.a2a)
		r.Post("/trending", s.a2a)
		if history != nil {
			r.Get("/digests", s.digests)
		}
	})

	s.srv = &http.Server{
		Addr:              opt.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler 返回根 handler，主要给测试用
func (s *Server) Handler() http.Handler { return s.mux }

// Run 持续服务直到 ctx 结束，然后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	log := logger.Named("http")

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.srv.Addr).Msg("HTTP 服务已启动")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("HTTP 服务正在关闭")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	}
	if s.cache != nil {
		body["cache_entries"] = s.cache.Len()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) a2a(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge,
				domain.NewErrorResponse(nil, domain.CodeInvalidRequest, "request body too large"))
			return
		}
		writeJSON(w, http.StatusBadRequest,
			domain.NewErrorResponse(nil, domain.CodeInvalidRequest, "could not read request body"))
		return
	}

	status, resp := s.agent.Handle(r.Context(), body)
	writeJSON(w, status, resp)
}

func (s *Server) digests(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	records, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		logger.C(r.Context()).Error().Err(err).Msg("查询推送记录失败")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not load digest history"})
		return
	}
	if records == nil {
		records = []*domain.DigestRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"digests": records})
}
