package httpapi

import (
	"encoding/json"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github-trend-scout/internal/domain"
	"github-trend-scout/internal/platform/logger"

	chimw "github.com/go-chi/chi/v5/middleware"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// requestContext 把 chi 生成的 request id 放进日志上下文，下游 logger.C 会带上它
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := chimw.GetReqID(r.Context())
		if reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r.WithContext(logger.WithRequest(r.Context(), reqID)))
	})
}

// captureWriter 记录状态码和写出的字节数
type captureWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	n, err := cw.ResponseWriter.Write(b)
	if n > 0 {
		cw.bytes += n
	}
	return n, err
}

// accessLog 访问日志，慢请求用 warn 级别
func accessLog(slow time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cw := &captureWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(cw, r)

			elapsed := time.Since(start)
			log := logger.C(r.Context())
			evt := log.Info()
			if slow > 0 && elapsed >= slow {
				evt = log.Warn()
			}
			evt.Int("status", cw.status).
				Dur("elapsed", elapsed).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote", r.RemoteAddr).
				Int("bytes", cw.bytes).
				Msg("请求完成")
		})
	}
}

// recoverJSON 捕获 panic，返回 500 和 JSON-RPC 内部错误
func recoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				logger.C(r.Context()).Error().
					Interface("panic", v).
					Bytes("stack", debug.Stack()).
					Msg("请求处理 panic")
				writeJSON(w, http.StatusInternalServerError,
					domain.NewErrorResponse(nil, domain.CodeInternalError, "internal error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// ipLimiter 每个客户端 IP 一个令牌桶，长期不活跃的桶会被 LRU 淘汰
type ipLimiter struct {
	buckets *lru.Cache[string, *rate.Limiter]
	limit   rate.Limit
	burst   int
}

const maxTrackedClients = 10000

func newIPLimiter(perMinute int) (*ipLimiter, error) {
	buckets, err := lru.New[string, *rate.Limiter](maxTrackedClients)
	if err != nil {
		return nil, err
	}
	return &ipLimiter{
		buckets: buckets,
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
	}, nil
}

func (l *ipLimiter) allow(ip string) bool {
	b, ok := l.buckets.Get(ip)
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		// 同一 IP 的并发请求可能已经抢先创建了令牌桶
		if prev, found, _ := l.buckets.PeekOrAdd(ip, b); found {
			b = prev
		}
	}
	return b.Allow()
}

// rateLimit 超出每分钟配额时返回 429 和 Retry-After
func rateLimit(l *ipLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(clientIP(r)) {
				w.Header().Set("Retry-After", strconv.Itoa(60))
				writeJSON(w, http.StatusTooManyRequests, map[string]string{
					"error": "rate limit exceeded, retry in 60 seconds",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP 去掉直连时 RemoteAddr 里的端口
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
