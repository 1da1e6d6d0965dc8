package web

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const requestIDHeader = "X-Request-ID"

func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		c.Next()

		var traceID string
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.IsValid() {
			traceID = sc.TraceID().String()
		}

		s.l.Info("access",
			zap.String("method", c.Request.Method),
			zap.String("url", c.Request.URL.Path),
			zap.String("proto", c.Request.Proto),
			zap.Int("status", c.Writer.Status()),
			zap.String("user_agent", c.Request.UserAgent()),
			zap.String("request_id", requestID),
			zap.String("trace_id", traceID),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func (s *Server) recoverMiddleware() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, re any) {
		err, ok := re.(error)
		if !ok {
			err = fmt.Errorf("%v: %w", re, ErrPanic)
		}
		s.l.Error("panic", zap.String("url", c.Request.URL.Path), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
	})
}

// limiterStore keeps one token bucket per client IP.
type limiterStore struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func newLimiterStore(limit rate.Limit, burst int) *limiterStore {
	return &limiterStore{limit: limit, burst: burst, limiters: make(map[string]*rate.Limiter)}
}

func (s *limiterStore) get(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, ok := s.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(s.limit, s.burst)
		s.limiters[ip] = limiter
	}
	return limiter
}

// rateLimitMiddleware is a no-op when no limit is configured.
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiters.limit <= 0 {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if !s.limiters.get(ip).Allow() {
			s.l.Warn("Rate limit exceeded", zap.String("ip", ip))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded. Try again later."})
			return
		}
		c.Next()
	}
}
