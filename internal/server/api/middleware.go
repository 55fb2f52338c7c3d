package api

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/unidrive/internal/common"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	userIDKey         = "userID"
	sessionCookieName = common.TokenParamName
)

// requireAuth resolves the session token from the Authorization header,
// the "token" query parameter or the "token" cookie, in that order.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			s.abortWithError(c, common.ErrUnauthorized)
			return
		}

		userID, err := s.users.Authenticate(token)
		if err != nil {
			s.abortWithError(c, err)
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

func sessionToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if token := c.Query(common.TokenParamName); token != "" {
		return token
	}
	if token, err := c.Cookie(sessionCookieName); err == nil {
		return token
	}
	return ""
}

func currentUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		args := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if userID := currentUserID(c); userID != "" {
			args = append(args, "user_id", userID)
		}

		ctx := c.Request.Context()
		if c.Writer.Status() >= http.StatusInternalServerError {
			s.logger.Warn(ctx, "request", args...)
			return
		}
		s.logger.Info(ctx, "request", args...)
	}
}

// visitorIdleTTL is how long a client's bucket is kept after its last request.
const visitorIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP. Buckets idle for longer
// than visitorIdleTTL are dropped during lookups.
type RateLimiter struct {
	visitors  map[string]*visitor
	mu        sync.Mutex
	rate      rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func NewRateLimiter(r rate.Limit, b int) *RateLimiter {
	if b < 1 {
		b = 1
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     r,
		burst:    b,
		now:      time.Now,
	}
}

func (rl *RateLimiter) getVisitor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) >= visitorIdleTTL {
		rl.sweep(now)
	}

	v, exists := rl.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now

	return v.limiter
}

// sweep must be called with rl.mu held.
func (rl *RateLimiter) sweep(now time.Time) {
	for ip, v := range rl.visitors {
		if now.Sub(v.lastSeen) >= visitorIdleTTL {
			delete(rl.visitors, ip)
		}
	}
	rl.lastSweep = now
}

func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.getVisitor(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: errorBody{
				Kind:    "RateLimited",
				Message: "rate limit exceeded",
			}})
			return
		}
		c.Next()
	}
}
