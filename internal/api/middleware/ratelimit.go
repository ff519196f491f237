package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	limiterCleanupInterval = 10 * time.Minute
	limiterIdleTTL         = 30 * time.Minute
)

// Bucket is a token-bucket shape: Size tokens, refilled at Rate per Per.
type Bucket struct {
	Size int
	Rate int
	Per  time.Duration
}

func (b Bucket) limit() rate.Limit {
	if b.Rate <= 0 || b.Per <= 0 {
		return rate.Inf
	}
	return rate.Every(b.Per / time.Duration(b.Rate))
}

// clientLimiter stores the rate limiter for a specific client.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client. Authenticated callers are keyed by user id,
// everyone else by IP.
type RateLimiter struct {
	name    string
	bucket  Bucket
	clients map[string]*clientLimiter
	mu      sync.Mutex
	clock   clockwork.Clock
	logger  *zap.Logger
	stop    chan struct{}
	done    chan struct{}
}

// NewRateLimiter starts a limiter and its idle-client janitor. Call Close to stop the janitor.
func NewRateLimiter(name string, bucket Bucket, clock clockwork.Clock, logger *zap.Logger) *RateLimiter {
	rl := &RateLimiter{
		name:    name,
		bucket:  bucket,
		clients: make(map[string]*clientLimiter),
		clock:   clock,
		logger:  logger,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go rl.cleanupClients()
	return rl
}

func clientIdentifier(c *gin.Context) string {
	if id := UserID(c); id != "" {
		return "user:" + id
	}
	return "ip:" + c.ClientIP()
}

func (rl *RateLimiter) getClientLimiter(identifier string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, exists := rl.clients[identifier]
	if !exists {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.bucket.limit(), rl.bucket.Size)}
		rl.clients[identifier] = cl
	}
	cl.lastSeen = rl.clock.Now()
	return cl.limiter
}

func (rl *RateLimiter) cleanupClients() {
	defer close(rl.done)
	ticker := rl.clock.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.Chan():
			rl.sweep()
		}
	}
}

func (rl *RateLimiter) sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	count := 0
	for id, cl := range rl.clients {
		if rl.clock.Since(cl.lastSeen) > limiterIdleTTL {
			delete(rl.clients, id)
			count++
		}
	}
	if count > 0 {
		rl.logger.Debug("Rate limiter cleanup", zap.String("limiter", rl.name), zap.Int("removed", count))
	}
	return count
}

// Len reports how many clients are tracked.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Close stops the janitor goroutine.
func (rl *RateLimiter) Close() {
	close(rl.stop)
	<-rl.done
}

// Limit creates the Gin middleware handler.
func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := clientIdentifier(c)
		if !rl.getClientLimiter(key).AllowN(rl.clock.Now(), 1) {
			rl.logger.Info("Rate limit exceeded", zap.String("limiter", rl.name), zap.String("client", key), zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		c.Next()
	}
}
