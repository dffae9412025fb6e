package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dgi-platform/rendezvous-service/internal/logging"
)

// LoginLimiter throttles login attempts per client address with a fixed
// window: the first attempt opens a window, every attempt inside it is
// counted, and once the count exceeds `attempts` all further requests are
// rejected until the window expires. Attempts during lockout do not extend
// the window.
type LoginLimiter struct {
	mu       sync.Mutex
	clients  map[string]*attemptWindow
	attempts int
	window   time.Duration
	logger   *logging.Logger
	now      func() time.Time
}

type attemptWindow struct {
	start time.Time
	count int
}

// NewLoginLimiter creates a limiter allowing `attempts` tries per `window`
// for each client.
func NewLoginLimiter(attempts int, window time.Duration, logger *logging.Logger) *LoginLimiter {
	if attempts <= 0 {
		attempts = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	if logger == nil {
		logger = logging.NewDefault("middleware")
	}
	return &LoginLimiter{
		clients:  make(map[string]*attemptWindow),
		attempts: attempts,
		window:   window,
		logger:   logger,
		now:      time.Now,
	}
}

func (rl *LoginLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w := rl.clients[key]
	if w == nil || now.Sub(w.start) >= rl.window {
		rl.clients[key] = &attemptWindow{start: now, count: 1}
		return true
	}
	w.count++
	return w.count <= rl.attempts
}

// clientKey identifies the caller by IP, ignoring the ephemeral port.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Handler returns the rate limiting middleware handler.
func (rl *LoginLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)

		if !rl.allow(key) {
			rl.logger.LogSecurityEvent(r.Context(), "login_rate_limit_exceeded", map[string]interface{}{
				"client": key,
				"path":   r.URL.Path,
			})
			writeJSONError(w, http.StatusTooManyRequests, "Trop de tentatives. Veuillez réessayer plus tard.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Cleanup drops per-client windows that have already expired.
func (rl *LoginLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, w := range rl.clients {
		if now.Sub(w.start) >= rl.window {
			delete(rl.clients, key)
		}
	}
}

// StartCleanup runs Cleanup on the given interval in a background goroutine.
func (rl *LoginLimiter) StartCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			rl.Cleanup()
		}
	}()
}
