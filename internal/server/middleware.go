package server

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/HerbHall/bambulink/internal/version"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTP metrics are labelled by mux pattern, never by raw path.
var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bambulink_http_requests_total",
			Help: "HTTP requests served, by route pattern and status code.",
		},
		[]string{"route", "code"},
	)
	httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bambulink_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(httpRequests, httpLatency)
}

const (
	headerRequestID = "X-Request-ID"
	headerVersion   = "X-Bambulink-Version"

	maxRequestIDLen = 64
	maxTrackedHosts = 4096
	unmatchedRoute  = "unmatched"
)

// Middleware is a function that wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain applies middleware in order (first argument is outermost).
func Chain(handler http.Handler, mw ...Middleware) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	return handler
}

type requestIDKey struct{}

// RequestID returns the request ID carried by ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// traceRequests tags every request with an ID. A caller-supplied
// X-Request-ID is kept when it is short printable ASCII.
func traceRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '!' || id[i] > '~' {
			return false
		}
	}
	return true
}

// routeOf names the mux pattern that would serve r.
func routeOf(mux *http.ServeMux, r *http.Request) string {
	if _, pattern := mux.Handler(r); pattern != "" {
		return pattern
	}
	return unmatchedRoute
}

// accessLog records metrics for every request and logs those whose route
// is not in quiet. Server errors log at warn.
func accessLog(logger *zap.Logger, mux *http.ServeMux, quiet ...string) Middleware {
	skip := make(map[string]struct{}, len(quiet))
	for _, q := range quiet {
		skip[q] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := routeOf(mux, r)
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}

			next.ServeHTTP(rec, r)

			elapsed := time.Since(start)
			httpRequests.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
			httpLatency.WithLabelValues(route).Observe(elapsed.Seconds())

			if _, ok := skip[route]; ok && rec.code < http.StatusInternalServerError {
				return
			}
			level := zap.InfoLevel
			if rec.code >= http.StatusInternalServerError {
				level = zap.WarnLevel
			}
			logger.Log(level, "http request",
				zap.String("route", route),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.code),
				zap.Int("bytes", rec.bytes),
				zap.Duration("duration", elapsed),
				zap.String("remote", r.RemoteAddr),
				zap.String("request_id", RequestID(r.Context())),
			)
		})
	}
}

// hardenHeaders sets response headers for a JSON-only API serving live
// printer state.
func hardenHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		h.Set(headerVersion, version.Short())
		next.ServeHTTP(w, r)
	})
}

// recoverPanics turns a handler panic into a 500 problem response.
// http.ErrAbortHandler is re-raised so net/http can drop the connection.
func recoverPanics(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic in handler",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.String("request_id", RequestID(r.Context())),
				)
				InternalError(w, "an unexpected error occurred", r.URL.Path)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// limitRemote applies a token bucket per remote host. Routes in exempt
// bypass the limit. Rejections carry Retry-After.
func limitRemote(rps float64, burst int, mux *http.ServeMux, exempt ...string) Middleware {
	buckets := newHostBuckets(rate.Limit(rps), burst)
	skip := make(map[string]struct{}, len(exempt))
	for _, e := range exempt {
		skip[e] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[routeOf(mux, r)]; ok {
				next.ServeHTTP(w, r)
				return
			}
			if wait, ok := buckets.take(remoteHost(r)); !ok {
				RateLimited(w, "rate limit exceeded", r.URL.Path, wait)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// hostBuckets holds one limiter per remote host. Full buckets are
// indistinguishable from new ones, so they are the ones pruned.
type hostBuckets struct {
	mu     sync.Mutex
	limit  rate.Limit
	burst  int
	byHost map[string]*rate.Limiter
}

func newHostBuckets(limit rate.Limit, burst int) *hostBuckets {
	return &hostBuckets{limit: limit, burst: burst, byHost: make(map[string]*rate.Limiter)}
}

// take spends one token for host. When none is available it reports how
// long until one will be.
func (b *hostBuckets) take(host string) (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	lim, ok := b.byHost[host]
	if !ok {
		if len(b.byHost) >= maxTrackedHosts {
			b.prune()
		}
		lim = rate.NewLimiter(b.limit, b.burst)
		b.byHost[host] = lim
	}

	now := time.Now()
	res := lim.ReserveN(now, 1)
	if !res.OK() {
		return 0, false
	}
	if wait := res.DelayFrom(now); wait > 0 {
		res.CancelAt(now)
		return wait, false
	}
	return 0, true
}

// prune drops limiters that have refilled. Caller holds b.mu.
func (b *hostBuckets) prune() {
	for host, lim := range b.byHost {
		if lim.Tokens() >= float64(b.burst) {
			delete(b.byHost, host)
		}
	}
}

// remoteHost is the peer address without port. Forwarding headers are
// ignored: the bridge is reached directly, and honouring them would let a
// client pick its own bucket.
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// retryAfterSeconds rounds d up to whole seconds, minimum one.
func retryAfterSeconds(d time.Duration) string {
	return strconv.Itoa(int(math.Max(1, math.Ceil(d.Seconds()))))
}

// statusRecorder captures the status code and body size. Unwrap lets
// http.ResponseController reach the hijacker for websocket upgrades.
type statusRecorder struct {
	http.ResponseWriter
	code        int
	bytes       int
	wroteHeader bool
}

func (w *statusRecorder) WriteHeader(code int) {
	if !w.wroteHeader {
		w.code = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
