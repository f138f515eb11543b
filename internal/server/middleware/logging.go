package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/teamplatform/teamplatform/internal/ratelimit"
)

// probePaths are polled by orchestrators and logged at debug level.
var probePaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

type accessLogKey struct{}

// accessLog collects attributes contributed by inner handlers, such as the
// authenticated principal, for the single line written per request.
type accessLog struct {
	mu    sync.Mutex
	attrs []any
}

// AddLogAttrs attaches attrs to the access log line of the request carried
// by ctx. It does nothing outside Logger.
func AddLogAttrs(ctx context.Context, attrs ...slog.Attr) {
	al, ok := ctx.Value(accessLogKey{}).(*accessLog)
	if !ok {
		return
	}
	al.mu.Lock()
	for _, a := range attrs {
		al.attrs = append(al.attrs, a)
	}
	al.mu.Unlock()
}

// Logger writes one structured line per request once the response is done.
// The level follows the status: INFO below 400, WARN for client errors
// (429 included), ERROR for 5xx.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			al := &accessLog{}

			next.ServeHTTP(sw, r.WithContext(context.WithValue(r.Context(), accessLogKey{}, al)))

			level := slog.LevelInfo
			switch {
			case sw.status >= 500:
				level = slog.LevelError
			case sw.status >= 400:
				level = slog.LevelWarn
			case probePaths[r.URL.Path]:
				level = slog.LevelDebug
			}
			if !logger.Enabled(r.Context(), level) {
				return
			}

			class := "static"
			if !ratelimit.IsStaticAsset(r.URL.Path) {
				class = string(ratelimit.Classify(r.URL.Path))
			}

			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
				"bytes", sw.bytes,
				"request_id", GetRequestID(r.Context()),
				"client_ip", ClientIP(r),
				"route_class", class,
			}
			al.mu.Lock()
			args = append(args, al.attrs...)
			al.mu.Unlock()

			logger.Log(r.Context(), level, "request", args...)
		})
	}
}

// statusWriter records the status code and body size of a response.
type statusWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
