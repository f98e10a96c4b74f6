package api

import (
	"context"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/relaytasks/dispatchd/pkg/id"
	"github.com/relaytasks/dispatchd/pkg/logger"
)

// requestIDKey is the context key for the per-request correlation ID.
type requestIDKey struct{}

// requestIDHeaders are checked, in order, for an existing request ID
// before one is generated.
var requestIDHeaders = []string{"X-Request-ID", "X-Request-Id", "X-Correlation-ID"}

// requestIDResponseHeader is the header the generated or forwarded ID is
// echoed back on.
const requestIDResponseHeader = "X-Request-ID"

// recoverStackSize bounds the stack trace captured on a panic.
const recoverStackSize = 4096

// requestID assigns a correlation ID to every request, reusing an
// upstream-supplied one when present so traces survive a proxy hop.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqID string
		for _, h := range requestIDHeaders {
			if v := r.Header.Get(h); v != "" {
				reqID = v
				break
			}
		}
		if reqID == "" {
			reqID = id.NewULID()
		}

		w.Header().Set(requestIDResponseHeader, reqID)
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDExtractor adapts requestID's context value to pkg/logger's
// ContextExtractor so request IDs show up on every log line. Pass it to
// logger.NewWithSentry when building the logger used by Server.
func RequestIDExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if v, ok := ctx.Value(requestIDKey{}).(string); ok && v != "" {
			return slog.String("request_id", v), true
		}
		return slog.Attr{}, false
	}
}

// recoverer turns a panic in a handler into a logged 500 response instead
// of killing the server's listener goroutine.
func recoverer(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					stack := make([]byte, recoverStackSize)
					n := runtime.Stack(stack, false)
					log.ErrorContext(r.Context(), "panic recovered",
						slog.Any("panic", rec), slog.String("stack", string(stack[:n])))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// cors applies a permissive, browser-friendly CORS policy: any origin,
// the standard verbs, and the headers a JSON API needs.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Add("Vary", "Origin")

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
