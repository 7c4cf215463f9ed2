// file: internal/middleware/recovery.go
package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"coachhub/internal/response"
	"coachhub/internal/services"

	"go.uber.org/zap"
)

// Recovery turns a handler panic into a logged 500 response
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// Let net/http abort the connection as it normally would
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				requestLogger := logger
				if l, ok := r.Context().Value(LoggerKey).(*zap.Logger); ok {
					requestLogger = l
				}
				requestLogger.Error("Panic recovered",
					zap.Any("panic", rec),
					zap.String("panic_type", fmt.Sprintf("%T", rec)),
					zap.ByteString("stack", debug.Stack()),
				)

				response.QuickError(w, r, services.NewInternalError("panic while handling request", fmt.Errorf("%v", rec)))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
