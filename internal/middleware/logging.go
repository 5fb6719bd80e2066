package middleware

import (
	"context"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/lifeboard/internal/apperr"
)

// callerSlotKey holds a *string the auth interceptors fill in, so an outer
// LoggingInterceptor learns who called.
const callerSlotKey contextKey = "caller_slot"

func recordCaller(ctx context.Context, userID string) {
	if slot, ok := ctx.Value(callerSlotKey).(*string); ok {
		*slot = userID
	}
}

// LoggingInterceptor returns a Connect interceptor that logs every RPC call
// with its procedure, caller and duration. Rejected calls (auth, validation,
// access, not found) log at warn, internal failures at error.
func LoggingInterceptor(logger *slog.Logger) connect.UnaryInterceptorFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			caller := GetUserID(ctx)
			ctx = context.WithValue(ctx, callerSlotKey, &caller)

			resp, err := next(ctx, req)

			attrs := []any{
				"procedure", req.Spec().Procedure,
				"user_id", caller, // empty if anonymous
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if err == nil {
				logger.Info("RPC ok", attrs...)
				return resp, nil
			}

			kind := apperr.KindOf(apperr.FromConnect(err))
			attrs = append(attrs, "kind", kind.String(), "error", err)
			if kind == apperr.KindInternal {
				logger.Error("RPC failed", attrs...)
			} else {
				logger.Warn("RPC rejected", attrs...)
			}
			return resp, err
		}
	}
}
