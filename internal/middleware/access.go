package middleware

import (
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// AccessLog logs every request once it has been answered and turns handler
// panics into 500 responses.
func AccessLog(logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			start := time.Now()
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("handler panic",
						zap.Any("panic", rec),
						zap.ByteString("path", ctx.Path()),
						zap.Stack("stack"))
					ctx.ResetBody()
					ctx.SetStatusCode(fasthttp.StatusInternalServerError)
				}

				fields := []zap.Field{
					zap.ByteString("method", ctx.Method()),
					zap.ByteString("path", ctx.Path()),
					zap.Int("status", ctx.Response.StatusCode()),
					zap.Duration("took", time.Since(start)),
					zap.ByteString("request_id", ctx.Response.Header.Peek("X-Request-ID")),
				}
				if ctx.Response.StatusCode() >= fasthttp.StatusInternalServerError {
					logger.Warn("request served", fields...)
					return
				}
				logger.Debug("request served", fields...)
			}()

			next(ctx)
		}
	}
}
