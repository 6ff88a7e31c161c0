package httpcontext

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	appLogger "github.com/fastygo/taskwarlock/pkg/logger"
)

func newRequest(method, path string) *fasthttp.RequestCtx {
	var rc fasthttp.RequestCtx
	rc.Request.Header.SetMethod(method)
	rc.Request.SetRequestURI(path)
	return &rc
}

func TestAdapter_AttachReusesRequestID(t *testing.T) {
	rc := newRequest("GET", "/api/v1/tasks")
	rc.Request.Header.Set(HeaderRequestID, "req-42")
	rc.Request.Header.SetUserAgent("curl/8")

	ctx, cancel := NewAdapter(time.Second).Attach(rc)
	defer cancel()

	assert.Equal(t, "req-42", appLogger.RequestID(ctx))
	assert.Equal(t, "req-42", string(rc.Response.Header.Peek(HeaderRequestID)))
	assert.Equal(t, "GET /api/v1/tasks", ctx.Value(KeyRoute))
	assert.Equal(t, "curl/8", ctx.Value(KeyUserAgent))

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, 200*time.Millisecond)
}

func TestAdapter_AttachGeneratesRequestID(t *testing.T) {
	for name, header := range map[string]string{
		"missing":  "",
		"too long": strings.Repeat("x", maxRequestIDLen+1),
	} {
		t.Run(name, func(t *testing.T) {
			rc := newRequest("POST", "/api/v1/sync")
			if header != "" {
				rc.Request.Header.Set(HeaderRequestID, header)
			}
			ctx, cancel := NewAdapter(0).Attach(rc)
			defer cancel()

			_, err := uuid.Parse(appLogger.RequestID(ctx))
			assert.NoError(t, err)
		})
	}
}

func TestAdapter_CancelEndsContext(t *testing.T) {
	ctx, cancel := NewAdapter(time.Minute).Attach(newRequest("GET", "/health"))
	cancel()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestIsControl(t *testing.T) {
	assert.True(t, strings.ContainsFunc("abc\x01", isControl))
	assert.False(t, strings.ContainsFunc("req-42_ok", isControl))
}
