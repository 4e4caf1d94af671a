package server

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/voice-hub/voice-hub/internal/speech"
)

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger  *logrus.Logger
	Service *speech.Service
}

const contextKeyRequestID = "_voicehub_request_id"

// NewApp builds a Fiber application with request-ID middleware and the
// conversion/diagnostics routes registered.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Service == nil {
		return nil, errors.New("speech service is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		// 音频上传可能较大，放宽默认 body 限制。
		BodyLimit: 50 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware())

	registerRoutes(app, opts.Service, opts.Logger)

	return app, nil
}

// requestContextMiddleware 为每个请求生成 ID，同时写入响应头与 context，
// 让服务层日志与客户端看到同一个标识。
func requestContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		c.SetContext(context.WithValue(c.Context(), speech.RequestIDKey, reqID))
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
