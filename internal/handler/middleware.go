package handler

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"fraudservice/internal/model"
)

const (
	slowRequestThreshold = 100 * time.Millisecond
	sampleInterval       = 10 * time.Second
)

// RequestLogger logs every failed, non-200 or slow request, and otherwise
// one request per sampleInterval.
func RequestLogger(logger *zap.Logger) fiber.Handler {
	var (
		lastLogTime atomic.Value
		logMutex    sync.Mutex
	)
	lastLogTime.Store(time.Now())

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		latency := time.Since(start)

		// Always log errors and slow requests
		if err != nil || latency > slowRequestThreshold || c.Response().StatusCode() != fiber.StatusOK {
			logger.Info("request",
				zap.Int("status", c.Response().StatusCode()),
				zap.Duration("latency", latency),
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
			return err
		}

		last := lastLogTime.Load().(time.Time)
		if time.Since(last) >= sampleInterval {
			logMutex.Lock()
			// Double-check after acquiring lock
			if last = lastLogTime.Load().(time.Time); time.Since(last) >= sampleInterval {
				logger.Info("sampled_request",
					zap.Int("status", c.Response().StatusCode()),
					zap.Duration("latency", latency),
					zap.String("method", c.Method()),
					zap.String("path", c.Path()),
				)
				lastLogTime.Store(time.Now())
			}
			logMutex.Unlock()
		}

		return err
	}
}

// ErrorHandler renders errors that escape a handler, including recovered
// panics, as {"error": message}.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}

		if code >= fiber.StatusInternalServerError {
			logger.Error("unhandled request error",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err))
		}

		return c.Status(code).JSON(model.ErrorResponse{Error: err.Error()})
	}
}
