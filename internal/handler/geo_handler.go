package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"fraudservice/internal/geo"
	"fraudservice/internal/model"
	"fraudservice/internal/service"
)

type GeoService interface {
	LookupIP(ctx context.Context, ip string) (*model.IPResponse, error)
	Snapshot() *geo.RangeIndex
}

type SummaryProvider interface {
	Summary() (*model.Summary, bool)
}

type Handler struct {
	service   GeoService
	summaries SummaryProvider
	logger    *zap.Logger
}

func NewHandler(service GeoService, summaries SummaryProvider, logger *zap.Logger) *Handler {
	return &Handler{
		service:   service,
		summaries: summaries,
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/api/v1/lookup/:ip", h.LookupIP)
	app.Get("/api/v1/health", h.HealthCheck)
	app.Get("/api/v1/summary", h.Summary)
}

func (h *Handler) LookupIP(c *fiber.Ctx) error {
	ip := c.Params("ip")
	if ip == "" {
		return c.Status(fiber.StatusBadRequest).JSON(model.Error{
			Message: "IP address is required",
		})
	}

	result, err := h.service.LookupIP(c.Context(), ip)
	if err != nil {
		switch {
		case errors.Is(err, geo.ErrInvalidAddress):
			return c.Status(fiber.StatusBadRequest).JSON(model.Error{
				Message: fmt.Sprintf("Invalid IP address format: %s", ip),
			})
		case errors.Is(err, service.ErrNotReady):
			return c.Status(fiber.StatusServiceUnavailable).JSON(model.Error{
				Message: "Geolocation data is not loaded yet",
			})
		}

		h.logger.Error("IP lookup failed",
			zap.String("ip", ip),
			zap.Error(err))

		return c.Status(fiber.StatusInternalServerError).JSON(model.Error{
			Message: "Failed to lookup IP address",
		})
	}

	if result.Country == model.Unresolved {
		return c.Status(fiber.StatusNotFound).JSON(model.Error{
			Message: "No country information found for this IP",
		})
	}

	return c.JSON(result)
}

func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	body := fiber.Map{
		"status": "healthy",
	}
	if h.service != nil {
		if idx := h.service.Snapshot(); idx != nil {
			body["geo_ranges"] = idx.Len()
			body["geo_snapshot"] = idx.Fingerprint()
		}
	}
	return c.JSON(body)
}

func (h *Handler) Summary(c *fiber.Ctx) error {
	if h.summaries == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(model.Error{
			Message: "No dataset summary available",
		})
	}
	summary, ok := h.summaries.Summary()
	if !ok {
		return c.Status(fiber.StatusServiceUnavailable).JSON(model.Error{
			Message: "No dataset summary available",
		})
	}
	return c.JSON(summary)
}
