package rest

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/totegamma/chatrelay/internal/domain"
	"github.com/totegamma/chatrelay/internal/infra/gateway"
	"github.com/totegamma/chatrelay/internal/present/rest/middleware"
	"github.com/totegamma/chatrelay/internal/present/rest/presenter"
	"github.com/totegamma/chatrelay/internal/service"
	"github.com/totegamma/chatrelay/internal/usecase"
)

// HealthCheck is one dependency checked by /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Handler struct {
	connection *usecase.ConnectionUsecase
	relay      *usecase.RelayUsecase
	mapping    *usecase.MappingUsecase
	signal     *service.SignalService
	auth       *middleware.AuthMiddleware
	slack      *middleware.SlackMiddleware
	health     []HealthCheck
}

func NewHandler(
	connection *usecase.ConnectionUsecase,
	relay *usecase.RelayUsecase,
	mapping *usecase.MappingUsecase,
	signal *service.SignalService,
	auth *middleware.AuthMiddleware,
	slack *middleware.SlackMiddleware,
	health ...HealthCheck,
) *Handler {
	return &Handler{
		connection: connection,
		relay:      relay,
		mapping:    mapping,
		signal:     signal,
		auth:       auth,
		slack:      slack,
		health:     health,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/message", h.handleMessage, h.slack.VerifySignature)
	e.POST("/update", h.handleUpdate, h.auth.RequireAdmin)
	e.GET("/socket", h.handleSocket)
	e.GET("/healthz", h.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

func (h *Handler) handleMessage(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	event, err := gateway.ParseSlackEvent(body)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	result, err := h.relay.HandleEvent(ctx, event)
	deliveriesTotal.Add(float64(result.Delivered))
	prunedTotal.Add(float64(result.Pruned))
	if err != nil {
		eventsTotal.WithLabelValues("failed").Inc()
		return presenter.InternalError(c, err)
	}

	switch event.(type) {
	case domain.ChallengeEvent:
		eventsTotal.WithLabelValues("challenge").Inc()
		return presenter.OK(c, echo.Map{"challenge": result.Challenge})
	case domain.MessageEvent:
		if result.Duplicate {
			eventsTotal.WithLabelValues("duplicate").Inc()
		} else {
			eventsTotal.WithLabelValues("message").Inc()
		}
	default:
		eventsTotal.WithLabelValues("ignored").Inc()
	}

	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleUpdate(c echo.Context) error {
	ctx := c.Request().Context()

	rules, err := h.mapping.UpdateChannelMapping(ctx)
	if err != nil {
		return presenter.InternalError(c, err)
	}

	slog.InfoContext(ctx, "channel mapping updated", slog.Int("rules", len(rules)), slog.String("module", "rest"))
	return presenter.OK(c, echo.Map{"status": "ok", "rules": rules})
}

func (h *Handler) handleHealth(c echo.Context) error {
	ctx := c.Request().Context()

	status := map[string]string{}
	var failed error
	for _, check := range h.health {
		if err := check.Check(ctx); err != nil {
			status[check.Name] = err.Error()
			failed = err
			continue
		}
		status[check.Name] = "ok"
	}

	if failed != nil {
		slog.WarnContext(ctx, "health check failed", slog.String("error", failed.Error()), slog.String("module", "rest"))
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unhealthy", "checks": status})
	}
	return presenter.OK(c, echo.Map{"status": "ok", "checks": status})
}
