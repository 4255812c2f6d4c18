package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/totegamma/chatrelay/internal/domain"
	"github.com/totegamma/chatrelay/internal/present/rest/presenter"
	"github.com/totegamma/chatrelay/internal/service"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (h *Handler) handleSocket(c echo.Context) error {
	ctx := c.Request().Context()
	connectionID := uuid.NewString()

	_, err := h.connection.Connect(ctx, connectionID, c.QueryParam("token"))
	if err != nil {
		if errors.Is(err, domain.ErrUnauthenticated) {
			connectionsTotal.WithLabelValues("unauthenticated").Inc()
			return presenter.Unauthorized(c, "Unauthorized")
		}
		connectionsTotal.WithLabelValues("failed").Inc()
		return presenter.InternalError(c, err)
	}

	// the record outlives the request context
	defer func() {
		if err := h.connection.Disconnect(context.WithoutCancel(ctx), connectionID); err != nil {
			slog.ErrorContext(
				ctx, "failed to disconnect",
				slog.String("connection", connectionID),
				slog.String("error", err.Error()),
				slog.String("module", "socket"),
			)
		}
	}()

	sub, err := h.signal.Subscribe(ctx, connectionID)
	if err != nil {
		connectionsTotal.WithLabelValues("failed").Inc()
		return presenter.InternalError(c, err)
	}
	defer sub.Close()

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		connectionsTotal.WithLabelValues("failed").Inc()
		return nil
	}
	defer func() {
		ws.Close()
	}()

	connectionsTotal.WithLabelValues("accepted").Inc()
	activeSockets.Inc()
	defer activeSockets.Dec()

	slog.InfoContext(ctx, "socket connected", slog.String("connection", connectionID), slog.String("module", "socket"))

	replies := make(chan domain.Envelope)
	quit := make(chan struct{})
	done := make(chan struct{})
	defer close(done)

	go func() {
		defer close(quit)
		for {
			_, raw, err := ws.ReadMessage()
			if err != nil {
				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.DebugContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}
				return
			}

			envelope := h.handleFrame(ctx, connectionID, raw)
			select {
			case replies <- envelope:
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case envelope := <-replies:
			if err := writeJSON(ws, envelope); err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		case signal, ok := <-sub.C:
			if !ok {
				return nil
			}
			switch signal.Kind {
			case service.SignalPush:
				if err := writeRaw(ws, signal.Payload); err != nil {
					slog.ErrorContext(
						ctx, "Error writing message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
					return nil
				}
			case service.SignalClose:
				slog.InfoContext(ctx, "closing socket on request", slog.String("connection", connectionID), slog.String("module", "socket"))
				ws.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "no channel mapping"),
					time.Now().Add(writeTimeout),
				)
				return nil
			}
		}
	}
}

func (h *Handler) handleFrame(ctx context.Context, connectionID string, raw []byte) domain.Envelope {
	frame, correlationID, err := domain.ParseFrame(raw)
	if err != nil {
		framesTotal.WithLabelValues("malformed", "error").Inc()
		return domain.Envelope{Error: err.Error(), CorrelationID: correlationID}
	}

	label := domain.FrameType(frame)
	if _, ok := frame.(domain.UnknownFrame); ok {
		label = "unknown"
	}

	envelope, err := h.connection.HandleFrame(ctx, connectionID, frame, correlationID)
	if err != nil {
		framesTotal.WithLabelValues(label, "error").Inc()
		return domain.Envelope{Error: err.Error(), CorrelationID: correlationID}
	}

	outcome := "ok"
	if envelope.Error != "" {
		outcome = "error"
	}
	framesTotal.WithLabelValues(label, outcome).Inc()
	return envelope
}

func writeJSON(ws *websocket.Conn, v any) error {
	ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return ws.WriteJSON(v)
}

func writeRaw(ws *websocket.Conn, payload json.RawMessage) error {
	ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return ws.WriteMessage(websocket.TextMessage, payload)
}
