package middleware

import (
	"bytes"
	"io"

	"github.com/labstack/echo/v4"
	"github.com/slack-go/slack"

	"github.com/totegamma/chatrelay/internal/present/rest/presenter"
)

type SlackMiddleware struct {
	signingSecret string
}

func NewSlackMiddleware(signingSecret string) *SlackMiddleware {
	return &SlackMiddleware{signingSecret: signingSecret}
}

// VerifySignature checks the Slack request signature of the body. Without a
// signing secret every request passes.
func (s *SlackMiddleware) VerifySignature(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.signingSecret == "" {
			return next(c)
		}

		_, span := tracer.Start(c.Request().Context(), "Slack.Middleware.VerifySignature")
		defer span.End()

		req := c.Request()
		body, err := io.ReadAll(req.Body)
		if err != nil {
			span.RecordError(err)
			return presenter.BadRequest(c, err)
		}
		req.Body = io.NopCloser(bytes.NewReader(body))

		sv, err := slack.NewSecretsVerifier(req.Header, s.signingSecret)
		if err != nil {
			span.RecordError(err)
			return presenter.Unauthorized(c, "invalid signature")
		}
		if _, err := sv.Write(body); err != nil {
			span.RecordError(err)
			return presenter.Unauthorized(c, "invalid signature")
		}
		if err := sv.Ensure(); err != nil {
			span.RecordError(err)
			return presenter.Unauthorized(c, "invalid signature")
		}

		return next(c)
	}
}
