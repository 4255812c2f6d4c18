package gateway

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/totegamma/chatrelay/client"
	"github.com/totegamma/chatrelay/internal/domain"
)

var tracer = otel.Tracer("gateway")

type sheetRow struct {
	Domain    string `json:"Email domain"`
	ChannelID string `json:"Slack channel ID"`
}

type sheetResponse struct {
	Data []sheetRow `json:"data"`
}

// SheetSource reads mapping rules from a published spreadsheet JSON endpoint.
type SheetSource struct {
	client *client.Client
	url    string
}

func NewSheetSource(cl *client.Client, url string) *SheetSource {
	return &SheetSource{client: cl, url: url}
}

func (s *SheetSource) Fetch(ctx context.Context) ([]domain.MappingRule, error) {
	ctx, span := tracer.Start(ctx, "Sheet.Gateway.Fetch")
	defer span.End()

	var response sheetResponse
	if err := s.client.GetJSON(ctx, s.url, client.Options{}, &response); err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "failed to fetch channels mapping")
	}

	rules := make([]domain.MappingRule, 0, len(response.Data))
	for _, row := range response.Data {
		d := strings.TrimSpace(row.Domain)
		c := strings.TrimSpace(row.ChannelID)
		if d == "" || c == "" {
			continue
		}
		rules = append(rules, domain.MappingRule{Domain: d, ChannelID: c})
	}
	return rules, nil
}
