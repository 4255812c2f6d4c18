package usecase

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/chatrelay/internal/domain"
)

var tracer = otel.Tracer("usecase")

type MappingUsecase struct {
	repo   MappingRepository
	source MappingSource
}

func NewMappingUsecase(repo MappingRepository, source MappingSource) *MappingUsecase {
	return &MappingUsecase{repo: repo, source: source}
}

// GetChannels returns domain to channel id associations. An empty store is
// treated as never populated and refreshed from the source first.
func (uc *MappingUsecase) GetChannels(ctx context.Context) (map[string]string, error) {
	ctx, span := tracer.Start(ctx, "Mapping.Usecase.GetChannels")
	defer span.End()

	rules, err := uc.repo.List(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "failed to list mapping rules")
	}

	if len(rules) == 0 {
		slog.DebugContext(ctx, "no channel mapping found, fetching from source", slog.String("module", "mapping"))
		rules, err = uc.UpdateChannelMapping(ctx)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	span.SetAttributes(attribute.Int("rules", len(rules)))
	return domain.RulesToMap(rules), nil
}

// UpdateChannelMapping replaces the stored rules with a fresh copy from the
// source.
func (uc *MappingUsecase) UpdateChannelMapping(ctx context.Context) ([]domain.MappingRule, error) {
	ctx, span := tracer.Start(ctx, "Mapping.Usecase.UpdateChannelMapping")
	defer span.End()

	rules, err := uc.source.Fetch(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "failed to fetch mapping rules")
	}
	slog.InfoContext(ctx, "fetched mapping rules", slog.Int("count", len(rules)), slog.String("module", "mapping"))

	if err := uc.repo.Replace(ctx, rules); err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "failed to store mapping rules")
	}
	return rules, nil
}

func (uc *MappingUsecase) ListRules(ctx context.Context) ([]domain.MappingRule, error) {
	return uc.repo.List(ctx)
}
