package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/totegamma/chatrelay/internal/domain"
	"github.com/totegamma/chatrelay/internal/infra/database/models"
)

type MappingRepository struct {
	db *gorm.DB
}

func NewMappingRepository(db *gorm.DB) *MappingRepository {
	return &MappingRepository{db: db}
}

func (r *MappingRepository) List(ctx context.Context) ([]domain.MappingRule, error) {
	ctx, span := tracer.Start(ctx, "Mapping.Repository.List")
	defer span.End()

	var rows []models.ChannelMapping
	err := r.db.WithContext(ctx).Order("position asc").Find(&rows).Error
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "failed to list channel mappings")
	}

	rules := make([]domain.MappingRule, len(rows))
	for i, row := range rows {
		rules[i] = domain.MappingRule{Domain: row.Domain, ChannelID: row.ChannelID}
	}
	return rules, nil
}

// Replace swaps the whole rule set in one transaction. Duplicate domains keep
// the last rule.
func (r *MappingRepository) Replace(ctx context.Context, rules []domain.MappingRule) error {
	ctx, span := tracer.Start(ctx, "Mapping.Repository.Replace")
	defer span.End()

	rows := toMappingRows(rules)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.ChannelMapping{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "failed to replace channel mappings")
	}
	return nil
}

func toMappingRows(rules []domain.MappingRule) []models.ChannelMapping {
	index := make(map[string]int, len(rules))
	rows := make([]models.ChannelMapping, 0, len(rules))
	for _, rule := range rules {
		if i, ok := index[rule.Domain]; ok {
			rows[i].ChannelID = rule.ChannelID
			continue
		}
		index[rule.Domain] = len(rows)
		rows = append(rows, models.ChannelMapping{
			Domain:    rule.Domain,
			ChannelID: rule.ChannelID,
			Position:  len(rows),
		})
	}
	return rows
}
