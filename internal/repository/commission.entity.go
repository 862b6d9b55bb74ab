package repository

import (
	"time"

	"github.com/majmadigital/finance-ledger/internal/model"
	"github.com/majmadigital/finance-ledger/pkg/pg"
)

type CommissionEntity struct {
	pg.Model
	Name         string    `gorm:"column:name;not null;uniqueIndex"`
	Balance      int64     `gorm:"column:balance;not null;default:0"`
	TotalRaised  int64     `gorm:"column:total_raised;not null;default:0"`
	LastActivity time.Time `gorm:"column:last_activity;not null"`
}

func (CommissionEntity) TableName() string {
	return "commissions"
}

func toCommissionModel(e *CommissionEntity) *model.Commission {
	if e == nil {
		return nil
	}
	return &model.Commission{
		ID:           e.ID,
		Name:         e.Name,
		Balance:      e.Balance,
		TotalRaised:  e.TotalRaised,
		LastActivity: e.LastActivity,
	}
}

func toCommissionModels(entities []*CommissionEntity) []*model.Commission {
	if entities == nil {
		return nil
	}
	models := make([]*model.Commission, len(entities))
	for i, e := range entities {
		models[i] = toCommissionModel(e)
	}
	return models
}
