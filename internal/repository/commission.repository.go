package repository

import (
	"context"
	"errors"
	"time"

	"github.com/majmadigital/finance-ledger/internal/model"
	"github.com/majmadigital/finance-ledger/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CommissionRepository struct {
	*pg.DB
}

func NewCommissionRepository(db *pg.DB) *CommissionRepository {
	return &CommissionRepository{
		db,
	}
}

// Credit upserts the named commission and increments balance and totalRaised
// by amount. The increment happens in the ON CONFLICT branch of one INSERT,
// so the first payment creates the row and later ones add to it atomically.
func (r *CommissionRepository) Credit(ctx context.Context, name string, amount int64, at time.Time) (*model.Commission, error) {
	entity := &CommissionEntity{
		Model:        pg.Model{CreatedAt: at},
		Name:         name,
		Balance:      amount,
		TotalRaised:  amount,
		LastActivity: at,
	}

	err := r.Write(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"balance":       gorm.Expr("commissions.balance + ?", amount),
				"total_raised":  gorm.Expr("commissions.total_raised + ?", amount),
				"last_activity": at,
			}),
		}).
		Create(entity).
		Error
	if err != nil {
		return nil, err
	}

	return r.GetByName(ctx, name)
}

func (r *CommissionRepository) GetByName(ctx context.Context, name string) (*model.Commission, error) {
	var entity CommissionEntity
	err := r.Read(ctx).Where("name = ?", name).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrCommissionNotFound
		}
		return nil, err
	}
	return toCommissionModel(&entity), nil
}

func (r *CommissionRepository) List(ctx context.Context) ([]*model.Commission, error) {
	var entities []*CommissionEntity
	if err := r.Read(ctx).Order("name ASC").Find(&entities).Error; err != nil {
		return nil, err
	}
	return toCommissionModels(entities), nil
}
