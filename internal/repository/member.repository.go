package repository

import (
	"context"
	"errors"
	"time"

	"github.com/majmadigital/finance-ledger/internal/model"
	"github.com/majmadigital/finance-ledger/pkg/pg"
	"gorm.io/gorm"
)

type MemberRepository struct {
	*pg.DB
}

func NewMemberRepository(db *pg.DB) *MemberRepository {
	return &MemberRepository{
		db,
	}
}

func (r *MemberRepository) Create(ctx context.Context, m *model.Member) (*model.Member, error) {
	entity := toMemberEntity(m)
	if entity.Role == "" {
		entity.Role = string(model.RoleMember)
	}

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, model.ErrDuplicateMember
		}
		return nil, err
	}

	return toMemberModel(entity), nil
}

func (r *MemberRepository) Get(ctx context.Context, id string) (*model.Member, error) {
	var entity MemberEntity
	err := r.Read(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrMemberNotFound
		}
		return nil, err
	}
	return toMemberModel(&entity), nil
}

func (r *MemberRepository) GetByEmail(ctx context.Context, email string) (*model.Member, error) {
	var entity MemberEntity
	err := r.Read(ctx).Where("email = ?", email).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrMemberNotFound
		}
		return nil, err
	}
	return toMemberModel(&entity), nil
}

// CreditContribution adds amount to the member's running total in a single
// UPDATE so concurrent payments never lose an increment.
func (r *MemberRepository) CreditContribution(ctx context.Context, memberID string, amount int64, at time.Time) error {
	result := r.Write(ctx).
		Model(&MemberEntity{}).
		Where("id = ?", memberID).
		Updates(map[string]interface{}{
			"total_contributed":      gorm.Expr("total_contributed + ?", amount),
			"last_contribution_date": at,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return model.ErrMemberNotFound
	}
	return nil
}

// ListIDs pages through member ids in ascending order, starting after the
// given id (empty for the first page).
func (r *MemberRepository) ListIDs(ctx context.Context, afterID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = model.DefaultListLimit
	}
	q := r.Read(ctx).Model(&MemberEntity{}).Order("id ASC").Limit(limit)
	if afterID != "" {
		q = q.Where("id > ?", afterID)
	}

	var ids []string
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
