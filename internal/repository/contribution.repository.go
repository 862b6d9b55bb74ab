package repository

import (
	"context"
	"errors"

	"github.com/majmadigital/finance-ledger/internal/model"
	"github.com/majmadigital/finance-ledger/pkg/pg"
	"gorm.io/gorm"
)

type ContributionRepository struct {
	*pg.DB
}

func NewContributionRepository(db *pg.DB) *ContributionRepository {
	return &ContributionRepository{
		db,
	}
}

func (r *ContributionRepository) Create(ctx context.Context, c *model.Contribution) (*model.Contribution, error) {
	entity := toContributionEntity(c)

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, model.ErrDuplicateTransactionID
		}
		return nil, err
	}

	return toContributionModel(entity), nil
}

func (r *ContributionRepository) GetByTransactionID(ctx context.Context, transactionID string) (*model.Contribution, error) {
	var entity ContributionEntity
	err := r.Read(ctx).Where("transaction_id = ?", transactionID).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrContributionNotFound
		}
		return nil, err
	}
	return toContributionModel(&entity), nil
}

// ListWithMembers returns contributions joined with the current member
// display fields, newest first. Ties on created_at fall back to the
// time-ordered id, which keeps pages stable.
func (r *ContributionRepository) ListWithMembers(ctx context.Context, f model.ContributionFilter) ([]*model.ContributionWithMember, int64, error) {
	f = f.Normalize()

	var total int64
	if err := r.filtered(ctx, f).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []*ContributionWithMemberEntity
	err := r.filtered(ctx, f).
		Select(`
            c.id                AS id,
            c.member_id         AS member_id,
            c.type              AS type,
            c.amount            AS amount,
            c.status            AS status,
            c.transaction_id    AS transaction_id,
            c.event_label       AS event_label,
            c.processed_by      AS processed_by,
            c.campaign_id       AS campaign_id,
            c.created_at        AS created_at,
            m.first_name        AS member_first_name,
            m.last_name         AS member_last_name,
            m.matricule         AS member_matricule
        `).
		Order("c.created_at DESC").
		Order("c.id DESC").
		Limit(f.Limit).
		Offset(f.Offset).
		Scan(&rows).
		Error
	if err != nil {
		return nil, 0, err
	}

	return toContributionWithMemberModels(rows), total, nil
}

func (r *ContributionRepository) filtered(ctx context.Context, f model.ContributionFilter) *gorm.DB {
	q := r.Read(ctx).
		Table("contributions AS c").
		Joins("JOIN members AS m ON m.id = c.member_id")

	if f.MemberID != nil && *f.MemberID != "" {
		q = q.Where("c.member_id = ?", *f.MemberID)
	}
	if f.Type != nil && *f.Type != "" {
		q = q.Where("c.type = ?", string(*f.Type))
	}
	if f.From != nil {
		q = q.Where("c.created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("c.created_at < ?", *f.To)
	}
	return q
}

// SumPaidByMember recomputes a member's total from the ledger.
func (r *ContributionRepository) SumPaidByMember(ctx context.Context, memberID string) (int64, error) {
	var sum int64
	err := r.Read(ctx).
		Model(&ContributionEntity{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("member_id = ? AND status = ?", memberID, string(model.ContributionPaid)).
		Scan(&sum).
		Error
	return sum, err
}

// SumPaid is the ledger-wide total of paid contributions.
func (r *ContributionRepository) SumPaid(ctx context.Context) (int64, error) {
	var sum int64
	err := r.Read(ctx).
		Model(&ContributionEntity{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("status = ?", string(model.ContributionPaid)).
		Scan(&sum).
		Error
	return sum, err
}
