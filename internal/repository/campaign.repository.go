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

type CampaignRepository struct {
	*pg.DB
}

func NewCampaignRepository(db *pg.DB) *CampaignRepository {
	return &CampaignRepository{
		db,
	}
}

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error) {
	entity := &CampaignEntity{
		Model:        pg.Model{ID: c.ID, CreatedAt: c.CreatedAt},
		Name:         c.Name,
		Description:  c.Description,
		TargetAmount: c.TargetAmount,
		CreatedBy:    c.CreatedBy,
	}
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, model.ErrDuplicateCampaign
		}
		return nil, err
	}
	return toCampaignModel(entity), nil
}

// Get loads the campaign together with its participants.
func (r *CampaignRepository) Get(ctx context.Context, id string) (*model.Campaign, error) {
	var entity CampaignEntity
	err := r.Read(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrCampaignNotFound
		}
		return nil, err
	}

	var participants []*CampaignParticipantEntity
	err = r.Read(ctx).
		Where("campaign_id = ?", id).
		Order("id ASC").
		Find(&participants).
		Error
	if err != nil {
		return nil, err
	}

	c := toCampaignModel(&entity)
	c.Participants = toParticipantModels(participants)
	return c, nil
}

func (r *CampaignRepository) exists(ctx context.Context, id string) (bool, error) {
	var n int64
	err := r.Read(ctx).Model(&CampaignEntity{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

// Pledge creates the participant entry or replaces its pledged amount. The
// status is recomputed in the same statement from the stored paid amount.
func (r *CampaignRepository) Pledge(ctx context.Context, campaignID, memberID string, amount int64, at time.Time) (*model.CampaignParticipant, error) {
	ok, err := r.exists(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.ErrCampaignNotFound
	}

	entity := &CampaignParticipantEntity{
		Model:         pg.Model{CreatedAt: at},
		CampaignID:    campaignID,
		MemberID:      memberID,
		PledgedAmount: amount,
		Status:        string(model.ParticipantPledged),
		UpdatedAt:     at,
	}
	err = r.Write(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "campaign_id"}, {Name: "member_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"pledged_amount": gorm.Expr("excluded.pledged_amount"),
				"status": gorm.Expr(
					"CASE WHEN campaign_participants.paid_amount = 0 THEN ? "+
						"WHEN campaign_participants.paid_amount < excluded.pledged_amount THEN ? "+
						"ELSE ? END",
					string(model.ParticipantPledged), string(model.ParticipantPartial), string(model.ParticipantCompleted)),
				"updated_at": at,
			}),
		}).
		Create(entity).
		Error
	if err != nil {
		return nil, err
	}

	return r.participant(ctx, campaignID, memberID)
}

// ApplyPayment increments paid_amount and recomputes the status in one
// UPDATE. SET expressions see the pre-update row, hence paid_amount + ? in
// the CASE.
func (r *CampaignRepository) ApplyPayment(ctx context.Context, campaignID, memberID string, amount int64, at time.Time) (*model.CampaignParticipant, error) {
	result := r.Write(ctx).
		Model(&CampaignParticipantEntity{}).
		Where("campaign_id = ? AND member_id = ?", campaignID, memberID).
		Updates(map[string]interface{}{
			"paid_amount": gorm.Expr("paid_amount + ?", amount),
			"status": gorm.Expr(
				"CASE WHEN paid_amount + ? = 0 THEN ? "+
					"WHEN paid_amount + ? < pledged_amount THEN ? "+
					"ELSE ? END",
				amount, string(model.ParticipantPledged),
				amount, string(model.ParticipantPartial),
				string(model.ParticipantCompleted)),
			"updated_at": at,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		ok, err := r.exists(ctx, campaignID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, model.ErrCampaignNotFound
		}
		return nil, model.ErrParticipantNotFound
	}

	return r.participant(ctx, campaignID, memberID)
}

func (r *CampaignRepository) participant(ctx context.Context, campaignID, memberID string) (*model.CampaignParticipant, error) {
	var entity CampaignParticipantEntity
	err := r.Read(ctx).
		Where("campaign_id = ? AND member_id = ?", campaignID, memberID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrParticipantNotFound
		}
		return nil, err
	}
	return toParticipantModel(&entity), nil
}
