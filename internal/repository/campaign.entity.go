package repository

import (
	"time"

	"github.com/majmadigital/finance-ledger/internal/model"
	"github.com/majmadigital/finance-ledger/pkg/pg"
)

type CampaignEntity struct {
	pg.Model
	Name         string `gorm:"column:name;not null;uniqueIndex"`
	Description  string `gorm:"column:description"`
	TargetAmount int64  `gorm:"column:target_amount;not null;default:0"`
	CreatedBy    string `gorm:"column:created_by;type:varchar(36);not null"`
}

func (CampaignEntity) TableName() string {
	return "campaigns"
}

type CampaignParticipantEntity struct {
	pg.Model
	CampaignID    string    `gorm:"column:campaign_id;type:varchar(36);not null;uniqueIndex:idx_campaign_member"`
	MemberID      string    `gorm:"column:member_id;type:varchar(36);not null;uniqueIndex:idx_campaign_member"`
	PledgedAmount int64     `gorm:"column:pledged_amount;not null;default:0"`
	PaidAmount    int64     `gorm:"column:paid_amount;not null;default:0"`
	Status        string    `gorm:"column:status;not null"`
	UpdatedAt     time.Time `gorm:"column:updated_at;not null"`
}

func (CampaignParticipantEntity) TableName() string {
	return "campaign_participants"
}

func toCampaignModel(e *CampaignEntity) *model.Campaign {
	if e == nil {
		return nil
	}
	return &model.Campaign{
		ID:           e.ID,
		Name:         e.Name,
		Description:  e.Description,
		TargetAmount: e.TargetAmount,
		CreatedBy:    e.CreatedBy,
		CreatedAt:    e.CreatedAt,
	}
}

func toParticipantModel(e *CampaignParticipantEntity) *model.CampaignParticipant {
	if e == nil {
		return nil
	}
	return &model.CampaignParticipant{
		ID:            e.ID,
		CampaignID:    e.CampaignID,
		MemberID:      e.MemberID,
		PledgedAmount: e.PledgedAmount,
		PaidAmount:    e.PaidAmount,
		Status:        model.ParticipantStatus(e.Status),
		UpdatedAt:     e.UpdatedAt,
	}
}

func toParticipantModels(entities []*CampaignParticipantEntity) []*model.CampaignParticipant {
	if entities == nil {
		return nil
	}
	models := make([]*model.CampaignParticipant, len(entities))
	for i, e := range entities {
		models[i] = toParticipantModel(e)
	}
	return models
}
