package repository

import (
	"time"

	"github.com/majmadigital/finance-ledger/internal/model"
	"github.com/majmadigital/finance-ledger/pkg/pg"
)

type ContributionEntity struct {
	pg.Model
	MemberID      string  `gorm:"column:member_id;type:varchar(36);not null;index"`
	Type          string  `gorm:"column:type;not null"`
	Amount        int64   `gorm:"column:amount;not null;check:amount >= 0"`
	Status        string  `gorm:"column:status;not null;index"`
	TransactionID string  `gorm:"column:transaction_id;not null;uniqueIndex"`
	EventLabel    string  `gorm:"column:event_label"`
	ProcessedBy   string  `gorm:"column:processed_by;type:varchar(36);not null"`
	CampaignID    *string `gorm:"column:campaign_id;type:varchar(36);index"`
}

func (ContributionEntity) TableName() string {
	return "contributions"
}

// ContributionWithMemberEntity is the row shape of the contributions/members join.
type ContributionWithMemberEntity struct {
	ID              string    `gorm:"column:id"`
	MemberID        string    `gorm:"column:member_id"`
	Type            string    `gorm:"column:type"`
	Amount          int64     `gorm:"column:amount"`
	Status          string    `gorm:"column:status"`
	TransactionID   string    `gorm:"column:transaction_id"`
	EventLabel      string    `gorm:"column:event_label"`
	ProcessedBy     string    `gorm:"column:processed_by"`
	CampaignID      *string   `gorm:"column:campaign_id"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	MemberFirstName string    `gorm:"column:member_first_name"`
	MemberLastName  string    `gorm:"column:member_last_name"`
	MemberMatricule string    `gorm:"column:member_matricule"`
}

func toContributionEntity(m *model.Contribution) *ContributionEntity {
	if m == nil {
		return nil
	}
	return &ContributionEntity{
		Model:         pg.Model{ID: m.ID, CreatedAt: m.CreatedAt},
		MemberID:      m.MemberID,
		Type:          string(m.Type),
		Amount:        m.Amount,
		Status:        string(m.Status),
		TransactionID: m.TransactionID,
		EventLabel:    m.EventLabel,
		ProcessedBy:   m.ProcessedBy,
		CampaignID:    m.CampaignID,
	}
}

func toContributionModel(e *ContributionEntity) *model.Contribution {
	if e == nil {
		return nil
	}
	return &model.Contribution{
		ID:            e.ID,
		MemberID:      e.MemberID,
		Type:          model.ContributionType(e.Type),
		Amount:        e.Amount,
		Status:        model.ContributionStatus(e.Status),
		TransactionID: e.TransactionID,
		EventLabel:    e.EventLabel,
		ProcessedBy:   e.ProcessedBy,
		CampaignID:    e.CampaignID,
		CreatedAt:     e.CreatedAt,
	}
}

func toContributionWithMemberModels(rows []*ContributionWithMemberEntity) []*model.ContributionWithMember {
	out := make([]*model.ContributionWithMember, len(rows))
	for i, r := range rows {
		out[i] = &model.ContributionWithMember{
			Contribution: model.Contribution{
				ID:            r.ID,
				MemberID:      r.MemberID,
				Type:          model.ContributionType(r.Type),
				Amount:        r.Amount,
				Status:        model.ContributionStatus(r.Status),
				TransactionID: r.TransactionID,
				EventLabel:    r.EventLabel,
				ProcessedBy:   r.ProcessedBy,
				CampaignID:    r.CampaignID,
				CreatedAt:     r.CreatedAt,
			},
			Member: model.MemberSummary{
				ID:        r.MemberID,
				FirstName: r.MemberFirstName,
				LastName:  r.MemberLastName,
				Matricule: r.MemberMatricule,
			},
		}
	}
	return out
}
