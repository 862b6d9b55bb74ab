// Package docstore is the MongoDB implementation of the ledger store. It
// exposes the same operations as the relational repositories so the services
// can run against either backend.
package docstore

import (
	"time"

	"github.com/majmadigital/finance-ledger/internal/model"
)

const (
	membersCollection       = "members"
	commissionsCollection   = "commissions"
	contributionsCollection = "contributions"
	campaignsCollection     = "campaigns"
	participantsCollection  = "campaign_participants"
)

type memberDocument struct {
	ID                   string     `bson:"_id"`
	Matricule            string     `bson:"matricule"`
	FirstName            string     `bson:"first_name"`
	LastName             string     `bson:"last_name"`
	Email                string     `bson:"email"`
	Role                 string     `bson:"role"`
	PasswordHash         string     `bson:"password_hash,omitempty"`
	TotalContributed     int64      `bson:"total_contributed"`
	LastContributionDate *time.Time `bson:"last_contribution_date,omitempty"`
	CreatedAt            time.Time  `bson:"created_at"`
}

func (d *memberDocument) toModel() *model.Member {
	return &model.Member{
		ID:           d.ID,
		Matricule:    d.Matricule,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Email:        d.Email,
		Role:         model.Role(d.Role),
		PasswordHash: d.PasswordHash,
		FinancialStats: model.FinancialStats{
			TotalContributed:     d.TotalContributed,
			LastContributionDate: d.LastContributionDate,
		},
		CreatedAt: d.CreatedAt,
	}
}

type commissionDocument struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Balance      int64     `bson:"balance"`
	TotalRaised  int64     `bson:"total_raised"`
	LastActivity time.Time `bson:"last_activity"`
	CreatedAt    time.Time `bson:"created_at"`
}

func (d *commissionDocument) toModel() *model.Commission {
	return &model.Commission{
		ID:           d.ID,
		Name:         d.Name,
		Balance:      d.Balance,
		TotalRaised:  d.TotalRaised,
		LastActivity: d.LastActivity,
	}
}

type contributionDocument struct {
	ID            string    `bson:"_id"`
	MemberID      string    `bson:"member_id"`
	Type          string    `bson:"type"`
	Amount        int64     `bson:"amount"`
	Status        string    `bson:"status"`
	TransactionID string    `bson:"transaction_id"`
	EventLabel    string    `bson:"event_label,omitempty"`
	ProcessedBy   string    `bson:"processed_by"`
	CampaignID    *string   `bson:"campaign_id,omitempty"`
	CreatedAt     time.Time `bson:"created_at"`

	// populated by the $lookup stage of listings only
	Member *memberDocument `bson:"member,omitempty"`
}

func (d *contributionDocument) toModel() *model.Contribution {
	return &model.Contribution{
		ID:            d.ID,
		MemberID:      d.MemberID,
		Type:          model.ContributionType(d.Type),
		Amount:        d.Amount,
		Status:        model.ContributionStatus(d.Status),
		TransactionID: d.TransactionID,
		EventLabel:    d.EventLabel,
		ProcessedBy:   d.ProcessedBy,
		CampaignID:    d.CampaignID,
		CreatedAt:     d.CreatedAt,
	}
}

type campaignDocument struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Description  string    `bson:"description,omitempty"`
	TargetAmount int64     `bson:"target_amount"`
	CreatedBy    string    `bson:"created_by"`
	CreatedAt    time.Time `bson:"created_at"`
}

func (d *campaignDocument) toModel() *model.Campaign {
	return &model.Campaign{
		ID:           d.ID,
		Name:         d.Name,
		Description:  d.Description,
		TargetAmount: d.TargetAmount,
		CreatedBy:    d.CreatedBy,
		CreatedAt:    d.CreatedAt,
	}
}

type participantDocument struct {
	ID            string    `bson:"_id"`
	CampaignID    string    `bson:"campaign_id"`
	MemberID      string    `bson:"member_id"`
	PledgedAmount int64     `bson:"pledged_amount"`
	PaidAmount    int64     `bson:"paid_amount"`
	Status        string    `bson:"status"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

func (d *participantDocument) toModel() *model.CampaignParticipant {
	return &model.CampaignParticipant{
		ID:            d.ID,
		CampaignID:    d.CampaignID,
		MemberID:      d.MemberID,
		PledgedAmount: d.PledgedAmount,
		PaidAmount:    d.PaidAmount,
		Status:        model.ParticipantStatus(d.Status),
		UpdatedAt:     d.UpdatedAt,
	}
}
