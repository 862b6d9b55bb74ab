package model

import (
	"errors"
	"strings"
	"time"
)

type ParticipantStatus string

const (
	ParticipantPledged   ParticipantStatus = "pledged"
	ParticipantPartial   ParticipantStatus = "partial"
	ParticipantCompleted ParticipantStatus = "completed"
)

// ParticipantStatusFor derives the pledge status from the amounts.
func ParticipantStatusFor(pledged, paid int64) ParticipantStatus {
	switch {
	case paid == 0:
		return ParticipantPledged
	case paid < pledged:
		return ParticipantPartial
	default:
		return ParticipantCompleted
	}
}

type Campaign struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Description  string                 `json:"description,omitempty"`
	TargetAmount int64                  `json:"targetAmount"`
	CreatedBy    string                 `json:"createdBy"`
	CreatedAt    time.Time              `json:"createdAt"`
	Participants []*CampaignParticipant `json:"participants,omitempty"`
}

type CampaignParticipant struct {
	ID            string            `json:"id"`
	CampaignID    string            `json:"campaignId"`
	MemberID      string            `json:"memberId"`
	PledgedAmount int64             `json:"pledgedAmount"`
	PaidAmount    int64             `json:"paidAmount"`
	Status        ParticipantStatus `json:"status"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

type CampaignCreateRequest struct {
	Name         string
	Description  string
	TargetAmount int64
	CreatedBy    string
}

func (p CampaignCreateRequest) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return validation("name is required")
	}
	if p.TargetAmount < 0 {
		return validation("targetAmount must be non-negative")
	}
	if p.CreatedBy == "" {
		return validation("createdBy is required")
	}
	return nil
}

type PledgeRequest struct {
	CampaignID string
	MemberID   string
	Amount     int64
}

func (p PledgeRequest) Validate() error {
	var errs []error
	if p.CampaignID == "" {
		errs = append(errs, validation("campaignId is required"))
	}
	if p.MemberID == "" {
		errs = append(errs, validation("memberId is required"))
	}
	if p.Amount <= 0 {
		errs = append(errs, validation("amount must be greater than 0"))
	}
	return errors.Join(errs...)
}
