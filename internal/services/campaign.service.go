package services

import (
	"context"
	"strings"
	"time"

	"github.com/majmadigital/finance-ledger/internal/model"
	"github.com/majmadigital/finance-ledger/pkg/logger"
)

// CampaignService manages campaigns and pledges. Payments against a pledge go
// through PaymentService so the participant update commits with the ledger
// entry.
type CampaignService struct {
	campaigns CampaignStore
	members   MemberStore
	now       func() time.Time
}

func NewCampaignService(campaigns CampaignStore, members MemberStore) *CampaignService {
	return &CampaignService{
		campaigns: campaigns,
		members:   members,
		now:       time.Now,
	}
}

func (s *CampaignService) Create(ctx context.Context, req model.CampaignCreateRequest) (*model.Campaign, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	c, err := s.campaigns.Create(ctx, &model.Campaign{
		Name:         strings.TrimSpace(req.Name),
		Description:  strings.TrimSpace(req.Description),
		TargetAmount: req.TargetAmount,
		CreatedBy:    req.CreatedBy,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Campaign created", "campaign_id", c.ID, "name", c.Name, "created_by", c.CreatedBy)
	return c, nil
}

func (s *CampaignService) Get(ctx context.Context, id string) (*model.Campaign, error) {
	return s.campaigns.Get(ctx, id)
}

// Pledge creates the participant entry or replaces its pledged amount.
func (s *CampaignService) Pledge(ctx context.Context, req model.PledgeRequest) (*model.CampaignParticipant, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.members.Get(ctx, req.MemberID); err != nil {
		return nil, err
	}

	p, err := s.campaigns.Pledge(ctx, req.CampaignID, req.MemberID, req.Amount, s.now().UTC())
	if err != nil {
		return nil, err
	}

	logger.Info("Pledge recorded",
		"campaign_id", req.CampaignID,
		"member_id", req.MemberID,
		"pledged", p.PledgedAmount,
		"paid", p.PaidAmount,
		"status", p.Status)
	return p, nil
}
