package services

import (
	"context"

	"github.com/majmadigital/finance-ledger/internal/model"
)

type ContributionService struct {
	contributions ContributionStore
}

func NewContributionService(contributions ContributionStore) *ContributionService {
	return &ContributionService{
		contributions: contributions,
	}
}

// List returns contributions with the member's current display fields,
// newest first.
func (s *ContributionService) List(ctx context.Context, f model.ContributionFilter) ([]*model.ContributionWithMember, int64, error) {
	return s.contributions.ListWithMembers(ctx, f.Normalize())
}
