package services

import (
	"context"
	"time"

	"github.com/majmadigital/finance-ledger/internal/idempotency"
	"github.com/majmadigital/finance-ledger/internal/model"
)

// Both pg.DB and mongo.DB satisfy Transactor. Store calls made with the ctx
// handed to fn join the transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type MemberStore interface {
	Get(ctx context.Context, id string) (*model.Member, error)
	CreditContribution(ctx context.Context, memberID string, amount int64, at time.Time) error
}

type CommissionStore interface {
	Credit(ctx context.Context, name string, amount int64, at time.Time) (*model.Commission, error)
	GetByName(ctx context.Context, name string) (*model.Commission, error)
}

type ContributionStore interface {
	Create(ctx context.Context, c *model.Contribution) (*model.Contribution, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*model.Contribution, error)
	ListWithMembers(ctx context.Context, f model.ContributionFilter) ([]*model.ContributionWithMember, int64, error) // results, totalCount
}

type CampaignStore interface {
	Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error)
	Get(ctx context.Context, id string) (*model.Campaign, error)
	Pledge(ctx context.Context, campaignID, memberID string, amount int64, at time.Time) (*model.CampaignParticipant, error)
	ApplyPayment(ctx context.Context, campaignID, memberID string, amount int64, at time.Time) (*model.CampaignParticipant, error)
}

type IdempotencyGuard interface {
	Acquire(ctx context.Context, key string) (*idempotency.Lock, error)
	Complete(ctx context.Context, lock *idempotency.Lock, contributionID string) error
	Release(ctx context.Context, lock *idempotency.Lock) error
}
