// Package store opens the ledger on the configured backend. The relational
// repositories and the document store expose the same methods, so callers
// never see which one is behind a Ledger.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/majmadigital/finance-ledger/internal/config"
	"github.com/majmadigital/finance-ledger/internal/docstore"
	"github.com/majmadigital/finance-ledger/internal/model"
	"github.com/majmadigital/finance-ledger/internal/repository"
	"github.com/majmadigital/finance-ledger/pkg/logger"
	"github.com/majmadigital/finance-ledger/pkg/mongo"
	"github.com/majmadigital/finance-ledger/pkg/pg"
)

type Members interface {
	Create(ctx context.Context, m *model.Member) (*model.Member, error)
	Get(ctx context.Context, id string) (*model.Member, error)
	GetByEmail(ctx context.Context, email string) (*model.Member, error)
	CreditContribution(ctx context.Context, memberID string, amount int64, at time.Time) error
	ListIDs(ctx context.Context, afterID string, limit int) ([]string, error)
}

type Commissions interface {
	Credit(ctx context.Context, name string, amount int64, at time.Time) (*model.Commission, error)
	GetByName(ctx context.Context, name string) (*model.Commission, error)
	List(ctx context.Context) ([]*model.Commission, error)
}

type Contributions interface {
	Create(ctx context.Context, c *model.Contribution) (*model.Contribution, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*model.Contribution, error)
	ListWithMembers(ctx context.Context, f model.ContributionFilter) ([]*model.ContributionWithMember, int64, error)
	SumPaidByMember(ctx context.Context, memberID string) (int64, error)
	SumPaid(ctx context.Context) (int64, error)
}

type Campaigns interface {
	Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error)
	Get(ctx context.Context, id string) (*model.Campaign, error)
	Pledge(ctx context.Context, campaignID, memberID string, amount int64, at time.Time) (*model.CampaignParticipant, error)
	ApplyPayment(ctx context.Context, campaignID, memberID string, amount int64, at time.Time) (*model.CampaignParticipant, error)
}

type backend interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	Ping(ctx context.Context) error
}

type Ledger struct {
	Driver        string
	Members       Members
	Commissions   Commissions
	Contributions Contributions
	Campaigns     Campaigns

	db    backend
	close func(ctx context.Context) error
}

func (l *Ledger) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return l.db.WithinTransaction(ctx, fn)
}

func (l *Ledger) Ping(ctx context.Context) error {
	return l.db.Ping(ctx)
}

func (l *Ledger) Close(ctx context.Context) error {
	if l.close == nil {
		return nil
	}
	return l.close(ctx)
}

// Open connects to the backend named by c.StoreDriver. For mongo it also
// ensures the indexes the ledger relies on for uniqueness.
func Open(ctx context.Context, c *config.Config) (*Ledger, error) {
	switch c.StoreDriver {
	case config.StorePostgres:
		db, err := pg.CreateReadWrite(c.PostgresRead(), c.PostgresWrite(), c.IsDev())
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		logger.Info("ledger store ready", "driver", c.StoreDriver)
		return NewRelational(db), nil

	case config.StoreMongo:
		db, err := mongo.Connect(ctx, mongo.Config{URI: c.MongoURI, Database: c.MongoDatabase})
		if err != nil {
			return nil, err
		}
		if err := docstore.EnsureIndexes(ctx, db); err != nil {
			_ = db.Disconnect(ctx)
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
		logger.Info("ledger store ready", "driver", c.StoreDriver, "database", c.MongoDatabase)
		return NewDocument(db), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", c.StoreDriver)
}

func NewRelational(db *pg.DB) *Ledger {
	return &Ledger{
		Driver:        config.StorePostgres,
		Members:       repository.NewMemberRepository(db),
		Commissions:   repository.NewCommissionRepository(db),
		Contributions: repository.NewContributionRepository(db),
		Campaigns:     repository.NewCampaignRepository(db),
		db:            db,
	}
}

func NewDocument(db *mongo.DB) *Ledger {
	return &Ledger{
		Driver:        config.StoreMongo,
		Members:       docstore.NewMemberStore(db),
		Commissions:   docstore.NewCommissionStore(db),
		Contributions: docstore.NewContributionStore(db),
		Campaigns:     docstore.NewCampaignStore(db),
		db:            db,
		close:         db.Disconnect,
	}
}
