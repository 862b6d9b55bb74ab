package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/majmadigital/finance-ledger/internal/model"
	"github.com/majmadigital/finance-ledger/internal/repository"
	"github.com/majmadigital/finance-ledger/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type ledger struct {
	db            *pg.DB
	members       *repository.MemberRepository
	commissions   *repository.CommissionRepository
	contributions *repository.ContributionRepository
	campaigns     *repository.CampaignRepository
}

func openDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), pg.GormConfig())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(repository.Entities()...))
	return db
}

func setupLedger(t *testing.T) *ledger {
	db := openDB(t)
	return newLedger(pg.New(db, db))
}

// setupSplitLedger reads from a replica that never catches up with the primary.
func setupSplitLedger(t *testing.T) *ledger {
	return newLedger(pg.New(openDB(t), openDB(t)))
}

func newLedger(pgDB *pg.DB) *ledger {
	return &ledger{
		db:            pgDB,
		members:       repository.NewMemberRepository(pgDB),
		commissions:   repository.NewCommissionRepository(pgDB),
		contributions: repository.NewContributionRepository(pgDB),
		campaigns:     repository.NewCampaignRepository(pgDB),
	}
}

func (l *ledger) paymentService(guard IdempotencyGuard) *PaymentService {
	return NewPaymentService(l.db, l.members, l.commissions, l.contributions, l.campaigns, guard, DefaultPaymentConfig())
}

func (l *ledger) member(t *testing.T, matricule string, role model.Role) *model.Member {
	t.Helper()
	m, err := l.members.Create(context.Background(), &model.Member{
		Matricule: matricule,
		FirstName: "Cheikh",
		LastName:  "Fall",
		Email:     matricule + "@majma.test",
		Role:      role,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return m
}

func (l *ledger) contributionCount(t *testing.T) int64 {
	t.Helper()
	_, total, err := l.contributions.ListWithMembers(context.Background(), model.ContributionFilter{})
	require.NoError(t, err)
	return total
}

func (l *ledger) balance(t *testing.T) int64 {
	t.Helper()
	c, err := l.commissions.GetByName(context.Background(), model.DefaultCommission)
	if err == model.ErrCommissionNotFound {
		return 0
	}
	require.NoError(t, err)
	return c.Balance
}

func (l *ledger) totalContributed(t *testing.T, memberID string) int64 {
	t.Helper()
	m, err := l.members.Get(context.Background(), memberID)
	require.NoError(t, err)
	return m.FinancialStats.TotalContributed
}

// steppingClock returns a clock that advances one second per call.
func steppingClock(start time.Time) func() time.Time {
	var n int64
	return func() time.Time {
		return start.Add(time.Duration(atomic.AddInt64(&n, 1)) * time.Second)
	}
}
