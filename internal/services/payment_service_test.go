package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/majmadigital/finance-ledger/internal/idempotency"
	"github.com/majmadigital/finance-ledger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func payment(memberID, staffID string, amount int64) model.PaymentRequest {
	return model.PaymentRequest{
		MemberID:    memberID,
		Type:        model.ContributionAdiyas,
		Amount:      amount,
		EventLabel:  "Magal",
		ProcessedBy: staffID,
	}
}

func TestPaymentService_ProcessPayment(t *testing.T) {
	l := setupLedger(t)
	svc := l.paymentService(nil)
	ctx := context.Background()

	staff := l.member(t, "STAFF-1", model.RoleAdmin)
	memberA := l.member(t, "MD-A", model.RoleMember)

	t.Run("records the payment and both aggregates", func(t *testing.T) {
		res, err := svc.ProcessPayment(ctx, payment(memberA.ID, staff.ID, 5000))
		require.NoError(t, err)

		assert.False(t, res.Replayed)
		assert.Equal(t, int64(5000), res.Contribution.Amount)
		assert.Equal(t, model.ContributionPaid, res.Contribution.Status)
		assert.Equal(t, "Magal", res.Contribution.EventLabel)
		assert.Equal(t, staff.ID, res.Contribution.ProcessedBy)
		assert.NotEmpty(t, res.Contribution.TransactionID)
		assert.Equal(t, int64(5000), res.NewGlobalBalance)

		c, err := l.commissions.GetByName(ctx, model.DefaultCommission)
		require.NoError(t, err)
		assert.Equal(t, int64(5000), c.Balance)
		assert.Equal(t, int64(5000), c.TotalRaised)

		m, err := l.members.Get(ctx, memberA.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(5000), m.FinancialStats.TotalContributed)
		assert.NotNil(t, m.FinancialStats.LastContributionDate)
	})

	t.Run("zero amount is accepted", func(t *testing.T) {
		res, err := svc.ProcessPayment(ctx, payment(memberA.ID, staff.ID, 0))
		require.NoError(t, err)
		assert.Equal(t, int64(5000), res.NewGlobalBalance)
	})

	t.Run("negative amount is rejected before any write", func(t *testing.T) {
		before := l.contributionCount(t)

		_, err := svc.ProcessPayment(ctx, payment(memberA.ID, staff.ID, -50))
		assert.ErrorIs(t, err, ErrPaymentFailed)
		assert.ErrorIs(t, err, model.ErrValidation)

		assert.Equal(t, before, l.contributionCount(t))
		assert.Equal(t, int64(5000), l.balance(t))
		assert.Equal(t, int64(5000), l.totalContributed(t, memberA.ID))
	})

	t.Run("unknown contribution type", func(t *testing.T) {
		req := payment(memberA.ID, staff.ID, 100)
		req.Type = "Tontine"
		_, err := svc.ProcessPayment(ctx, req)
		assert.ErrorIs(t, err, model.ErrValidation)
	})

	t.Run("unknown member leaves no trace", func(t *testing.T) {
		before := l.contributionCount(t)

		_, err := svc.ProcessPayment(ctx, payment("missing", staff.ID, 100))
		assert.ErrorIs(t, err, ErrPaymentFailed)
		assert.ErrorIs(t, err, model.ErrMemberNotFound)

		assert.Equal(t, before, l.contributionCount(t))
		assert.Equal(t, int64(5000), l.balance(t))
	})
}

type failingCommissions struct {
	CommissionStore
	err error
}

func (f failingCommissions) Credit(context.Context, string, int64, time.Time) (*model.Commission, error) {
	return nil, f.err
}

type failingMembers struct {
	MemberStore
	err error
}

func (f failingMembers) CreditContribution(context.Context, string, int64, time.Time) error {
	return f.err
}

func TestPaymentService_Atomicity(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection reset")

	t.Run("commission step fails", func(t *testing.T) {
		l := setupLedger(t)
		m := l.member(t, "MD-1", model.RoleMember)
		_, err := l.paymentService(nil).ProcessPayment(ctx, payment(m.ID, m.ID, 700))
		require.NoError(t, err)

		svc := NewPaymentService(l.db, l.members, failingCommissions{l.commissions, boom},
			l.contributions, l.campaigns, nil, DefaultPaymentConfig())

		_, err = svc.ProcessPayment(ctx, payment(m.ID, m.ID, 300))
		assert.ErrorIs(t, err, ErrPaymentFailed)
		assert.ErrorIs(t, err, boom)

		assert.Equal(t, int64(1), l.contributionCount(t))
		assert.Equal(t, int64(700), l.balance(t))
		assert.Equal(t, int64(700), l.totalContributed(t, m.ID))
	})

	t.Run("member step fails", func(t *testing.T) {
		l := setupLedger(t)
		m := l.member(t, "MD-2", model.RoleMember)
		_, err := l.paymentService(nil).ProcessPayment(ctx, payment(m.ID, m.ID, 700))
		require.NoError(t, err)

		svc := NewPaymentService(l.db, failingMembers{l.members, boom}, l.commissions,
			l.contributions, l.campaigns, nil, DefaultPaymentConfig())

		_, err = svc.ProcessPayment(ctx, payment(m.ID, m.ID, 300))
		assert.ErrorIs(t, err, boom)

		assert.Equal(t, int64(1), l.contributionCount(t))
		assert.Equal(t, int64(700), l.balance(t))
		assert.Equal(t, int64(700), l.totalContributed(t, m.ID))
	})

	t.Run("campaign step fails", func(t *testing.T) {
		l := setupLedger(t)
		m := l.member(t, "MD-3", model.RoleMember)

		req := payment(m.ID, m.ID, 300)
		req.CampaignID = "no-such-campaign"
		_, err := l.paymentService(nil).ProcessPayment(ctx, req)
		assert.ErrorIs(t, err, model.ErrCampaignNotFound)

		assert.Zero(t, l.contributionCount(t))
		assert.Zero(t, l.balance(t))
		assert.Zero(t, l.totalContributed(t, m.ID))
	})
}

func TestPaymentService_Concurrency(t *testing.T) {
	ctx := context.Background()

	t.Run("two concurrent payments are both applied", func(t *testing.T) {
		l := setupLedger(t)
		svc := l.paymentService(nil)
		m := l.member(t, "MD-10", model.RoleMember)

		var wg sync.WaitGroup
		for _, amount := range []int64{1000, 2000} {
			wg.Add(1)
			go func(a int64) {
				defer wg.Done()
				_, err := svc.ProcessPayment(ctx, payment(m.ID, m.ID, a))
				assert.NoError(t, err)
			}(amount)
		}
		wg.Wait()

		assert.Equal(t, int64(3000), l.balance(t))
		assert.Equal(t, int64(3000), l.totalContributed(t, m.ID))
	})

	t.Run("balance is conserved across many members", func(t *testing.T) {
		l := setupLedger(t)
		svc := l.paymentService(nil)

		members := []*model.Member{
			l.member(t, "MD-20", model.RoleMember),
			l.member(t, "MD-21", model.RoleMember),
			l.member(t, "MD-22", model.RoleMember),
		}

		var (
			wg  sync.WaitGroup
			sum int64
			mu  sync.Mutex
		)
		for i := 0; i < 30; i++ {
			amount := int64(100 * (i + 1))
			m := members[i%len(members)]
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.ProcessPayment(ctx, payment(m.ID, m.ID, amount))
				if assert.NoError(t, err) {
					mu.Lock()
					sum += amount
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, sum, l.balance(t))
		assert.Equal(t, int64(30), l.contributionCount(t))

		var perMember int64
		for _, m := range members {
			perMember += l.totalContributed(t, m.ID)
		}
		assert.Equal(t, sum, perMember)
	})
}

func TestPaymentService_TransactionIDs(t *testing.T) {
	ctx := context.Background()

	t.Run("collision is retried with a fresh id", func(t *testing.T) {
		l := setupLedger(t)
		svc := l.paymentService(nil)
		m := l.member(t, "MD-30", model.RoleMember)

		ids := []string{"fixed", "fixed", "fresh"}
		svc.newTxnID = func() string {
			id := ids[0]
			ids = ids[1:]
			return id
		}

		first, err := svc.ProcessPayment(ctx, payment(m.ID, m.ID, 100))
		require.NoError(t, err)
		assert.Equal(t, "fixed", first.Contribution.TransactionID)

		second, err := svc.ProcessPayment(ctx, payment(m.ID, m.ID, 200))
		require.NoError(t, err)
		assert.Equal(t, "fresh", second.Contribution.TransactionID)

		assert.Equal(t, int64(300), l.balance(t))
	})

	t.Run("retries are bounded", func(t *testing.T) {
		l := setupLedger(t)
		svc := l.paymentService(nil)
		m := l.member(t, "MD-31", model.RoleMember)
		svc.newTxnID = func() string { return "always-the-same" }

		_, err := svc.ProcessPayment(ctx, payment(m.ID, m.ID, 100))
		require.NoError(t, err)

		_, err = svc.ProcessPayment(ctx, payment(m.ID, m.ID, 100))
		assert.ErrorIs(t, err, ErrTransactionIDExhausted)
		assert.Equal(t, int64(100), l.balance(t))
	})
}

func TestPaymentService_IdempotencyKey(t *testing.T) {
	ctx := context.Background()

	t.Run("same key twice records one payment", func(t *testing.T) {
		l := setupLedger(t)
		svc := l.paymentService(nil)
		m := l.member(t, "MD-40", model.RoleMember)

		req := payment(m.ID, m.ID, 2500)
		req.IdempotencyKey = "client-key-1"

		first, err := svc.ProcessPayment(ctx, req)
		require.NoError(t, err)
		assert.False(t, first.Replayed)
		assert.Equal(t, "client-key-1", first.Contribution.TransactionID)

		second, err := svc.ProcessPayment(ctx, req)
		require.NoError(t, err)
		assert.True(t, second.Replayed)
		assert.Equal(t, first.Contribution.ID, second.Contribution.ID)
		assert.Equal(t, int64(2500), second.NewGlobalBalance)

		assert.Equal(t, int64(1), l.contributionCount(t))
		assert.Equal(t, int64(2500), l.balance(t))
		assert.Equal(t, int64(2500), l.totalContributed(t, m.ID))
	})

	t.Run("concurrent duplicates record one payment", func(t *testing.T) {
		l := setupLedger(t)
		svc := l.paymentService(nil)
		m := l.member(t, "MD-41", model.RoleMember)

		req := payment(m.ID, m.ID, 400)
		req.IdempotencyKey = "client-key-2"

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.ProcessPayment(ctx, req)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(1), l.contributionCount(t))
		assert.Equal(t, int64(400), l.balance(t))
	})

	t.Run("key reused for a different payment", func(t *testing.T) {
		l := setupLedger(t)
		svc := l.paymentService(nil)
		m := l.member(t, "MD-42", model.RoleMember)

		req := payment(m.ID, m.ID, 400)
		req.IdempotencyKey = "client-key-3"
		_, err := svc.ProcessPayment(ctx, req)
		require.NoError(t, err)

		req.Amount = 900
		_, err = svc.ProcessPayment(ctx, req)
		assert.ErrorIs(t, err, ErrIdempotencyKeyReused)
		assert.Equal(t, int64(400), l.balance(t))
	})

	t.Run("key reused for a different campaign or event", func(t *testing.T) {
		l := setupLedger(t)
		svc := l.paymentService(nil)
		m := l.member(t, "MD-43", model.RoleMember)

		req := payment(m.ID, m.ID, 400)
		req.IdempotencyKey = "client-key-4"
		_, err := svc.ProcessPayment(ctx, req)
		require.NoError(t, err)

		other := req
		other.CampaignID = "campaign-2"
		_, err = svc.ProcessPayment(ctx, other)
		assert.ErrorIs(t, err, ErrIdempotencyKeyReused)

		other = req
		other.EventLabel = "Gamou"
		_, err = svc.ProcessPayment(ctx, other)
		assert.ErrorIs(t, err, ErrIdempotencyKeyReused)

		padded := req
		padded.EventLabel = "  Magal "
		second, err := svc.ProcessPayment(ctx, padded)
		require.NoError(t, err)
		assert.True(t, second.Replayed)

		assert.Equal(t, int64(1), l.contributionCount(t))
		assert.Equal(t, int64(400), l.balance(t))
	})

	t.Run("replay reads the primary when the replica lags", func(t *testing.T) {
		l := setupSplitLedger(t)
		svc := l.paymentService(nil)
		m := l.member(t, "MD-44", model.RoleMember)

		req := payment(m.ID, m.ID, 1200)
		req.IdempotencyKey = "client-key-5"

		first, err := svc.ProcessPayment(ctx, req)
		require.NoError(t, err)

		second, err := svc.ProcessPayment(ctx, req)
		require.NoError(t, err)
		assert.True(t, second.Replayed)
		assert.Equal(t, first.Contribution.ID, second.Contribution.ID)
		assert.Equal(t, int64(1200), second.NewGlobalBalance)
	})
}

type MockGuard struct {
	mock.Mock
}

func (m *MockGuard) Acquire(ctx context.Context, key string) (*idempotency.Lock, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*idempotency.Lock), args.Error(1)
}

func (m *MockGuard) Complete(ctx context.Context, lock *idempotency.Lock, contributionID string) error {
	return m.Called(ctx, lock, contributionID).Error(0)
}

func (m *MockGuard) Release(ctx context.Context, lock *idempotency.Lock) error {
	return m.Called(ctx, lock).Error(0)
}

func TestPaymentService_Guard(t *testing.T) {
	ctx := context.Background()

	t.Run("lock completed after commit", func(t *testing.T) {
		l := setupLedger(t)
		guard := new(MockGuard)
		svc := l.paymentService(guard)
		m := l.member(t, "MD-50", model.RoleMember)

		lock := &idempotency.Lock{Key: "k-1"}
		guard.On("Acquire", ctx, "k-1").Return(lock, nil)
		guard.On("Complete", ctx, lock, mock.AnythingOfType("string")).Return(nil)

		req := payment(m.ID, m.ID, 100)
		req.IdempotencyKey = "k-1"
		_, err := svc.ProcessPayment(ctx, req)
		require.NoError(t, err)

		guard.AssertExpectations(t)
	})

	t.Run("lock released after failure", func(t *testing.T) {
		l := setupLedger(t)
		guard := new(MockGuard)
		svc := l.paymentService(guard)

		lock := &idempotency.Lock{Key: "k-2"}
		guard.On("Acquire", ctx, "k-2").Return(lock, nil)
		guard.On("Release", ctx, lock).Return(nil)

		req := payment("missing", "staff", 100)
		req.IdempotencyKey = "k-2"
		_, err := svc.ProcessPayment(ctx, req)
		assert.ErrorIs(t, err, model.ErrMemberNotFound)

		guard.AssertExpectations(t)
		guard.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("in flight key", func(t *testing.T) {
		l := setupLedger(t)
		guard := new(MockGuard)
		svc := l.paymentService(guard)
		m := l.member(t, "MD-51", model.RoleMember)

		guard.On("Acquire", ctx, "k-3").Return(nil, idempotency.ErrInFlight)

		req := payment(m.ID, m.ID, 100)
		req.IdempotencyKey = "k-3"
		_, err := svc.ProcessPayment(ctx, req)
		assert.ErrorIs(t, err, ErrPaymentInProgress)
		assert.Zero(t, l.contributionCount(t))
	})

	t.Run("guard outage falls back to the unique index", func(t *testing.T) {
		l := setupLedger(t)
		guard := new(MockGuard)
		svc := l.paymentService(guard)
		m := l.member(t, "MD-52", model.RoleMember)

		guard.On("Acquire", ctx, "k-4").
			Return(nil, fmt.Errorf("%w: dial tcp: connection refused", idempotency.ErrUnavailable))

		req := payment(m.ID, m.ID, 100)
		req.IdempotencyKey = "k-4"
		for i := 0; i < 2; i++ {
			_, err := svc.ProcessPayment(ctx, req)
			require.NoError(t, err)
		}
		assert.Equal(t, int64(1), l.contributionCount(t))
	})

	t.Run("processed key replays from the ledger", func(t *testing.T) {
		l := setupLedger(t)
		m := l.member(t, "MD-53", model.RoleMember)

		req := payment(m.ID, m.ID, 100)
		req.IdempotencyKey = "k-5"
		_, err := l.paymentService(nil).ProcessPayment(ctx, req)
		require.NoError(t, err)

		guard := new(MockGuard)
		guard.On("Acquire", ctx, "k-5").Return(nil, idempotency.ErrAlreadyProcessed)

		res, err := l.paymentService(guard).ProcessPayment(ctx, req)
		require.NoError(t, err)
		assert.True(t, res.Replayed)
		assert.Equal(t, int64(100), l.balance(t))
	})
}

type MockTransactor struct {
	mock.Mock
}

func (m *MockTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}

func TestPaymentService_TransactionTimeout(t *testing.T) {
	tx := new(MockTransactor)
	svc := NewPaymentService(tx, nil, nil, nil, nil, nil, PaymentConfig{TxTimeout: time.Millisecond})

	tx.On("WithinTransaction", mock.Anything, mock.AnythingOfType("func(context.Context) error")).
		Return(context.DeadlineExceeded)

	res, err := svc.ProcessPayment(context.Background(), payment("m-1", "staff", 100))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrPaymentFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	tx.AssertExpectations(t)
}
