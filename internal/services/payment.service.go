package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/majmadigital/finance-ledger/internal/idempotency"
	"github.com/majmadigital/finance-ledger/internal/model"
	"github.com/majmadigital/finance-ledger/pkg/logger"
	"github.com/majmadigital/finance-ledger/pkg/prom"
)

var (
	ErrPaymentFailed          = errors.New("payment could not be processed")
	ErrPaymentInProgress      = errors.New("a payment with this idempotency key is in progress")
	ErrIdempotencyKeyReused   = errors.New("idempotency key was already used for a different payment")
	ErrTransactionIDExhausted = errors.New("could not allocate a unique transaction id")
)

type PaymentConfig struct {
	Commission string
	TxTimeout  time.Duration
	IDRetries  int
}

func DefaultPaymentConfig() PaymentConfig {
	return PaymentConfig{
		Commission: model.DefaultCommission,
		TxTimeout:  5 * time.Second,
		IDRetries:  3,
	}
}

// PaymentService is the only code path that mutates commission balances and
// member financial stats. Each payment is one store transaction: contribution
// insert, commission credit, member credit and, for campaign payments, the
// participant update.
type PaymentService struct {
	tx            Transactor
	members       MemberStore
	commissions   CommissionStore
	contributions ContributionStore
	campaigns     CampaignStore
	guard         IdempotencyGuard
	config        PaymentConfig

	now      func() time.Time
	newTxnID func() string
}

// NewPaymentService wires the coordinator. guard may be nil, in which case
// duplicate keys are caught by the store's unique transaction id alone.
func NewPaymentService(tx Transactor, members MemberStore, commissions CommissionStore, contributions ContributionStore, campaigns CampaignStore, guard IdempotencyGuard, config PaymentConfig) *PaymentService {
	if config.Commission == "" {
		config.Commission = model.DefaultCommission
	}
	if config.IDRetries < 1 {
		config.IDRetries = 1
	}
	return &PaymentService{
		tx:            tx,
		members:       members,
		commissions:   commissions,
		contributions: contributions,
		campaigns:     campaigns,
		guard:         guard,
		config:        config,
		now:           time.Now,
		newTxnID:      uuid.NewString,
	}
}

// ProcessPayment records one payment. Every error is wrapped in
// ErrPaymentFailed together with its cause, so callers can match both.
func (s *PaymentService) ProcessPayment(ctx context.Context, req model.PaymentRequest) (*model.PaymentResult, error) {
	start := time.Now()
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)

	result, err := s.processPayment(ctx, req)

	outcome := "success"
	switch {
	case err != nil:
		outcome = "failure"
		logger.Warn("Payment failed",
			"member_id", req.MemberID,
			"type", req.Type,
			"amount", req.Amount,
			"idempotency_key", req.IdempotencyKey,
			"error", err)
		err = fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	case result.Replayed:
		outcome = "replayed"
		logger.Info("Payment replayed",
			"transaction_id", result.Contribution.TransactionID,
			"contribution_id", result.Contribution.ID)
	default:
		logger.Info("Payment recorded",
			"transaction_id", result.Contribution.TransactionID,
			"contribution_id", result.Contribution.ID,
			"member_id", req.MemberID,
			"amount", req.Amount,
			"balance", result.NewGlobalBalance)
	}
	prom.ObservePayment(string(req.Type), outcome, req.Amount, time.Since(start).Seconds())

	return result, err
}

func (s *PaymentService) processPayment(ctx context.Context, req model.PaymentRequest) (*model.PaymentResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := req.IdempotencyKey
	if key == "" || s.guard == nil {
		return s.commit(ctx, req)
	}

	lock, err := s.guard.Acquire(ctx, key)
	switch {
	case err == nil:
	case errors.Is(err, idempotency.ErrAlreadyProcessed):
		result, err := s.replay(ctx, req)
		if !errors.Is(err, model.ErrContributionNotFound) {
			return result, err
		}
		// marker outlived the ledger row; the unique index still protects us
		return s.commit(ctx, req)
	case errors.Is(err, idempotency.ErrInFlight):
		return nil, ErrPaymentInProgress
	default:
		logger.Warn("Idempotency guard unavailable, relying on unique transaction id",
			"idempotency_key", key, "error", err)
		return s.commit(ctx, req)
	}

	result, err := s.commit(ctx, req)
	if err != nil {
		_ = s.guard.Release(ctx, lock)
		return nil, err
	}
	_ = s.guard.Complete(ctx, lock, result.Contribution.ID)
	return result, nil
}

// commit runs attempts until one commits. A duplicate transaction id means
// either a server id collision, retried with a fresh id, or a caller key that
// was already recorded, answered from the ledger.
func (s *PaymentService) commit(ctx context.Context, req model.PaymentRequest) (*model.PaymentResult, error) {
	for attempt := 1; attempt <= s.config.IDRetries; attempt++ {
		txnID := req.IdempotencyKey
		if txnID == "" {
			txnID = s.newTxnID()
		}

		result, err := s.attempt(ctx, req, txnID)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, model.ErrDuplicateTransactionID) {
			return nil, err
		}
		if req.IdempotencyKey != "" {
			return s.replay(ctx, req)
		}

		prom.IncTransactionIDRetry()
		logger.Warn("Transaction id collision, regenerating",
			"transaction_id", txnID,
			"attempt", attempt,
			"max_attempts", s.config.IDRetries)
	}
	return nil, ErrTransactionIDExhausted
}

func (s *PaymentService) attempt(ctx context.Context, req model.PaymentRequest, txnID string) (*model.PaymentResult, error) {
	if s.config.TxTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.TxTimeout)
		defer cancel()
	}

	now := s.now().UTC()
	var (
		contribution *model.Contribution
		commission   *model.Commission
	)

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.members.Get(ctx, req.MemberID); err != nil {
			return fmt.Errorf("load member: %w", err)
		}

		c := &model.Contribution{
			MemberID:      req.MemberID,
			Type:          req.Type,
			Amount:        req.Amount,
			Status:        model.ContributionPaid,
			TransactionID: txnID,
			EventLabel:    strings.TrimSpace(req.EventLabel),
			ProcessedBy:   req.ProcessedBy,
			CreatedAt:     now,
		}
		if req.CampaignID != "" {
			campaignID := req.CampaignID
			c.CampaignID = &campaignID
		}

		created, err := s.contributions.Create(ctx, c)
		if err != nil {
			return fmt.Errorf("create contribution: %w", err)
		}

		credited, err := s.commissions.Credit(ctx, s.config.Commission, req.Amount, now)
		if err != nil {
			return fmt.Errorf("credit commission: %w", err)
		}

		if err := s.members.CreditContribution(ctx, req.MemberID, req.Amount, now); err != nil {
			return fmt.Errorf("credit member: %w", err)
		}

		if req.CampaignID != "" {
			if _, err := s.campaigns.ApplyPayment(ctx, req.CampaignID, req.MemberID, req.Amount, now); err != nil {
				return fmt.Errorf("apply campaign payment: %w", err)
			}
		}

		contribution = created
		commission = credited
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &model.PaymentResult{
		Contribution:     contribution,
		NewGlobalBalance: commission.Balance,
	}, nil
}

// replay answers a repeated idempotency key from the recorded contribution.
// A key reused for a different payment is refused. Lookups go through a
// transaction so they see the primary the conflicting insert hit.
func (s *PaymentService) replay(ctx context.Context, req model.PaymentRequest) (*model.PaymentResult, error) {
	var result *model.PaymentResult
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.contributions.GetByTransactionID(ctx, req.IdempotencyKey)
		if err != nil {
			return err
		}
		if !samePayment(existing, req) {
			return ErrIdempotencyKeyReused
		}

		commission, err := s.commissions.GetByName(ctx, s.config.Commission)
		if err != nil {
			return err
		}

		result = &model.PaymentResult{
			Contribution:     existing,
			NewGlobalBalance: commission.Balance,
			Replayed:         true,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func samePayment(c *model.Contribution, req model.PaymentRequest) bool {
	campaignID := ""
	if c.CampaignID != nil {
		campaignID = *c.CampaignID
	}
	return c.MemberID == req.MemberID &&
		c.Type == req.Type &&
		c.Amount == req.Amount &&
		campaignID == req.CampaignID &&
		c.EventLabel == strings.TrimSpace(req.EventLabel)
}
