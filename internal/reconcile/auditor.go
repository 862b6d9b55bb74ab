// Package reconcile checks the stored aggregates against the contribution
// ledger. It only reads; drift is reported through logs and metrics.
package reconcile

import (
	"context"
	"fmt"

	"github.com/majmadigital/finance-ledger/internal/model"
	"github.com/majmadigital/finance-ledger/pkg/logger"
	"github.com/majmadigital/finance-ledger/pkg/prom"
)

const (
	ScopeMembers     = "members"
	ScopeCommissions = "commissions"
)

type MemberReader interface {
	Get(ctx context.Context, id string) (*model.Member, error)
	ListIDs(ctx context.Context, afterID string, limit int) ([]string, error)
}

type CommissionReader interface {
	List(ctx context.Context) ([]*model.Commission, error)
}

type LedgerReader interface {
	SumPaidByMember(ctx context.Context, memberID string) (int64, error)
	SumPaid(ctx context.Context) (int64, error)
}

// Drift compares an aggregate with the ledger. Drift is Ledger - Recorded.
type Drift struct {
	Subject  string
	Recorded int64
	Ledger   int64
}

func (d Drift) Amount() int64 {
	return d.Ledger - d.Recorded
}

func (d Drift) Balanced() bool {
	return d.Ledger == d.Recorded
}

type Auditor struct {
	members     MemberReader
	commissions CommissionReader
	ledger      LedgerReader
}

func NewAuditor(members MemberReader, commissions CommissionReader, ledger LedgerReader) *Auditor {
	return &Auditor{
		members:     members,
		commissions: commissions,
		ledger:      ledger,
	}
}

// AuditMember compares totalContributed with the member's paid contributions.
// A payment can commit between the two reads, so a mismatch is re-read once
// before it is reported.
func (a *Auditor) AuditMember(ctx context.Context, memberID string) (Drift, error) {
	d, err := a.memberDrift(ctx, memberID)
	if err != nil || d.Balanced() {
		return d, err
	}
	if d, err = a.memberDrift(ctx, memberID); err != nil {
		return d, err
	}
	if !d.Balanced() {
		logger.Warn("Member aggregate drift",
			"member_id", memberID,
			"recorded", d.Recorded,
			"ledger", d.Ledger,
			"drift", d.Amount())
	}
	return d, nil
}

func (a *Auditor) memberDrift(ctx context.Context, memberID string) (Drift, error) {
	d := Drift{Subject: memberID}

	m, err := a.members.Get(ctx, memberID)
	if err != nil {
		return d, fmt.Errorf("load member: %w", err)
	}
	sum, err := a.ledger.SumPaidByMember(ctx, memberID)
	if err != nil {
		return d, fmt.Errorf("sum member ledger: %w", err)
	}

	d.Recorded = m.FinancialStats.TotalContributed
	d.Ledger = sum
	return d, nil
}

// AuditCommissions compares the total raised across commissions with the sum
// of every paid contribution and publishes the result.
func (a *Auditor) AuditCommissions(ctx context.Context) (Drift, error) {
	d, err := a.commissionDrift(ctx)
	if err != nil {
		return d, err
	}
	if !d.Balanced() {
		if d, err = a.commissionDrift(ctx); err != nil {
			return d, err
		}
	}

	prom.RecordAuditDrift(ScopeCommissions, d.Amount())
	if !d.Balanced() {
		logger.Warn("Commission totals drift",
			"recorded", d.Recorded,
			"ledger", d.Ledger,
			"drift", d.Amount())
	}
	return d, nil
}

func (a *Auditor) commissionDrift(ctx context.Context) (Drift, error) {
	d := Drift{Subject: ScopeCommissions}

	commissions, err := a.commissions.List(ctx)
	if err != nil {
		return d, fmt.Errorf("list commissions: %w", err)
	}
	sum, err := a.ledger.SumPaid(ctx)
	if err != nil {
		return d, fmt.Errorf("sum ledger: %w", err)
	}

	for _, c := range commissions {
		d.Recorded += c.TotalRaised
	}
	d.Ledger = sum
	return d, nil
}

// MemberIDs pages through every member id in ascending order. A pageSize of
// zero or less uses the default page size.
func (a *Auditor) MemberIDs(ctx context.Context, pageSize int, fn func(id string) error) error {
	if pageSize <= 0 {
		pageSize = DefaultConfig().PageSize
	}
	after := ""
	for {
		ids, err := a.members.ListIDs(ctx, after, pageSize)
		if err != nil {
			return fmt.Errorf("list member ids: %w", err)
		}
		for _, id := range ids {
			if err := fn(id); err != nil {
				return err
			}
		}
		if len(ids) < pageSize {
			return nil
		}
		after = ids[len(ids)-1]
	}
}
