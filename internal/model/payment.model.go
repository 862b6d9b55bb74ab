package model

import (
	"errors"

	"github.com/shopspring/decimal"
)

// PaymentRequest is the input of the payment coordinator. IdempotencyKey is
// optional; when set it becomes the contribution's transaction id.
type PaymentRequest struct {
	MemberID       string
	Type           ContributionType
	Amount         int64
	EventLabel     string
	ProcessedBy    string
	CampaignID     string
	IdempotencyKey string
}

func (p PaymentRequest) Validate() error {
	var errs []error
	if p.MemberID == "" {
		errs = append(errs, validation("memberId is required"))
	}
	if !p.Type.Valid() {
		errs = append(errs, validation("type %q is not a contribution category", p.Type))
	}
	if p.Amount < 0 {
		errs = append(errs, validation("amount must be non-negative"))
	}
	if p.ProcessedBy == "" {
		errs = append(errs, validation("processedBy is required"))
	}
	if len(p.IdempotencyKey) > 128 {
		errs = append(errs, validation("idempotency key is longer than 128 characters"))
	}
	return errors.Join(errs...)
}

// PaymentResult is what the coordinator hands back after commit. Replayed is
// set when an idempotency key matched an earlier payment and nothing was
// written.
type PaymentResult struct {
	Contribution     *Contribution
	NewGlobalBalance int64
	Replayed         bool
}

// ParseAmount converts a JSON amount into whole francs. Fractions are
// rejected because the currency has no minor unit.
func ParseAmount(d *decimal.Decimal) (int64, error) {
	if d == nil {
		return 0, validation("amount is required")
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, validation("amount must be a whole number")
	}
	if d.IsNegative() {
		return 0, validation("amount must be non-negative")
	}
	if d.GreaterThan(decimal.NewFromInt(maxAmount)) {
		return 0, validation("amount is too large")
	}
	return d.IntPart(), nil
}

// well below int64 overflow once summed into commission totals
const maxAmount = 1_000_000_000_000
