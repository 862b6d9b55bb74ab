package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/fasthttp/router"
	"github.com/majmadigital/finance-ledger/internal/auth"
	"github.com/majmadigital/finance-ledger/internal/model"
	xhttp "github.com/majmadigital/finance-ledger/pkg/http"
	"github.com/shopspring/decimal"
)

type PaymentService interface {
	ProcessPayment(ctx context.Context, req model.PaymentRequest) (*model.PaymentResult, error)
}

type ContributionService interface {
	List(ctx context.Context, f model.ContributionFilter) ([]*model.ContributionWithMember, int64, error)
}

type FinanceHandler struct {
	payments      PaymentService
	contributions ContributionService
	authz         Authorizer
}

func RegisterFinanceRoutes(e *router.Group, h *FinanceHandler, gate *auth.Gate) {
	e.POST("/finance/pay", gate.Require(auth.ActionPayAny, auth.ActionPaySelf)(h.Pay))
	e.GET("/finance", gate.Require(auth.ActionListContributions)(h.ListContributions))
}

func NewFinanceHandler(payments PaymentService, contributions ContributionService, authz Authorizer) *FinanceHandler {
	return &FinanceHandler{
		payments:      payments,
		contributions: contributions,
		authz:         authz,
	}
}

type payRequest struct {
	MemberID       string           `json:"memberId"`
	Type           string           `json:"type"`
	Amount         *decimal.Decimal `json:"amount"`
	EventLabel     string           `json:"eventLabel"`
	ProcessedBy    string           `json:"processedBy"`
	CampaignID     string           `json:"campaignId"`
	IdempotencyKey string           `json:"idempotencyKey"`
}

type payResponse struct {
	Success          bool                `json:"success"`
	Data             *model.Contribution `json:"data"`
	NewGlobalBalance int64               `json:"newGlobalBalance"`
	Replayed         bool                `json:"replayed,omitempty"`
}

type listResponse struct {
	Success bool                            `json:"success"`
	Data    []*model.ContributionWithMember `json:"data"`
	Total   int64                           `json:"total"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *FinanceHandler) Pay(ctx *xhttp.RequestCtx) {
	caller, ok := auth.FromRequest(ctx)
	if !ok {
		writeError(ctx, xhttp.StatusUnauthorized, auth.ErrUnauthenticated.Error())
		return
	}

	var req payRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	amount, err := model.ParseAmount(req.Amount)
	if err != nil {
		writeFailure(ctx, err)
		return
	}

	// the acting staff member is whoever holds the token
	if req.ProcessedBy != "" && req.ProcessedBy != caller.MemberID {
		writeError(ctx, xhttp.StatusForbidden, "processedBy must be the authenticated caller")
		return
	}
	if req.MemberID != caller.MemberID {
		if err := h.authz.Authorize(caller, auth.ActionPayAny); err != nil {
			writeError(ctx, xhttp.StatusForbidden, "not allowed to record payments for other members")
			return
		}
	}

	key := strings.TrimSpace(string(ctx.Request.Header.Peek("Idempotency-Key")))
	if key == "" {
		key = strings.TrimSpace(req.IdempotencyKey)
	}

	result, err := h.payments.ProcessPayment(ctx, model.PaymentRequest{
		MemberID:       strings.TrimSpace(req.MemberID),
		Type:           model.ContributionType(strings.TrimSpace(req.Type)),
		Amount:         amount,
		EventLabel:     req.EventLabel,
		ProcessedBy:    caller.MemberID,
		CampaignID:     strings.TrimSpace(req.CampaignID),
		IdempotencyKey: key,
	})
	if err != nil {
		writeFailure(ctx, err)
		return
	}

	status := xhttp.StatusCreated
	if result.Replayed {
		status = xhttp.StatusOK
	}
	writeJSON(ctx, status, payResponse{
		Success:          true,
		Data:             result.Contribution,
		NewGlobalBalance: result.NewGlobalBalance,
		Replayed:         result.Replayed,
	})
}

func (h *FinanceHandler) ListContributions(ctx *xhttp.RequestCtx) {
	var f model.ContributionFilter

	if v := query(ctx, "memberId"); v != "" {
		f.MemberID = &v
	}
	if v := query(ctx, "type"); v != "" {
		t := model.ContributionType(v)
		if !t.Valid() {
			writeError(ctx, xhttp.StatusBadRequest, "unknown contribution type "+strconv.Quote(v))
			return
		}
		f.Type = &t
	}
	if v := query(ctx, "from"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			writeError(ctx, xhttp.StatusBadRequest, "invalid from date "+strconv.Quote(v))
			return
		}
		f.From = &t
	}
	if v := query(ctx, "to"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			writeError(ctx, xhttp.StatusBadRequest, "invalid to date "+strconv.Quote(v))
			return
		}
		f.To = &t
	}
	var ok bool
	if f.Limit, ok = queryInt(ctx, "limit"); !ok {
		writeError(ctx, xhttp.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	if f.Offset, ok = queryInt(ctx, "offset"); !ok {
		writeError(ctx, xhttp.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	items, total, err := h.contributions.List(ctx, f)
	if err != nil {
		writeFailure(ctx, err)
		return
	}
	if items == nil {
		items = []*model.ContributionWithMember{}
	}

	writeJSON(ctx, xhttp.StatusOK, listResponse{Success: true, Data: items, Total: total})
}
