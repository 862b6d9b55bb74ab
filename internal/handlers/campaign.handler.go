package handlers

import (
	"context"
	"strings"

	"github.com/fasthttp/router"
	"github.com/majmadigital/finance-ledger/internal/auth"
	"github.com/majmadigital/finance-ledger/internal/model"
	xhttp "github.com/majmadigital/finance-ledger/pkg/http"
	"github.com/shopspring/decimal"
)

type CampaignService interface {
	Create(ctx context.Context, req model.CampaignCreateRequest) (*model.Campaign, error)
	Get(ctx context.Context, id string) (*model.Campaign, error)
	Pledge(ctx context.Context, req model.PledgeRequest) (*model.CampaignParticipant, error)
}

type CampaignHandler struct {
	svc   CampaignService
	authz Authorizer
}

func RegisterCampaignRoutes(e *router.Group, h *CampaignHandler, gate *auth.Gate) {
	e.POST("/campaigns", gate.Require(auth.ActionManageCampaigns)(h.CreateCampaign))
	e.GET("/campaigns/{id}", gate.Require(auth.ActionListContributions)(h.GetCampaign))
	e.POST("/campaigns/{id}/pledges", gate.Require(auth.ActionPledge)(h.Pledge))
}

func NewCampaignHandler(svc CampaignService, authz Authorizer) *CampaignHandler {
	return &CampaignHandler{
		svc:   svc,
		authz: authz,
	}
}

type createCampaignRequest struct {
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	TargetAmount *decimal.Decimal `json:"targetAmount"`
}

type pledgeRequest struct {
	MemberID string           `json:"memberId"`
	Amount   *decimal.Decimal `json:"amount"`
}

type dataResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

func (h *CampaignHandler) CreateCampaign(ctx *xhttp.RequestCtx) {
	caller, ok := auth.FromRequest(ctx)
	if !ok {
		writeError(ctx, xhttp.StatusUnauthorized, auth.ErrUnauthenticated.Error())
		return
	}

	var req createCampaignRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	var target int64
	if req.TargetAmount != nil {
		t, err := model.ParseAmount(req.TargetAmount)
		if err != nil {
			writeFailure(ctx, err)
			return
		}
		target = t
	}

	c, err := h.svc.Create(ctx, model.CampaignCreateRequest{
		Name:         req.Name,
		Description:  req.Description,
		TargetAmount: target,
		CreatedBy:    caller.MemberID,
	})
	if err != nil {
		writeFailure(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, dataResponse{Success: true, Data: c})
}

func (h *CampaignHandler) GetCampaign(ctx *xhttp.RequestCtx) {
	id, _ := ctx.UserValue("id").(string)

	c, err := h.svc.Get(ctx, id)
	if err != nil {
		writeFailure(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, dataResponse{Success: true, Data: c})
}

func (h *CampaignHandler) Pledge(ctx *xhttp.RequestCtx) {
	caller, ok := auth.FromRequest(ctx)
	if !ok {
		writeError(ctx, xhttp.StatusUnauthorized, auth.ErrUnauthenticated.Error())
		return
	}
	campaignID, _ := ctx.UserValue("id").(string)

	var req pledgeRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	amount, err := model.ParseAmount(req.Amount)
	if err != nil {
		writeFailure(ctx, err)
		return
	}

	memberID := strings.TrimSpace(req.MemberID)
	if memberID == "" {
		memberID = caller.MemberID
	}
	if memberID != caller.MemberID {
		if err := h.authz.Authorize(caller, auth.ActionManageCampaigns); err != nil {
			writeError(ctx, xhttp.StatusForbidden, "not allowed to pledge for other members")
			return
		}
	}

	p, err := h.svc.Pledge(ctx, model.PledgeRequest{
		CampaignID: campaignID,
		MemberID:   memberID,
		Amount:     amount,
	})
	if err != nil {
		writeFailure(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, dataResponse{Success: true, Data: p})
}
