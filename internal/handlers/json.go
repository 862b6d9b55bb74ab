package handlers

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/majmadigital/finance-ledger/internal/auth"
	"github.com/majmadigital/finance-ledger/internal/model"
	"github.com/majmadigital/finance-ledger/internal/services"
	xhttp "github.com/majmadigital/finance-ledger/pkg/http"
	"github.com/majmadigital/finance-ledger/pkg/logger"
)

type Authorizer interface {
	Authorize(id *auth.Identity, action auth.Action) error
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	if len(body) == 0 {
		return errors.New("empty body")
	}
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	xhttp.WriteJSON(ctx, status, v)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	xhttp.WriteError(ctx, status, msg)
}

// writeFailure maps a service error to a status code. Server-side failures
// get a generic message; the cause is only logged.
func writeFailure(ctx *xhttp.RequestCtx, err error) {
	status := statusFor(err)
	if status >= xhttp.StatusInternalServerError {
		logger.Error("request failed",
			"method", string(ctx.Method()),
			"path", string(ctx.Path()),
			"error", err)
		writeError(ctx, status, services.ErrPaymentFailed.Error())
		return
	}
	writeError(ctx, status, clientMessage(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return xhttp.StatusBadRequest
	case errors.Is(err, auth.ErrUnauthenticated):
		return xhttp.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		return xhttp.StatusForbidden
	case errors.Is(err, model.ErrMemberNotFound),
		errors.Is(err, model.ErrCampaignNotFound),
		errors.Is(err, model.ErrParticipantNotFound),
		errors.Is(err, model.ErrContributionNotFound):
		return xhttp.StatusNotFound
	case errors.Is(err, services.ErrPaymentInProgress),
		errors.Is(err, services.ErrIdempotencyKeyReused),
		errors.Is(err, model.ErrDuplicateCampaign):
		return xhttp.StatusConflict
	}
	return xhttp.StatusInternalServerError
}

func clientMessage(err error) string {
	return strings.TrimPrefix(err.Error(), services.ErrPaymentFailed.Error()+": ")
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

// queryInt reads an optional non-negative integer; absent means zero.
func queryInt(ctx *xhttp.RequestCtx, key string) (int, bool) {
	v := query(ctx, key)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func parseTime(s string) (time.Time, error) {
	// Accept RFC3339 or YYYY-MM-DD
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
