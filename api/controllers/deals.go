package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/monkelabs/monke-backend/api/responses"
	"github.com/monkelabs/monke-backend/api/validators"
	deal "github.com/monkelabs/monke-backend/internal/deals"
	"github.com/monkelabs/monke-backend/pkg/enums"
	pkgerrors "github.com/monkelabs/monke-backend/pkg/errors"
	"github.com/monkelabs/monke-backend/pkg/logger"
	"github.com/monkelabs/monke-backend/pkg/pagination"
)

type createDealRequest struct {
	MerchantID      uuid.UUID         `json:"merchant_id" validate:"required"`
	Title           string            `json:"title" validate:"required,max=200"`
	BasePriceCents  int               `json:"base_price_cents" validate:"required,min=1"`
	TierMode        string            `json:"tier_mode" validate:"required"`
	MinParticipants *int              `json:"min_participants,omitempty" validate:"omitempty,min=1"`
	StartsAt        time.Time         `json:"starts_at" validate:"required"`
	EndsAt          time.Time         `json:"ends_at" validate:"required"`
	Tiers           []tierRequestItem `json:"tiers" validate:"required,min=1,dive"`
}

type tierRequestItem struct {
	Rank            int             `json:"rank" validate:"required,min=1"`
	Threshold       decimal.Decimal `json:"threshold" validate:"required"`
	DiscountPercent int             `json:"discount_percent" validate:"required,min=1,max=100"`
}

// CreateDeal publishes a new deal with its tier ladder.
func CreateDeal(svc deal.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "deal service unavailable"))
			return
		}

		var payload createDealRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		mode, err := enums.ParseTierMode(payload.TierMode)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tier mode"))
			return
		}

		tiers := make([]deal.TierInput, 0, len(payload.Tiers))
		for _, tier := range payload.Tiers {
			tiers = append(tiers, deal.TierInput{
				Rank:            tier.Rank,
				Threshold:       tier.Threshold,
				DiscountPercent: tier.DiscountPercent,
			})
		}

		created, err := svc.CreateDeal(r.Context(), deal.CreateDealInput{
			MerchantID:      payload.MerchantID,
			Title:           validators.SanitizeString(payload.Title, 200),
			BasePriceCents:  payload.BasePriceCents,
			TierMode:        mode,
			MinParticipants: payload.MinParticipants,
			StartsAt:        payload.StartsAt,
			EndsAt:          payload.EndsAt,
			Tiers:           tiers,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// GetDeal returns one deal with its tier ladder.
func GetDeal(svc deal.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "deal service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "dealId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid deal id"))
			return
		}

		found, err := svc.GetDeal(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, found)
	}
}

// ListActiveDeals returns a paginated list of deals open for new groups.
func ListActiveDeals(svc deal.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "deal service unavailable"))
			return
		}

		params, err := paginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListActiveDeals(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// CloseDeal stops a deal from accepting new groups.
func CloseDeal(svc deal.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "deal service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "dealId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid deal id"))
			return
		}

		closed, err := svc.CloseDeal(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, closed)
	}
}

func paginationParams(r *http.Request) (pagination.Params, error) {
	params := pagination.Params{}

	limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 100)
	if err != nil {
		return params, err
	}
	params.Limit = limit

	if cursor := strings.TrimSpace(r.URL.Query().Get("cursor")); cursor != "" {
		params.Cursor = cursor
	}
	return params, nil
}
