package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/monkelabs/monke-backend/api/middleware"
	"github.com/monkelabs/monke-backend/api/responses"
	"github.com/monkelabs/monke-backend/api/validators"
	group "github.com/monkelabs/monke-backend/internal/groups"
	pkgerrors "github.com/monkelabs/monke-backend/pkg/errors"
	"github.com/monkelabs/monke-backend/pkg/logger"
)

type createGroupRequest struct {
	DealID      uuid.UUID       `json:"deal_id" validate:"required"`
	PledgeUnits decimal.Decimal `json:"pledge_units"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
}

// CreateGroup opens a new group against a deal with the caller as host.
func CreateGroup(svc group.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group service unavailable"))
			return
		}

		wallet := middleware.WalletFromContext(r.Context())
		if wallet == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "wallet context missing"))
			return
		}

		var payload createGroupRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.CreateGroup(r.Context(), group.CreateGroupInput{
			DealID:      payload.DealID,
			HostWallet:  wallet,
			PledgeUnits: payload.PledgeUnits,
			ExpiresAt:   payload.ExpiresAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

type joinGroupRequest struct {
	PledgeUnits decimal.Decimal `json:"pledge_units"`
}

// JoinGroup adds the caller wallet to a forming group.
func JoinGroup(svc group.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group service unavailable"))
			return
		}

		wallet := middleware.WalletFromContext(r.Context())
		if wallet == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "wallet context missing"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "groupId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid group id"))
			return
		}

		var payload joinGroupRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		joined, err := svc.JoinGroup(r.Context(), group.JoinGroupInput{
			GroupID:     id,
			Wallet:      wallet,
			PledgeUnits: payload.PledgeUnits,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, joined)
	}
}

// GroupStatus returns the live status view of a group.
func GroupStatus(svc group.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "groupId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid group id"))
			return
		}

		status, err := svc.GetGroupStatus(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

// LockGroup runs the settlement protocol on a forming group.
func LockGroup(svc group.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group service unavailable"))
			return
		}

		wallet := middleware.WalletFromContext(r.Context())
		if wallet == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "wallet context missing"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "groupId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid group id"))
			return
		}

		settled, err := svc.LockGroup(r.Context(), id, wallet)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, settled)
	}
}

type cancelGroupRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// CancelGroup cancels a forming group on behalf of its host.
func CancelGroup(svc group.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group service unavailable"))
			return
		}

		wallet := middleware.WalletFromContext(r.Context())
		if wallet == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "wallet context missing"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "groupId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid group id"))
			return
		}

		var payload cancelGroupRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		cancelled, err := svc.CancelGroup(r.Context(), id, group.CancelGroupInput{
			ActorWallet: wallet,
			Reason:      validators.SanitizeString(payload.Reason, 500),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cancelled)
	}
}

// RecomputeGroupProgress forces a fresh aggregation of the group's progress.
func RecomputeGroupProgress(svc group.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "groupId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid group id"))
			return
		}

		progress, err := svc.RecomputeProgress(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, progress)
	}
}

// ListGroupsByDeal returns the groups formed against a deal.
func ListGroupsByDeal(svc group.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group service unavailable"))
			return
		}

		dealID, err := uuid.Parse(chi.URLParam(r, "dealId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid deal id"))
			return
		}

		params, err := paginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListGroupsByDeal(r.Context(), dealID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// MyGroups returns the groups the caller wallet participates in.
func MyGroups(svc group.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group service unavailable"))
			return
		}

		wallet := middleware.WalletFromContext(r.Context())
		if wallet == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "wallet context missing"))
			return
		}

		params, err := paginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListGroupsByWallet(r.Context(), wallet, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
