package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/monkelabs/monke-backend/api/middleware"
	"github.com/monkelabs/monke-backend/api/responses"
	group "github.com/monkelabs/monke-backend/internal/groups"
	pkgerrors "github.com/monkelabs/monke-backend/pkg/errors"
	"github.com/monkelabs/monke-backend/pkg/logger"
)

// GetRedemption looks up a redemption voucher by its code.
func GetRedemption(svc group.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group service unavailable"))
			return
		}

		code := chi.URLParam(r, "code")
		redemption, err := svc.GetRedemption(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, redemption)
	}
}

// RedeemCode burns a redemption code at point of sale.
func RedeemCode(svc group.Service, logg *logger.Logger) http.HandlerFunc {
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

		code := chi.URLParam(r, "code")
		redeemed, err := svc.RedeemCode(r.Context(), code, wallet)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, redeemed)
	}
}

// MyRedemptions lists the caller wallet's redemption vouchers.
func MyRedemptions(svc group.Service, logg *logger.Logger) http.HandlerFunc {
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

		rows, err := svc.ListRedemptionsByWallet(r.Context(), wallet)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}
