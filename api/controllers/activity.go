package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/monkelabs/monke-backend/api/middleware"
	"github.com/monkelabs/monke-backend/api/responses"
	"github.com/monkelabs/monke-backend/api/validators"
	"github.com/monkelabs/monke-backend/internal/activity"
	pkgerrors "github.com/monkelabs/monke-backend/pkg/errors"
	"github.com/monkelabs/monke-backend/pkg/logger"
)

// GroupActivity returns the activity trail for a group, newest first.
func GroupActivity(svc activity.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "activity service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "groupId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid group id"))
			return
		}

		events, err := svc.ListByGroup(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list group activity"))
			return
		}
		responses.WriteSuccess(w, events)
	}
}

// MyActivity returns the caller wallet's recent activity.
func MyActivity(svc activity.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "activity service unavailable"))
			return
		}

		wallet := middleware.WalletFromContext(r.Context())
		if wallet == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "wallet context missing"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		events, err := svc.ListByWallet(r.Context(), wallet, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list wallet activity"))
			return
		}
		responses.WriteSuccess(w, events)
	}
}
