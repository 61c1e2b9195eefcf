package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/monkelabs/monke-backend/api/middleware"
	"github.com/monkelabs/monke-backend/api/responses"
	"github.com/monkelabs/monke-backend/api/validators"
	"github.com/monkelabs/monke-backend/internal/notifications"
	pkgerrors "github.com/monkelabs/monke-backend/pkg/errors"
	"github.com/monkelabs/monke-backend/pkg/logger"
)

// ListNotifications returns the caller wallet's notification feed.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification service unavailable"))
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

		result, err := svc.List(r.Context(), notifications.ListParams{
			Wallet:     wallet,
			Limit:      limit,
			Cursor:     r.URL.Query().Get("cursor"),
			UnreadOnly: r.URL.Query().Get("unread") == "true",
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// MarkNotificationRead marks one of the caller's notifications as read.
func MarkNotificationRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification service unavailable"))
			return
		}

		wallet := middleware.WalletFromContext(r.Context())
		if wallet == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "wallet context missing"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "notificationId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid notification id"))
			return
		}

		if err := svc.MarkRead(r.Context(), wallet, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"read": true})
	}
}

// MarkAllNotificationsRead marks all of the caller's notifications as read.
func MarkAllNotificationsRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification service unavailable"))
			return
		}

		wallet := middleware.WalletFromContext(r.Context())
		if wallet == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "wallet context missing"))
			return
		}

		count, err := svc.MarkAllRead(r.Context(), wallet)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"updated": count})
	}
}
