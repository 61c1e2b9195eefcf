package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/monkelabs/monke-backend/api/middleware"
	"github.com/monkelabs/monke-backend/api/responses"
	"github.com/monkelabs/monke-backend/api/validators"
	deal "github.com/monkelabs/monke-backend/internal/deals"
	pkgerrors "github.com/monkelabs/monke-backend/pkg/errors"
	"github.com/monkelabs/monke-backend/pkg/logger"
)

type createMerchantRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// CreateMerchant registers the caller wallet as a merchant.
func CreateMerchant(svc deal.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "deal service unavailable"))
			return
		}

		wallet := middleware.WalletFromContext(r.Context())
		if wallet == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "wallet context missing"))
			return
		}

		var payload createMerchantRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		merchant, err := svc.CreateMerchant(r.Context(), deal.CreateMerchantInput{
			Name:   validators.SanitizeString(payload.Name, 200),
			Wallet: wallet,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, merchant)
	}
}

// GetMerchant returns one merchant by id.
func GetMerchant(svc deal.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "deal service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "merchantId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid merchant id"))
			return
		}

		merchant, err := svc.GetMerchant(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, merchant)
	}
}
