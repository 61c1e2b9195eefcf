package middleware

import (
	"net/http"
	"strings"

	"github.com/monkelabs/monke-backend/api/responses"
	pkgerrors "github.com/monkelabs/monke-backend/pkg/errors"
	"github.com/monkelabs/monke-backend/pkg/logger"
)

// WalletHeader carries the caller's wallet address. Signature verification
// happens at the gateway; by the time requests land here the header is trusted.
const WalletHeader = "X-Wallet-Address"

const maxWalletLength = 128

// WalletContext extracts the wallet header and makes it available to handlers.
// Requests without a wallet are rejected.
func WalletContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wallet := strings.TrimSpace(r.Header.Get(WalletHeader))
			if wallet == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "wallet header missing"))
				return
			}
			if len(wallet) > maxWalletLength {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "wallet header too long"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithWallet(r.Context(), wallet)))
		})
	}
}
