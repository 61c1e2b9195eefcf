package middleware

import "context"

type contextKey string

const ctxWallet contextKey = "wallet"

// WalletFromContext returns the caller wallet injected by WalletContext.
func WalletFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxWallet).(string); ok {
		return v
	}
	return ""
}

// WithWallet injects the wallet address into the context for downstream handlers.
func WithWallet(ctx context.Context, wallet string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxWallet, wallet)
}
