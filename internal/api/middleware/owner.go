package middleware

import (
	"context"
	"net/http"

	"github.com/nimbusdb/controlplane/internal/api/response"
)

// OwnerHeader carries the caller's owner ID. Authentication happens upstream
// at the gateway; by the time a request reaches this service the header is
// trusted.
const OwnerHeader = "X-Owner-Id"

// OwnerEmailHeader carries the owner's email address for lifecycle
// notifications. Optional; an owner without it simply gets no mail.
const OwnerEmailHeader = "X-Owner-Email"

type ownerKey struct{}
type ownerEmailKey struct{}

// Owner rejects requests without an owner identity and stores the owner ID
// and email in the request context.
func Owner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID := r.Header.Get(OwnerHeader)
		if ownerID == "" {
			response.WriteError(w, http.StatusUnauthorized, "missing owner identity")
			return
		}
		ctx := context.WithValue(r.Context(), ownerKey{}, ownerID)
		if email := r.Header.Get(OwnerEmailHeader); email != "" {
			ctx = context.WithValue(ctx, ownerEmailKey{}, email)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithOwner returns a context carrying the given owner ID.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// WithOwnerEmail returns a context carrying the given owner email.
func WithOwnerEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, ownerEmailKey{}, email)
}

// OwnerID returns the owner ID stored by Owner, or "".
func OwnerID(ctx context.Context) string {
	id, _ := ctx.Value(ownerKey{}).(string)
	return id
}

// OwnerEmail returns the owner email stored by Owner, or "".
func OwnerEmail(ctx context.Context) string {
	email, _ := ctx.Value(ownerEmailKey{}).(string)
	return email
}
