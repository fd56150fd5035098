package middleware

import (
	"net/http"
	"strings"

	"github.com/tindahan/marketplace-backend/api/responses"
	"github.com/tindahan/marketplace-backend/pkg/enums"
	pkgerrors "github.com/tindahan/marketplace-backend/pkg/errors"
	"github.com/tindahan/marketplace-backend/pkg/logger"
)

const (
	UserIDHeader = "X-User-Id"
	RoleHeader   = "X-User-Role"
)

// Identity trusts the caller identity forwarded by the upstream auth layer.
// Requests without a user id are rejected before reaching a handler.
func Identity(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
			if userID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "x-user-id header required"))
				return
			}
			role := enums.ParseActorRole(strings.ToLower(strings.TrimSpace(r.Header.Get(RoleHeader))))

			ctx := WithUserID(r.Context(), userID)
			ctx = WithRole(ctx, role)
			if logg != nil {
				ctx = logg.WithUserID(ctx, userID)
				ctx = logg.WithActorRole(ctx, role.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
