package orders

import (
	"net/http"
	"time"

	"github.com/tindahan/marketplace-backend/api/middleware"
	"github.com/tindahan/marketplace-backend/api/responses"
	"github.com/tindahan/marketplace-backend/api/validators"
	internalorders "github.com/tindahan/marketplace-backend/internal/orders"
	pkgerrors "github.com/tindahan/marketplace-backend/pkg/errors"
	"github.com/tindahan/marketplace-backend/pkg/logger"
)

// chi allows one parameter name per path segment, so the buyer list and the
// order routes share {id}.
const (
	buyerParam = "id"
	orderParam = "id"
)

// DefaultRevenueRange is the report window used when the from query parameter is omitted.
const DefaultRevenueRange = 30 * 24 * time.Hour

func actorFrom(r *http.Request) internalorders.Actor {
	return internalorders.Actor{
		UserID: middleware.UserIDFromContext(r.Context()),
		Role:   middleware.RoleFromContext(r.Context()),
	}
}

func unavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
}

// ListBuyer returns the buyer's orders, newest first.
func ListBuyer(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		buyerID, err := validators.RequireParam(r, buyerParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListBuyer(r.Context(), actorFrom(r), buyerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Detail returns one order in the view the caller is entitled to.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, orderParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), actorFrom(r), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// History returns the status audit trail of one order for admins.
func History(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, orderParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		history, err := svc.History(r.Context(), actorFrom(r), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, history)
	}
}

// ListSeller returns the orders containing the seller's lines with the seller projection.
func ListSeller(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		sellerID, err := validators.RequireParam(r, "sellerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListSeller(r.Context(), actorFrom(r), sellerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// SellerRevenue reports gross sales over [from, to). to defaults to the start of the
// next minute and from to DefaultRevenueRange before to, so default reports share a
// cache entry for the rest of the minute.
func SellerRevenue(svc internalorders.Service, now func() time.Time, logg *logger.Logger) http.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		sellerID, err := validators.RequireParam(r, "sellerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, ok, err := validators.ParseQueryTime(r, "to")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !ok {
			to = now().UTC().Truncate(time.Minute).Add(time.Minute)
		}
		from, ok, err := validators.ParseQueryTime(r, "from")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !ok {
			from = to.Add(-DefaultRevenueRange)
		}

		report, err := svc.SellerRevenue(r.Context(), actorFrom(r), sellerID, from, to)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}
