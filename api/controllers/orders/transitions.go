package orders

import (
	"context"
	"net/http"

	"github.com/tindahan/marketplace-backend/api/responses"
	"github.com/tindahan/marketplace-backend/api/validators"
	internalorders "github.com/tindahan/marketplace-backend/internal/orders"
	"github.com/tindahan/marketplace-backend/pkg/logger"
)

// transitionFunc is a Service method expression such as internalorders.Service.Transition.
type transitionFunc[T any] func(svc internalorders.Service, ctx context.Context, input T) (*internalorders.TransitionResult, error)

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type paymentStatusRequest struct {
	PaymentStatus string `json:"paymentStatus" validate:"required"`
}

type receiptRequest struct {
	ReceiptImageURL string `json:"receiptImageUrl" validate:"required,http_url"`
}

// UpdateStatus moves the order status. Unknown targets are rejected by the service so
// the error lists the allowed values.
func UpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return statusHandler(svc, logg, internalorders.Service.Transition)
}

// ForceStatus is the admin override that bypasses the edit lock.
func ForceStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return statusHandler(svc, logg, internalorders.Service.ForceTransition)
}

func statusHandler(svc internalorders.Service, logg *logger.Logger, run transitionFunc[internalorders.TransitionInput]) http.HandlerFunc {
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
		var body statusRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := run(svc, r.Context(), internalorders.TransitionInput{
			OrderID: orderID,
			Actor:   actorFrom(r),
			Status:  body.Status,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// UpdatePaymentStatus reviews the payment of a gcash order.
func UpdatePaymentStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return paymentHandler(svc, logg, internalorders.Service.PaymentTransition)
}

// ForcePaymentStatus is the admin payment override that bypasses the edit lock.
func ForcePaymentStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return paymentHandler(svc, logg, internalorders.Service.ForcePaymentTransition)
}

func paymentHandler(svc internalorders.Service, logg *logger.Logger, run transitionFunc[internalorders.PaymentTransitionInput]) http.HandlerFunc {
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
		var body paymentStatusRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := run(svc, r.Context(), internalorders.PaymentTransitionInput{
			OrderID:       orderID,
			Actor:         actorFrom(r),
			PaymentStatus: body.PaymentStatus,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// UploadReceipt attaches the buyer's gcash receipt.
func UploadReceipt(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
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
		var body receiptRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.UploadReceipt(r.Context(), internalorders.ReceiptInput{
			OrderID:         orderID,
			Actor:           actorFrom(r),
			ReceiptImageURL: body.ReceiptImageURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
