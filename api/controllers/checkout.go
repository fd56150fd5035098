package controllers

import (
	"net/http"
	"strings"

	"github.com/tindahan/marketplace-backend/api/middleware"
	"github.com/tindahan/marketplace-backend/api/responses"
	"github.com/tindahan/marketplace-backend/api/validators"
	checkoutsvc "github.com/tindahan/marketplace-backend/internal/checkout"
	"github.com/tindahan/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/tindahan/marketplace-backend/pkg/errors"
	"github.com/tindahan/marketplace-backend/pkg/logger"
	"github.com/tindahan/marketplace-backend/pkg/money"
)

// Checkout turns the submitted cart snapshot into an order. A replayed
// Idempotency-Key returns the stored order with 200 instead of 201.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Execute(r.Context(), payload.toInput(
			middleware.UserIDFromContext(r.Context()),
			r.Header.Get(middleware.IdempotencyHeader),
		))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if !result.Created {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, result.Order)
	}
}

type checkoutRequest struct {
	Items           []checkoutItem         `json:"items" validate:"required,min=1,dive"`
	ShippingAddress checkoutAddressRequest `json:"shippingAddress"`
	ShippingMethod  string                 `json:"shippingMethod" validate:"required,oneof=local-delivery store-pickup"`
	PaymentMethod   string                 `json:"paymentMethod" validate:"required,oneof=cod gcash"`
	ReceiptImageURL string                 `json:"receiptImageUrl,omitempty" validate:"omitempty,http_url"`
}

type checkoutItem struct {
	ProductID   string       `json:"productId" validate:"required"`
	ProductName string       `json:"productName" validate:"max=200"`
	Image       string       `json:"image,omitempty"`
	SellerID    string       `json:"sellerId" validate:"required"`
	Quantity    int          `json:"quantity" validate:"gt=0"`
	Price       money.Amount `json:"price" validate:"gte=0"`
	Stock       int          `json:"stock" validate:"gte=0"`
}

type checkoutAddressRequest struct {
	Address        string `json:"address"`
	RecipientName  string `json:"recipientName"`
	RecipientPhone string `json:"recipientPhone"`
}

func (p checkoutRequest) toInput(buyerID, idempotencyKey string) checkoutsvc.CheckoutInput {
	items := make([]checkoutsvc.CartLine, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, checkoutsvc.CartLine{
			ProductID:   strings.TrimSpace(item.ProductID),
			ProductName: validators.SanitizeString(item.ProductName, 200),
			Image:       strings.TrimSpace(item.Image),
			SellerID:    strings.TrimSpace(item.SellerID),
			Quantity:    item.Quantity,
			Price:       item.Price,
			Stock:       item.Stock,
		})
	}
	return checkoutsvc.CheckoutInput{
		BuyerID:        buyerID,
		IdempotencyKey: strings.TrimSpace(idempotencyKey),
		Items:          items,
		ShippingAddress: models.ShippingAddress{
			Address:        validators.SanitizeString(p.ShippingAddress.Address, 500),
			RecipientName:  validators.SanitizeString(p.ShippingAddress.RecipientName, 200),
			RecipientPhone: validators.SanitizeString(p.ShippingAddress.RecipientPhone, 40),
		},
		ShippingMethod:  p.ShippingMethod,
		PaymentMethod:   p.PaymentMethod,
		ReceiptImageURL: strings.TrimSpace(p.ReceiptImageURL),
	}
}
