package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tindahan/marketplace-backend/internal/checkout/helpers"
	"github.com/tindahan/marketplace-backend/internal/orders"
	"github.com/tindahan/marketplace-backend/pkg/clock"
	"github.com/tindahan/marketplace-backend/pkg/db"
	"github.com/tindahan/marketplace-backend/pkg/db/models"
	"github.com/tindahan/marketplace-backend/pkg/enums"
	pkgerrors "github.com/tindahan/marketplace-backend/pkg/errors"
	"github.com/tindahan/marketplace-backend/pkg/logger"
	"github.com/tindahan/marketplace-backend/pkg/metrics"
	"github.com/tindahan/marketplace-backend/pkg/money"
	"github.com/tindahan/marketplace-backend/pkg/outbox"
	"github.com/tindahan/marketplace-backend/pkg/outbox/payloads"
)

// orderNamespace scopes deterministic order ids derived from (buyer, idempotency key).
var orderNamespace = uuid.MustParse("3b1f6c52-8d0e-4f4a-9a57-2f1c0b6e9d41")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CartLine is one line of the submitted cart snapshot.
type CartLine = helpers.CartLine

// CheckoutInput is the cart snapshot plus the buyer's shipping and payment selections.
type CheckoutInput struct {
	BuyerID         string
	IdempotencyKey  string
	Items           []CartLine
	ShippingAddress models.ShippingAddress
	ShippingMethod  string
	PaymentMethod   string
	ReceiptImageURL string
}

// Result is the stored order. Created is false when an earlier submission with
// the same idempotency key already produced it.
type Result struct {
	Order   orders.OrderDTO
	Created bool
}

// Service executes checkout orchestration.
type Service interface {
	Execute(ctx context.Context, input CheckoutInput) (*Result, error)
}

// Deps carries the checkout collaborators. DeliveryFees must price every shipping method.
type Deps struct {
	Orders       orders.Repository
	Tx           txRunner
	Outbox       outboxPublisher
	Clock        clock.Clock
	Lock         orders.LockPolicy
	DeliveryFees map[enums.ShippingMethod]money.Amount
	StoreTimeout time.Duration
	Metrics      *metrics.OrderMetrics
	Logger       *logger.Logger
}

type service struct {
	orders       orders.Repository
	tx           txRunner
	outbox       outboxPublisher
	clock        clock.Clock
	lock         orders.LockPolicy
	fees         map[enums.ShippingMethod]money.Amount
	storeTimeout time.Duration
	metrics      *metrics.OrderMetrics
	logg         *logger.Logger
}

// NewService builds the checkout service.
func NewService(deps Deps) (Service, error) {
	if deps.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if deps.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	for _, method := range []enums.ShippingMethod{enums.ShippingMethodLocalDelivery, enums.ShippingMethodStorePickup} {
		fee, ok := deps.DeliveryFees[method]
		if !ok {
			return nil, fmt.Errorf("delivery fee for %s required", method)
		}
		if fee.IsNegative() {
			return nil, fmt.Errorf("delivery fee for %s must not be negative", method)
		}
	}
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.StoreTimeout <= 0 {
		deps.StoreTimeout = orders.DefaultStoreTimeout
	}
	return &service{
		orders:       deps.Orders,
		tx:           deps.Tx,
		outbox:       deps.Outbox,
		clock:        deps.Clock,
		lock:         orders.NewLockPolicy(deps.Lock.Window()),
		fees:         deps.DeliveryFees,
		storeTimeout: deps.StoreTimeout,
		metrics:      deps.Metrics,
		logg:         deps.Logger,
	}, nil
}

// OrderID derives the order id for a checkout. The same buyer and key always map to the
// same id; without a key every call gets a fresh random id. The buyer id is length
// prefixed so no (buyer, key) pair shares its name with another.
func OrderID(buyerID, idempotencyKey string) uuid.UUID {
	key := strings.TrimSpace(idempotencyKey)
	if key == "" {
		return uuid.New()
	}
	name := strconv.Itoa(len(buyerID)) + ":" + buyerID + key
	return uuid.NewSHA1(orderNamespace, []byte(name))
}

func (s *service) Execute(ctx context.Context, input CheckoutInput) (*Result, error) {
	buyerID := strings.TrimSpace(input.BuyerID)
	if buyerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	order, err := s.buildOrder(buyerID, input)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	if s.logg != nil {
		ctx = s.logg.WithOrderID(ctx, order.ID.String())
	}

	if strings.TrimSpace(input.IdempotencyKey) != "" {
		existing, err := s.orders.FindByID(ctx, order.ID)
		switch {
		case err == nil:
			return s.replay(ctx, buyerID, existing)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		return s.emitOrderCreatedEvent(ctx, tx, order)
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			existing, findErr := s.orders.FindByID(ctx, order.ID)
			if findErr == nil {
				return s.replay(ctx, buyerID, existing)
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "reload raced order")
		}
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	s.metrics.IncCreated()
	if s.logg != nil {
		fields := map[string]any{
			"user_id":        buyerID,
			"seller_count":   len(order.SellerIDs()),
			"total_cents":    order.TotalCents,
			"payment_method": order.PaymentMethod,
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "order.created")
	}
	return &Result{
		Order:   orders.ToOrderDTO(*order, s.lock.State(order.CreatedAt, s.clock.Now())),
		Created: true,
	}, nil
}

// replay returns an order stored by an earlier submission. An id owned by another
// buyer is never echoed back.
func (s *service) replay(ctx context.Context, buyerID string, existing *models.Order) (*Result, error) {
	if existing.BuyerID != buyerID {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "user_id", buyerID), "order.checkout_id_collision")
		}
		return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key cannot be used for this checkout")
	}
	if s.logg != nil {
		s.logg.Info(ctx, "order.checkout_replayed")
	}
	return &Result{
		Order:   orders.ToOrderDTO(*existing, s.lock.State(existing.CreatedAt, s.clock.Now())),
		Created: false,
	}, nil
}

// buildOrder validates the snapshot and prices it. Nothing is persisted.
func (s *service) buildOrder(buyerID string, input CheckoutInput) (*models.Order, error) {
	shipping, err := enums.ParseShippingMethod(strings.TrimSpace(input.ShippingMethod))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping method").
			WithDetails(map[string]string{"shippingMethod": "must be local-delivery or store-pickup"})
	}
	payment, err := enums.ParsePaymentMethod(strings.TrimSpace(input.PaymentMethod))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method").
			WithDetails(map[string]string{"paymentMethod": "must be cod or gcash"})
	}

	if err := helpers.ValidateCartLines(input.Items); err != nil {
		return nil, err
	}
	lines := helpers.MergeDuplicateLines(input.Items)
	if err := helpers.ValidateStock(lines); err != nil {
		return nil, err
	}
	if err := helpers.ValidateShipping(shipping, input.ShippingAddress); err != nil {
		return nil, err
	}

	paymentStatus := enums.PaymentStatusUnpaid
	var receipt *string
	if raw := strings.TrimSpace(input.ReceiptImageURL); raw != "" {
		if !payment.RequiresVerification() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "receipts are only accepted for gcash orders").
				WithDetails(map[string]string{"receiptImageUrl": "not allowed for cod"})
		}
		if err := helpers.ValidateReceiptURL(raw); err != nil {
			return nil, err
		}
		receipt = &raw
		paymentStatus = enums.PaymentStatusPendingVerification
	}

	items := helpers.ToOrderItems(lines)
	fee := s.fees[shipping]
	subtotal, err := helpers.ItemsSubtotal(items)
	if err != nil {
		return nil, err
	}
	total, err := money.Sum(subtotal, fee)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "order total out of range").
			WithDetails(map[string]string{"items": "order total exceeds the maximum amount"})
	}
	now := s.clock.Now()

	return &models.Order{
		ID:               OrderID(buyerID, input.IdempotencyKey),
		BuyerID:          buyerID,
		Items:            items,
		ShippingAddress:  normalizeAddress(input.ShippingAddress),
		ShippingMethod:   shipping,
		PaymentMethod:    payment,
		DeliveryFeeCents: fee.Cents(),
		TotalCents:       total.Cents(),
		OrderStatus:      enums.OrderStatusPending,
		PaymentStatus:    paymentStatus,
		ReceiptImageURL:  receipt,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func normalizeAddress(addr models.ShippingAddress) models.ShippingAddress {
	return models.ShippingAddress{
		Address:        strings.TrimSpace(addr.Address),
		RecipientName:  strings.TrimSpace(addr.RecipientName),
		RecipientPhone: strings.TrimSpace(addr.RecipientPhone),
	}
}

func sellerShares(order *models.Order) []payloads.SellerShare {
	parts := orders.Partitions(*order)
	shares := make([]payloads.SellerShare, 0, len(parts))
	for _, p := range parts {
		shares = append(shares, payloads.SellerShare{
			SellerID:      p.SellerID,
			SubtotalCents: p.SellerTotal.Cents(),
			ItemCount:     p.ItemCount,
			UnitCount:     p.UnitsSold,
		})
	}
	return shares
}

func (s *service) emitOrderCreatedEvent(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: order.BuyerID, Role: string(enums.ActorRoleUser)},
		OccurredAt:    order.CreatedAt,
		Data: payloads.OrderCreatedEvent{
			OrderID:          order.ID,
			BuyerID:          order.BuyerID,
			SellerIDs:        order.SellerIDs(),
			Sellers:          sellerShares(order),
			PaymentMethod:    order.PaymentMethod,
			PaymentStatus:    order.PaymentStatus,
			TotalCents:       order.TotalCents,
			DeliveryFeeCents: order.DeliveryFeeCents,
			CreatedAt:        order.CreatedAt,
		},
		Version: 1,
	}
	return s.outbox.Emit(ctx, tx, event)
}
