package orders

import (
	"github.com/tindahan/marketplace-backend/pkg/enums"
	pkgerrors "github.com/tindahan/marketplace-backend/pkg/errors"
)

// Forward skips are allowed: a seller may jump straight to any later stage.
var orderEdges = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending: {
		enums.OrderStatusProcessing,
		enums.OrderStatusShipped,
		enums.OrderStatusDelivered,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusProcessing: {
		enums.OrderStatusShipped,
		enums.OrderStatusDelivered,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusShipped: {
		enums.OrderStatusDelivered,
	},
}

var paymentEdges = map[enums.PaymentStatus][]enums.PaymentStatus{
	enums.PaymentStatusUnpaid: {
		enums.PaymentStatusPendingVerification,
	},
	enums.PaymentStatusPendingVerification: {
		enums.PaymentStatusPaid,
		enums.PaymentStatusUnpaid,
	},
	enums.PaymentStatusPaid: {
		enums.PaymentStatusRefunded,
	},
}

// AllowedOrderTargets lists the statuses reachable from the given one.
func AllowedOrderTargets(from enums.OrderStatus) []enums.OrderStatus {
	return append([]enums.OrderStatus(nil), orderEdges[from]...)
}

func AllowedPaymentTargets(from enums.PaymentStatus) []enums.PaymentStatus {
	return append([]enums.PaymentStatus(nil), paymentEdges[from]...)
}

func CanTransitionOrder(from, to enums.OrderStatus) bool {
	for _, candidate := range orderEdges[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

func CanTransitionPayment(from, to enums.PaymentStatus) bool {
	for _, candidate := range paymentEdges[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

func checkOrderTransition(from, to enums.OrderStatus) error {
	if CanTransitionOrder(from, to) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, "order status transition not allowed").
		WithDetails(map[string]any{
			"field":   enums.StatusFieldOrder,
			"from":    from,
			"to":      to,
			"allowed": AllowedOrderTargets(from),
		})
}

func checkPaymentTransition(from, to enums.PaymentStatus) error {
	if CanTransitionPayment(from, to) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, "payment status transition not allowed").
		WithDetails(map[string]any{
			"field":   enums.StatusFieldPayment,
			"from":    from,
			"to":      to,
			"allowed": AllowedPaymentTargets(from),
		})
}
