package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tindahan/marketplace-backend/pkg/cache"
	"github.com/tindahan/marketplace-backend/pkg/clock"
	"github.com/tindahan/marketplace-backend/pkg/db"
	"github.com/tindahan/marketplace-backend/pkg/db/models"
	"github.com/tindahan/marketplace-backend/pkg/enums"
	pkgerrors "github.com/tindahan/marketplace-backend/pkg/errors"
	"github.com/tindahan/marketplace-backend/pkg/metrics"
	"github.com/tindahan/marketplace-backend/pkg/money"
	"github.com/tindahan/marketplace-backend/pkg/outbox"
	"github.com/tindahan/marketplace-backend/pkg/pagination"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

var (
	buyer   = Actor{UserID: "buyer-1", Role: enums.ActorRoleUser}
	seller1 = Actor{UserID: "s1", Role: enums.ActorRoleUser}
	seller2 = Actor{UserID: "s2", Role: enums.ActorRoleUser}
	admin   = Actor{UserID: "admin-1", Role: enums.ActorRoleAdmin}
	nobody  = Actor{UserID: "stranger", Role: enums.ActorRoleUser}
)

type harness struct {
	client *db.Client
	repo   Repository
	outbox *outbox.Repository
	clock  *clock.Manual
	reg    *prometheus.Registry
	svc    Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client, err := db.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	require.NoError(t, client.DB().AutoMigrate(
		&models.Order{},
		&models.OrderSeller{},
		&models.StatusChange{},
		&models.OutboxEvent{},
	))
	t.Cleanup(func() { _ = client.Close() })

	clk := clock.NewManual(t0)
	reg := prometheus.NewRegistry()
	repo := NewRepository(client.DB())
	outboxRepo := outbox.NewRepository(client.DB())
	svc, err := NewService(Deps{
		Repo:         repo,
		Tx:           client,
		Outbox:       outbox.NewService(outboxRepo, nil),
		Clock:        clk,
		Lock:         NewLockPolicy(24 * time.Hour),
		RevenueCache: cache.New[RevenueReport](cache.NewMemory(clk), time.Minute, nil),
		Metrics:      metrics.NewOrderMetrics(reg),
	})
	require.NoError(t, err)
	return &harness{client: client, repo: repo, outbox: outboxRepo, clock: clk, reg: reg, svc: svc}
}

type seedOpt func(*models.Order)

func withPayment(method enums.PaymentMethod, status enums.PaymentStatus) seedOpt {
	return func(o *models.Order) {
		o.PaymentMethod = method
		o.PaymentStatus = status
	}
}

func withStatus(status enums.OrderStatus) seedOpt {
	return func(o *models.Order) { o.OrderStatus = status }
}

func createdAt(ts time.Time) seedOpt {
	return func(o *models.Order) {
		o.CreatedAt = ts
		o.UpdatedAt = ts
	}
}

func (h *harness) seed(t *testing.T, opts ...seedOpt) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:      uuid.New(),
		BuyerID: buyer.UserID,
		Items: []models.OrderItem{
			{ProductID: "p1", ProductName: "Abaca bag", SellerID: "s1", Quantity: 3, PriceCents: 10000},
			{ProductID: "p2", ProductName: "Rattan lamp", SellerID: "s2", Quantity: 1, PriceCents: 70000},
		},
		ShippingAddress:  models.ShippingAddress{Address: "12 Mabini St", RecipientName: "Ana", RecipientPhone: "0917"},
		ShippingMethod:   enums.ShippingMethodLocalDelivery,
		PaymentMethod:    enums.PaymentMethodCOD,
		DeliveryFeeCents: 5000,
		TotalCents:       105000,
		OrderStatus:      enums.OrderStatusPending,
		PaymentStatus:    enums.PaymentStatusUnpaid,
		Version:          1,
		CreatedAt:        t0,
		UpdatedAt:        t0,
	}
	for _, opt := range opts {
		opt(order)
	}
	require.NoError(t, h.repo.Create(context.Background(), order))
	return order
}

func (h *harness) load(t *testing.T, id uuid.UUID) *models.Order {
	t.Helper()
	order, err := h.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return order
}

func (h *harness) audit(t *testing.T, id uuid.UUID) []models.StatusChange {
	t.Helper()
	rows, err := h.repo.ListStatusChanges(context.Background(), id)
	require.NoError(t, err)
	return rows
}

func (h *harness) counter(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := h.reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	metric:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metric
				}
			}
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) *pkgerrors.Error {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected %s, got %v", code, err)
	require.Equal(t, code, typed.Code(), "unexpected error %v", err)
	return typed
}

func TestHappyPathSellerFulfillsCOD(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.seed(t)

	for i, target := range []string{"processing", "shipped", "delivered"} {
		h.clock.Advance(time.Hour)
		res, err := h.svc.Transition(ctx, TransitionInput{OrderID: order.ID, Actor: seller1, Status: target})
		require.NoError(t, err, "step %d", i)
		assert.True(t, res.Changed)
		assert.Equal(t, target, res.Current)
	}

	stored := h.load(t, order.ID)
	assert.Equal(t, enums.OrderStatusDelivered, stored.OrderStatus)
	assert.Equal(t, enums.PaymentStatusPaid, stored.PaymentStatus, "cod is paid on delivery")
	assert.Equal(t, int64(4), stored.Version)
	assert.Equal(t, t0.Add(3*time.Hour), stored.UpdatedAt.UTC())

	rows := h.audit(t, order.ID)
	require.Len(t, rows, 4)
	last := rows[len(rows)-1]
	assert.Equal(t, enums.StatusFieldPayment, last.Field)
	assert.Equal(t, "paid", last.ToValue)
	assert.False(t, last.Forced)

	events, err := h.outbox.ListByAggregate(nil, order.ID)
	require.NoError(t, err)
	require.Len(t, events, 4)
	byType := map[enums.OutboxEventType]int{}
	for _, ev := range events {
		byType[ev.EventType]++
	}
	assert.Equal(t, 3, byType[enums.EventOrderStatusChanged])
	assert.Equal(t, 1, byType[enums.EventOrderPaymentStatusChanged])

	assert.Equal(t, 1.0, h.counter(t, "order_transitions_total", map[string]string{"field": "order_status", "to": "delivered"}))
}

func TestTransitionReplayIsNoOp(t *testing.T) {
	h := newHarness(t)
	order := h.seed(t)
	input := TransitionInput{OrderID: order.ID, Actor: seller2, Status: "processing"}

	first, err := h.svc.Transition(context.Background(), input)
	require.NoError(t, err)
	second, err := h.svc.Transition(context.Background(), input)
	require.NoError(t, err)

	assert.True(t, first.Changed)
	assert.False(t, second.Changed)
	assert.Equal(t, "processing", second.Previous)
	assert.Equal(t, "processing", second.Current)
	assert.Equal(t, first.Order.Version, second.Order.Version)
	assert.Len(t, h.audit(t, order.ID), 1)
}

func TestReplayAfterLockStillSucceeds(t *testing.T) {
	h := newHarness(t)
	order := h.seed(t, withStatus(enums.OrderStatusShipped))
	h.clock.Set(t0.Add(48 * time.Hour))

	res, err := h.svc.Transition(context.Background(), TransitionInput{OrderID: order.ID, Actor: seller1, Status: "shipped"})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.True(t, res.Order.Lock.Locked)
}

func TestTerminalAndBackwardMovesRejected(t *testing.T) {
	h := newHarness(t)
	cases := []struct {
		from   enums.OrderStatus
		target string
	}{
		{enums.OrderStatusDelivered, "pending"},
		{enums.OrderStatusDelivered, "cancelled"},
		{enums.OrderStatusCancelled, "processing"},
		{enums.OrderStatusShipped, "cancelled"},
		{enums.OrderStatusShipped, "processing"},
		{enums.OrderStatusProcessing, "pending"},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s_to_%s", tc.from, tc.target), func(t *testing.T) {
			order := h.seed(t, withStatus(tc.from))
			_, err := h.svc.Transition(context.Background(), TransitionInput{OrderID: order.ID, Actor: seller1, Status: tc.target})
			requireCode(t, err, pkgerrors.CodeInvalidTransition)

			_, err = h.svc.ForceTransition(context.Background(), TransitionInput{OrderID: order.ID, Actor: admin, Status: tc.target})
			requireCode(t, err, pkgerrors.CodeInvalidTransition)
			assert.Equal(t, tc.from, h.load(t, order.ID).OrderStatus)
		})
	}
}

func TestForwardSkipAllowed(t *testing.T) {
	h := newHarness(t)
	order := h.seed(t, withPayment(enums.PaymentMethodGCash, enums.PaymentStatusPendingVerification))
	res, err := h.svc.Transition(context.Background(), TransitionInput{OrderID: order.ID, Actor: seller1, Status: "delivered"})
	require.NoError(t, err)
	assert.Equal(t, "pending", res.Previous)
	assert.Equal(t, enums.PaymentStatusPendingVerification, res.Order.PaymentStatus, "gcash payment is left to review")
}

func TestLockRejectsAfterWindow(t *testing.T) {
	h := newHarness(t)
	order := h.seed(t, createdAt(t0.Add(-25*time.Hour)))

	_, err := h.svc.Transition(context.Background(), TransitionInput{OrderID: order.ID, Actor: seller1, Status: "processing"})
	typed := requireCode(t, err, pkgerrors.CodeLocked)
	details := typed.Details().(map[string]any)
	assert.Equal(t, int64(3600), details["lockedForSeconds"])

	stored := h.load(t, order.ID)
	assert.Equal(t, enums.OrderStatusPending, stored.OrderStatus)
	assert.Equal(t, int64(1), stored.Version)
	assert.Empty(t, h.audit(t, order.ID))
	assert.Equal(t, 1.0, h.counter(t, "order_lock_rejections_total", map[string]string{"field": "order_status"}))
}

func TestLockBoundaryIsInclusive(t *testing.T) {
	h := newHarness(t)
	order := h.seed(t)
	h.clock.Set(t0.Add(24 * time.Hour))
	_, err := h.svc.Transition(context.Background(), TransitionInput{OrderID: order.ID, Actor: seller1, Status: "processing"})
	require.NoError(t, err)

	h.clock.Advance(time.Second)
	_, err = h.svc.Transition(context.Background(), TransitionInput{OrderID: order.ID, Actor: seller1, Status: "shipped"})
	requireCode(t, err, pkgerrors.CodeLocked)
}

func TestForceTransitionBypassesLockOnly(t *testing.T) {
	h := newHarness(t)
	order := h.seed(t, createdAt(t0.Add(-72*time.Hour)))

	_, err := h.svc.ForceTransition(context.Background(), TransitionInput{OrderID: order.ID, Actor: seller1, Status: "cancelled"})
	requireCode(t, err, pkgerrors.CodeForbidden)

	res, err := h.svc.ForceTransition(context.Background(), TransitionInput{OrderID: order.ID, Actor: admin, Status: "cancelled"})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.True(t, res.Order.Lock.Locked)

	rows := h.audit(t, order.ID)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Forced)
	assert.Equal(t, admin.UserID, rows[0].ActorID)
	assert.Equal(t, enums.ActorRoleAdmin, rows[0].ActorRole)
	assert.Equal(t, 1.0, h.counter(t, "order_transitions_total", map[string]string{"forced": "true"}))
}

func TestBuyerMayOnlyCancelPending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pending := h.seed(t)
	_, err := h.svc.Transition(ctx, TransitionInput{OrderID: pending.ID, Actor: buyer, Status: "processing"})
	requireCode(t, err, pkgerrors.CodeForbidden)

	res, err := h.svc.Transition(ctx, TransitionInput{OrderID: pending.ID, Actor: buyer, Status: "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", res.Current)

	processing := h.seed(t, withStatus(enums.OrderStatusProcessing))
	_, err = h.svc.Transition(ctx, TransitionInput{OrderID: processing.ID, Actor: buyer, Status: "cancelled"})
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestUnrelatedUserGetsNotFound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.seed(t)

	_, err := h.svc.Transition(ctx, TransitionInput{OrderID: order.ID, Actor: nobody, Status: "processing"})
	requireCode(t, err, pkgerrors.CodeNotFound)
	_, err = h.svc.PaymentTransition(ctx, PaymentTransitionInput{OrderID: order.ID, Actor: nobody, PaymentStatus: "paid"})
	requireCode(t, err, pkgerrors.CodeNotFound)
	_, err = h.svc.Get(ctx, nobody, order.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)
	_, err = h.svc.Get(ctx, seller1, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestInvalidTargetIsValidationError(t *testing.T) {
	h := newHarness(t)
	order := h.seed(t)
	_, err := h.svc.Transition(context.Background(), TransitionInput{OrderID: order.ID, Actor: seller1, Status: "teleported"})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestPaymentApprovalAdvancesPendingOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pending := h.seed(t, withPayment(enums.PaymentMethodGCash, enums.PaymentStatusPendingVerification))
	res, err := h.svc.PaymentTransition(ctx, PaymentTransitionInput{OrderID: pending.ID, Actor: seller1, PaymentStatus: "paid"})
	require.NoError(t, err)
	assert.Equal(t, "pending_verification", res.Previous)
	assert.Equal(t, "paid", res.Current)
	assert.Equal(t, enums.OrderStatusProcessing, res.Order.OrderStatus)
	assert.Len(t, h.audit(t, pending.ID), 2)

	shipped := h.seed(t,
		withStatus(enums.OrderStatusShipped),
		withPayment(enums.PaymentMethodGCash, enums.PaymentStatusPendingVerification),
	)
	res, err = h.svc.PaymentTransition(ctx, PaymentTransitionInput{OrderID: shipped.ID, Actor: admin, PaymentStatus: "paid"})
	require.NoError(t, err)
	stored := h.load(t, shipped.ID)
	assert.Equal(t, enums.OrderStatusShipped, stored.OrderStatus)
	assert.Equal(t, enums.PaymentStatusPaid, stored.PaymentStatus)
	assert.Len(t, h.audit(t, shipped.ID), 1)
}

func TestPaymentRejectKeepsReceipt(t *testing.T) {
	h := newHarness(t)
	receipt := "https://cdn.example.com/r/1.jpg"
	order := h.seed(t, withPayment(enums.PaymentMethodGCash, enums.PaymentStatusPendingVerification), func(o *models.Order) {
		o.ReceiptImageURL = &receipt
	})

	res, err := h.svc.PaymentTransition(context.Background(), PaymentTransitionInput{OrderID: order.ID, Actor: seller2, PaymentStatus: "unpaid"})
	require.NoError(t, err)
	assert.Equal(t, "unpaid", res.Current)
	require.NotNil(t, res.Order.ReceiptImageURL)
	assert.Equal(t, receipt, *res.Order.ReceiptImageURL)
	assert.Equal(t, enums.OrderStatusPending, res.Order.OrderStatus)
}

func TestPaymentRoleRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	paid := h.seed(t, withPayment(enums.PaymentMethodGCash, enums.PaymentStatusPaid))
	_, err := h.svc.PaymentTransition(ctx, PaymentTransitionInput{OrderID: paid.ID, Actor: seller1, PaymentStatus: "refunded"})
	requireCode(t, err, pkgerrors.CodeForbidden)
	_, err = h.svc.PaymentTransition(ctx, PaymentTransitionInput{OrderID: paid.ID, Actor: buyer, PaymentStatus: "refunded"})
	requireCode(t, err, pkgerrors.CodeForbidden)
	res, err := h.svc.PaymentTransition(ctx, PaymentTransitionInput{OrderID: paid.ID, Actor: admin, PaymentStatus: "refunded"})
	require.NoError(t, err)
	assert.Equal(t, "refunded", res.Current)

	unpaid := h.seed(t, withPayment(enums.PaymentMethodGCash, enums.PaymentStatusUnpaid))
	_, err = h.svc.PaymentTransition(ctx, PaymentTransitionInput{OrderID: unpaid.ID, Actor: seller1, PaymentStatus: "paid"})
	requireCode(t, err, pkgerrors.CodeInvalidTransition)
	_, err = h.svc.PaymentTransition(ctx, PaymentTransitionInput{OrderID: unpaid.ID, Actor: seller1, PaymentStatus: "pending_verification"})
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestCODPaymentTransitionsPassThrough(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.seed(t)

	res, err := h.svc.PaymentTransition(ctx, PaymentTransitionInput{OrderID: order.ID, Actor: seller1, PaymentStatus: "paid"})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, "unpaid", res.Current)
	assert.Empty(t, h.audit(t, order.ID))

	delivered := h.seed(t, withStatus(enums.OrderStatusDelivered), withPayment(enums.PaymentMethodCOD, enums.PaymentStatusPaid))
	res, err = h.svc.PaymentTransition(ctx, PaymentTransitionInput{OrderID: delivered.ID, Actor: seller1, PaymentStatus: "refunded"})
	require.NoError(t, err)
	assert.False(t, res.Changed, "only admins refund cod orders")

	res, err = h.svc.PaymentTransition(ctx, PaymentTransitionInput{OrderID: delivered.ID, Actor: admin, PaymentStatus: "refunded"})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "refunded", res.Current)
}

func TestPaymentLockAndForce(t *testing.T) {
	h := newHarness(t)
	order := h.seed(t,
		createdAt(t0.Add(-30*time.Hour)),
		withPayment(enums.PaymentMethodGCash, enums.PaymentStatusPendingVerification),
	)

	_, err := h.svc.PaymentTransition(context.Background(), PaymentTransitionInput{OrderID: order.ID, Actor: seller1, PaymentStatus: "paid"})
	requireCode(t, err, pkgerrors.CodeLocked)
	assert.Equal(t, 1.0, h.counter(t, "order_lock_rejections_total", map[string]string{"field": "payment_status"}))

	res, err := h.svc.ForcePaymentTransition(context.Background(), PaymentTransitionInput{OrderID: order.ID, Actor: admin, PaymentStatus: "paid"})
	require.NoError(t, err)
	assert.Equal(t, "paid", res.Current)
	for _, row := range h.audit(t, order.ID) {
		assert.True(t, row.Forced)
	}
}

func TestUploadReceipt(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.seed(t, withPayment(enums.PaymentMethodGCash, enums.PaymentStatusUnpaid))

	_, err := h.svc.UploadReceipt(ctx, ReceiptInput{OrderID: order.ID, Actor: seller1, ReceiptImageURL: "https://cdn.example.com/a.jpg"})
	requireCode(t, err, pkgerrors.CodeForbidden)
	_, err = h.svc.UploadReceipt(ctx, ReceiptInput{OrderID: order.ID, Actor: buyer, ReceiptImageURL: "a.jpg"})
	requireCode(t, err, pkgerrors.CodeValidation)

	res, err := h.svc.UploadReceipt(ctx, ReceiptInput{OrderID: order.ID, Actor: buyer, ReceiptImageURL: "https://cdn.example.com/a.jpg"})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "unpaid", res.Previous)
	assert.Equal(t, "pending_verification", res.Current)

	res, err = h.svc.UploadReceipt(ctx, ReceiptInput{OrderID: order.ID, Actor: buyer, ReceiptImageURL: "https://cdn.example.com/a.jpg"})
	require.NoError(t, err)
	assert.False(t, res.Changed)

	res, err = h.svc.UploadReceipt(ctx, ReceiptInput{OrderID: order.ID, Actor: buyer, ReceiptImageURL: "https://cdn.example.com/b.jpg"})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "https://cdn.example.com/b.jpg", *h.load(t, order.ID).ReceiptImageURL)

	_, err = h.svc.PaymentTransition(ctx, PaymentTransitionInput{OrderID: order.ID, Actor: seller1, PaymentStatus: "paid"})
	require.NoError(t, err)
	_, err = h.svc.UploadReceipt(ctx, ReceiptInput{OrderID: order.ID, Actor: buyer, ReceiptImageURL: "https://cdn.example.com/c.jpg"})
	requireCode(t, err, pkgerrors.CodeInvalidTransition)

	cod := h.seed(t)
	_, err = h.svc.UploadReceipt(ctx, ReceiptInput{OrderID: cod.ID, Actor: buyer, ReceiptImageURL: "https://cdn.example.com/a.jpg"})
	requireCode(t, err, pkgerrors.CodeValidation)

	late := h.seed(t, createdAt(t0.Add(-25*time.Hour)), withPayment(enums.PaymentMethodGCash, enums.PaymentStatusUnpaid))
	_, err = h.svc.UploadReceipt(ctx, ReceiptInput{OrderID: late.ID, Actor: buyer, ReceiptImageURL: "https://cdn.example.com/a.jpg"})
	requireCode(t, err, pkgerrors.CodeLocked)
}

func TestGetViews(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.seed(t)

	asBuyer, err := h.svc.Get(ctx, buyer, order.ID)
	require.NoError(t, err)
	assert.Len(t, asBuyer.Items, 2)
	assert.Nil(t, asBuyer.SellerTotal)

	asSeller, err := h.svc.Get(ctx, seller2, order.ID)
	require.NoError(t, err)
	require.NotNil(t, asSeller.SellerTotal)
	assert.Equal(t, money.Pesos(700), *asSeller.SellerTotal)
	assert.Equal(t, 1, *asSeller.SellerItemCount)
	assert.Len(t, asSeller.SellerItems, 1)
	assert.Equal(t, []string{"s1", "s2"}, asSeller.SellerIDs)

	asAdmin, err := h.svc.Get(ctx, admin, order.ID)
	require.NoError(t, err)
	assert.Nil(t, asAdmin.SellerItems)
}

func TestListBuyerAndSeller(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		h.seed(t, createdAt(t0.Add(time.Duration(i)*time.Minute)))
	}

	page, err := h.svc.ListBuyer(ctx, buyer, buyer.UserID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Orders, 2)
	require.NotEmpty(t, page.NextCursor)
	assert.True(t, page.Orders[0].CreatedAt.After(page.Orders[1].CreatedAt))

	seen := map[uuid.UUID]bool{}
	cursor := ""
	for {
		p, err := h.svc.ListSeller(ctx, seller1, seller1.UserID, pagination.Params{Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		for _, o := range p.Orders {
			require.False(t, seen[o.ID], "order returned twice")
			seen[o.ID] = true
			require.NotNil(t, o.SellerTotal)
			assert.Equal(t, money.Pesos(300), *o.SellerTotal)
		}
		if p.NextCursor == "" {
			break
		}
		cursor = p.NextCursor
	}
	assert.Len(t, seen, 5)

	_, err = h.svc.ListBuyer(ctx, seller1, buyer.UserID, pagination.Params{})
	requireCode(t, err, pkgerrors.CodeNotFound)
	_, err = h.svc.ListSeller(ctx, seller1, "s2", pagination.Params{})
	requireCode(t, err, pkgerrors.CodeNotFound)
	_, err = h.svc.ListSeller(ctx, admin, "s2", pagination.Params{})
	require.NoError(t, err)
	_, err = h.svc.ListBuyer(ctx, buyer, buyer.UserID, pagination.Params{Cursor: "%%%"})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestSellerRevenueIsCached(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.seed(t)
	h.seed(t, withStatus(enums.OrderStatusCancelled))
	h.seed(t, withPayment(enums.PaymentMethodGCash, enums.PaymentStatusRefunded))
	h.seed(t, createdAt(t0.AddDate(0, -2, 0)))

	from := t0.Add(-24 * time.Hour)
	to := t0.Add(24 * time.Hour)
	report, err := h.svc.SellerRevenue(ctx, seller1, "s1", from, to)
	require.NoError(t, err)
	assert.Equal(t, 1, report.OrderCount)
	assert.Equal(t, money.Pesos(300), report.GrossSales)
	assert.Equal(t, 3, report.UnitsSold)

	h.seed(t, createdAt(t0.Add(time.Hour)))
	cached, err := h.svc.SellerRevenue(ctx, seller1, "s1", from, to)
	require.NoError(t, err)
	assert.Equal(t, 1, cached.OrderCount, "served from cache within ttl")

	h.clock.Advance(2 * time.Minute)
	fresh, err := h.svc.SellerRevenue(ctx, seller1, "s1", from, to)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.OrderCount)

	_, err = h.svc.SellerRevenue(ctx, seller2, "s1", from, to)
	requireCode(t, err, pkgerrors.CodeNotFound)
	_, err = h.svc.SellerRevenue(ctx, admin, "s1", to, from)
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestSellerRevenueDropsCacheWhenOrderStopsCounting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	order := h.seed(t)
	h.seed(t)
	from := t0.Add(-time.Hour)
	to := t0.Add(time.Hour)

	report, err := h.svc.SellerRevenue(ctx, seller2, "s2", from, to)
	require.NoError(t, err)
	require.Equal(t, 2, report.OrderCount)

	_, err = h.svc.Transition(ctx, TransitionInput{OrderID: order.ID, Actor: seller1, Status: "processing"})
	require.NoError(t, err)
	report, err = h.svc.SellerRevenue(ctx, seller2, "s2", from, to)
	require.NoError(t, err)
	assert.Equal(t, 2, report.OrderCount)

	_, err = h.svc.Transition(ctx, TransitionInput{OrderID: order.ID, Actor: seller1, Status: "cancelled"})
	require.NoError(t, err)
	report, err = h.svc.SellerRevenue(ctx, seller2, "s2", from, to)
	require.NoError(t, err)
	assert.Equal(t, 1, report.OrderCount, "every seller of the cancelled order is recomputed")
	assert.Equal(t, money.Pesos(700), report.GrossSales)
}

func TestHistoryListsAuditTrail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.seed(t)

	_, err := h.svc.Transition(ctx, TransitionInput{OrderID: order.ID, Actor: seller1, Status: "shipped"})
	require.NoError(t, err)
	h.clock.Advance(25 * time.Hour)
	_, err = h.svc.ForceTransition(ctx, TransitionInput{OrderID: order.ID, Actor: admin, Status: "delivered"})
	require.NoError(t, err)

	history, err := h.svc.History(ctx, admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, history.OrderID)
	require.Len(t, history.Changes, 3)
	assert.Equal(t, "shipped", history.Changes[0].To)
	assert.False(t, history.Changes[0].Forced)
	assert.Equal(t, seller1.UserID, history.Changes[0].ActorID)
	assert.Equal(t, "delivered", history.Changes[1].To)
	assert.True(t, history.Changes[1].Forced)
	assert.Equal(t, enums.StatusFieldPayment, history.Changes[2].Field)
	assert.Equal(t, enums.ActorRoleAdmin, history.Changes[2].ActorRole)

	_, err = h.svc.History(ctx, seller1, order.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)
	_, err = h.svc.History(ctx, admin, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestMissingIdentityIsUnauthorized(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Transition(context.Background(), TransitionInput{OrderID: uuid.New(), Status: "processing"})
	requireCode(t, err, pkgerrors.CodeUnauthorized)
}

// casRepo loses the version race a fixed number of times.
type casRepo struct {
	Repository
	order     models.Order
	conflicts int
	updates   int
	audits    int
}

func (r *casRepo) WithTx(*gorm.DB) Repository { return r }

func (r *casRepo) FindByID(context.Context, uuid.UUID) (*models.Order, error) {
	copy := r.order
	return &copy, nil
}

func (r *casRepo) UpdateIfVersion(_ context.Context, order *models.Order, expected int64) (bool, error) {
	r.updates++
	if r.updates <= r.conflicts {
		return false, nil
	}
	r.order = *order
	return true, nil
}

func (r *casRepo) InsertStatusChanges(_ context.Context, changes []models.StatusChange) error {
	r.audits += len(changes)
	return nil
}

type passthroughTx struct{}

func (passthroughTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type countingOutbox struct{ emitted int }

func (c *countingOutbox) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error {
	c.emitted++
	return nil
}

func newCASService(t *testing.T, repo *casRepo, reg *prometheus.Registry) (Service, *countingOutbox) {
	t.Helper()
	ob := &countingOutbox{}
	svc, err := NewService(Deps{
		Repo:    repo,
		Tx:      passthroughTx{},
		Outbox:  ob,
		Clock:   clock.NewManual(t0),
		Metrics: metrics.NewOrderMetrics(reg),
	})
	require.NoError(t, err)
	return svc, ob
}

func casOrder() models.Order {
	return models.Order{
		ID:            uuid.New(),
		BuyerID:       buyer.UserID,
		Items:         []models.OrderItem{{ProductID: "p1", SellerID: "s1", Quantity: 1, PriceCents: 100}},
		PaymentMethod: enums.PaymentMethodCOD,
		OrderStatus:   enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusUnpaid,
		Version:       7,
		CreatedAt:     t0,
	}
}

func TestWriteConflictRetriesThenSucceeds(t *testing.T) {
	repo := &casRepo{order: casOrder(), conflicts: 2}
	reg := prometheus.NewRegistry()
	svc, ob := newCASService(t, repo, reg)

	res, err := svc.Transition(context.Background(), TransitionInput{OrderID: repo.order.ID, Actor: seller1, Status: "processing"})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 3, repo.updates)
	assert.Equal(t, int64(8), repo.order.Version)
	assert.Equal(t, 1, repo.audits)
	assert.Equal(t, 1, ob.emitted)
}

func TestWriteConflictExhaustsAttempts(t *testing.T) {
	repo := &casRepo{order: casOrder(), conflicts: 10}
	reg := prometheus.NewRegistry()
	svc, ob := newCASService(t, repo, reg)

	_, err := svc.Transition(context.Background(), TransitionInput{OrderID: repo.order.ID, Actor: seller1, Status: "processing"})
	typed := requireCode(t, err, pkgerrors.CodeConflict)
	assert.True(t, typed.Retryable())
	assert.Equal(t, DefaultMaxWriteAttempts, repo.updates)
	assert.Zero(t, repo.audits)
	assert.Zero(t, ob.emitted)

	h := &harness{reg: reg}
	assert.Equal(t, float64(DefaultMaxWriteAttempts), h.counter(t, "order_write_conflicts_total", nil))
}

type slowRepo struct {
	Repository
}

func (r *slowRepo) WithTx(*gorm.DB) Repository { return r }

func (r *slowRepo) FindByID(ctx context.Context, _ uuid.UUID) (*models.Order, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestStoreTimeoutIsDependencyError(t *testing.T) {
	svc, err := NewService(Deps{
		Repo:         &slowRepo{},
		Tx:           passthroughTx{},
		Outbox:       &countingOutbox{},
		StoreTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), TransitionInput{OrderID: uuid.New(), Actor: seller1, Status: "processing"})
	typed := requireCode(t, err, pkgerrors.CodeDependency)
	assert.True(t, typed.Retryable())

	_, err = svc.Get(context.Background(), seller1, uuid.New())
	requireCode(t, err, pkgerrors.CodeDependency)
}
