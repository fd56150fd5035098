package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tindahan/marketplace-backend/internal/checkout/helpers"
	"github.com/tindahan/marketplace-backend/pkg/cache"
	"github.com/tindahan/marketplace-backend/pkg/clock"
	"github.com/tindahan/marketplace-backend/pkg/db/models"
	"github.com/tindahan/marketplace-backend/pkg/enums"
	pkgerrors "github.com/tindahan/marketplace-backend/pkg/errors"
	"github.com/tindahan/marketplace-backend/pkg/logger"
	"github.com/tindahan/marketplace-backend/pkg/metrics"
	"github.com/tindahan/marketplace-backend/pkg/outbox"
	"github.com/tindahan/marketplace-backend/pkg/outbox/payloads"
	"github.com/tindahan/marketplace-backend/pkg/pagination"
)

const (
	DefaultMaxWriteAttempts = 3
	DefaultStoreTimeout     = 5 * time.Second
)

var errWriteConflict = errors.New("order version changed")

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Actor is the caller identity taken from the request headers.
type Actor struct {
	UserID string
	Role   enums.ActorRole
}

func (a Actor) IsAdmin() bool {
	return a.Role == enums.ActorRoleAdmin
}

// Service owns every read and write of an order after checkout.
type Service interface {
	Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error)
	ListBuyer(ctx context.Context, actor Actor, buyerID string, params pagination.Params) (*OrderList, error)
	ListSeller(ctx context.Context, actor Actor, sellerID string, params pagination.Params) (*OrderList, error)
	SellerRevenue(ctx context.Context, actor Actor, sellerID string, from, to time.Time) (*RevenueReport, error)
	History(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderHistory, error)
	Transition(ctx context.Context, input TransitionInput) (*TransitionResult, error)
	PaymentTransition(ctx context.Context, input PaymentTransitionInput) (*TransitionResult, error)
	UploadReceipt(ctx context.Context, input ReceiptInput) (*TransitionResult, error)
	ForceTransition(ctx context.Context, input TransitionInput) (*TransitionResult, error)
	ForcePaymentTransition(ctx context.Context, input PaymentTransitionInput) (*TransitionResult, error)
}

type TransitionInput struct {
	OrderID uuid.UUID
	Actor   Actor
	Status  string
}

type PaymentTransitionInput struct {
	OrderID       uuid.UUID
	Actor         Actor
	PaymentStatus string
}

type ReceiptInput struct {
	OrderID         uuid.UUID
	Actor           Actor
	ReceiptImageURL string
}

// Deps carries the collaborators of the orders service. Clock, Lock, limits,
// cache, metrics and logger fall back to defaults when unset.
type Deps struct {
	Repo             Repository
	Tx               txRunner
	Outbox           outboxPublisher
	Clock            clock.Clock
	Lock             LockPolicy
	MaxWriteAttempts int
	StoreTimeout     time.Duration
	RevenueCache     *cache.Cache[RevenueReport]
	Metrics          *metrics.OrderMetrics
	Logger           *logger.Logger
}

type service struct {
	repo         Repository
	tx           txRunner
	outbox       outboxPublisher
	clock        clock.Clock
	lock         LockPolicy
	maxAttempts  int
	storeTimeout time.Duration
	revenue      *cache.Cache[RevenueReport]
	metrics      *metrics.OrderMetrics
	logg         *logger.Logger
}

// NewService builds the orders service with the required dependencies.
func NewService(deps Deps) (Service, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if deps.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.MaxWriteAttempts <= 0 {
		deps.MaxWriteAttempts = DefaultMaxWriteAttempts
	}
	if deps.StoreTimeout <= 0 {
		deps.StoreTimeout = DefaultStoreTimeout
	}
	return &service{
		repo:         deps.Repo,
		tx:           deps.Tx,
		outbox:       deps.Outbox,
		clock:        deps.Clock,
		lock:         NewLockPolicy(deps.Lock.Window()),
		maxAttempts:  deps.MaxWriteAttempts,
		storeTimeout: deps.StoreTimeout,
		revenue:      deps.RevenueCache,
		metrics:      deps.Metrics,
		logg:         deps.Logger,
	}, nil
}

// relation is what the actor is to one order.
type relation struct {
	admin  bool
	buyer  bool
	seller bool
}

func relationOf(order *models.Order, actor Actor) relation {
	return relation{
		admin:  actor.IsAdmin(),
		buyer:  order.BuyerID == actor.UserID,
		seller: order.HasSeller(actor.UserID),
	}
}

func (r relation) any() bool {
	return r.admin || r.buyer || r.seller
}

func errOrderNotFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (s *service) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

// storeError keeps typed errors and maps store failures to NOT_FOUND,
// DEPENDENCY_ERROR or, for integrity violations, INTERNAL_ERROR.
func storeError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errOrderNotFound()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg+": store timeout")
	}
	return pkgerrors.Wrap(pkgerrors.StoreFailureCode(err), err, msg)
}

func (s *service) viewFor(order models.Order, actor Actor) OrderDTO {
	lock := s.lock.State(order.CreatedAt, s.clock.Now())
	rel := relationOf(&order, actor)
	if rel.seller && !rel.buyer && !rel.admin {
		return ToSellerOrderDTO(order, actor.UserID, lock)
	}
	return ToOrderDTO(order, lock)
}

func (s *service) Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, storeError(err, "load order")
	}
	if !relationOf(order, actor).any() {
		return nil, errOrderNotFound()
	}
	dto := s.viewFor(*order, actor)
	return &dto, nil
}

func (s *service) ListBuyer(ctx context.Context, actor Actor, buyerID string, params pagination.Params) (*OrderList, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if buyerID != actor.UserID && !actor.IsAdmin() {
		return nil, errOrderNotFound()
	}
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	rows, next, err := s.repo.ListByBuyer(ctx, buyerID, params)
	if err != nil {
		return nil, listError(err)
	}
	now := s.clock.Now()
	list := &OrderList{Orders: make([]OrderDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		list.Orders = append(list.Orders, ToOrderDTO(row, s.lock.State(row.CreatedAt, now)))
	}
	return list, nil
}

func (s *service) ListSeller(ctx context.Context, actor Actor, sellerID string, params pagination.Params) (*OrderList, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if sellerID != actor.UserID && !actor.IsAdmin() {
		return nil, errOrderNotFound()
	}
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	rows, next, err := s.repo.ListBySeller(ctx, sellerID, params)
	if err != nil {
		return nil, listError(err)
	}
	now := s.clock.Now()
	list := &OrderList{Orders: make([]OrderDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		list.Orders = append(list.Orders, ToSellerOrderDTO(row, sellerID, s.lock.State(row.CreatedAt, now)))
	}
	return list, nil
}

func listError(err error) error {
	if strings.Contains(err.Error(), "cursor") {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	return storeError(err, "list orders")
}

func (s *service) SellerRevenue(ctx context.Context, actor Actor, sellerID string, from, to time.Time) (*RevenueReport, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if sellerID != actor.UserID && !actor.IsAdmin() {
		return nil, errOrderNotFound()
	}
	if !from.Before(to) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from must be before to").
			WithDetails(map[string]any{"from": from, "to": to})
	}

	key := fmt.Sprintf("%d:%d", from.UnixNano(), to.UnixNano())
	report, err := s.revenue.GetOrLoadScoped(ctx, revenueScope(sellerID), key, func(ctx context.Context) (RevenueReport, error) {
		ctx, cancel := s.storeContext(ctx)
		defer cancel()
		rows, err := s.repo.ListSellerOrdersBetween(ctx, sellerID, from, to)
		if err != nil {
			return RevenueReport{}, storeError(err, "load seller orders")
		}
		return BuildRevenueReport(sellerID, from, to, rows), nil
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func revenueScope(sellerID string) string {
	return "revenue:" + sellerID
}

// invalidateRevenue drops the cached reports of every seller in the order.
// Failures only leave reports stale until their ttl runs out.
func (s *service) invalidateRevenue(ctx context.Context, order *models.Order) {
	for _, sellerID := range order.SellerIDs() {
		if err := s.revenue.Invalidate(ctx, revenueScope(sellerID)); err != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"seller_id": sellerID, "error": err.Error()}), "order.revenue_invalidate_failed")
		}
	}
}

// History returns the order's status audit trail, oldest first. Admin only.
func (s *service) History(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderHistory, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	if _, err := s.repo.FindByID(ctx, orderID); err != nil {
		return nil, storeError(err, "load order")
	}
	rows, err := s.repo.ListStatusChanges(ctx, orderID)
	if err != nil {
		return nil, storeError(err, "load status changes")
	}
	history := toHistory(orderID, rows)
	return &history, nil
}

func requireActor(actor Actor) error {
	if strings.TrimSpace(actor.UserID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return nil
}

// change is one status field move applied in memory, pending persistence.
type change struct {
	field enums.StatusField
	from  string
	to    string
}

// mutateFn validates the request against the loaded order and applies it in place.
// No changes means the request is a no-op and nothing is written.
type mutateFn func(order *models.Order, now time.Time) ([]change, error)

func (s *service) Transition(ctx context.Context, input TransitionInput) (*TransitionResult, error) {
	return s.runTransition(ctx, input, false)
}

func (s *service) ForceTransition(ctx context.Context, input TransitionInput) (*TransitionResult, error) {
	if !input.Actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return s.runTransition(ctx, input, true)
}

func (s *service) runTransition(ctx context.Context, input TransitionInput, forced bool) (*TransitionResult, error) {
	if err := requireActor(input.Actor); err != nil {
		return nil, err
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	apply := func(order *models.Order, now time.Time) ([]change, error) {
		rel := relationOf(order, input.Actor)
		if !rel.any() {
			return nil, errOrderNotFound()
		}
		target, err := enums.ParseOrderStatus(strings.TrimSpace(input.Status))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status").
				WithDetails(map[string]string{"status": "must be one of pending, processing, shipped, delivered, cancelled"})
		}
		if order.OrderStatus == target {
			return nil, nil
		}
		if !rel.admin && !rel.seller {
			if target != enums.OrderStatusCancelled || order.OrderStatus != enums.OrderStatusPending {
				return nil, pkgerrors.New(pkgerrors.CodeForbidden, "buyers may only cancel pending orders")
			}
		}
		if !forced {
			if err := s.lock.Guard(order.CreatedAt, now); err != nil {
				return nil, err
			}
		}
		if err := checkOrderTransition(order.OrderStatus, target); err != nil {
			return nil, err
		}

		changes := []change{{field: enums.StatusFieldOrder, from: string(order.OrderStatus), to: string(target)}}
		order.OrderStatus = target
		if target == enums.OrderStatusDelivered &&
			order.PaymentMethod == enums.PaymentMethodCOD &&
			order.PaymentStatus == enums.PaymentStatusUnpaid {
			changes = append(changes, change{
				field: enums.StatusFieldPayment,
				from:  string(order.PaymentStatus),
				to:    string(enums.PaymentStatusPaid),
			})
			order.PaymentStatus = enums.PaymentStatusPaid
		}
		return changes, nil
	}

	order, changes, err := s.mutate(ctx, input.OrderID, input.Actor, forced, enums.StatusFieldOrder, apply)
	if err != nil {
		return nil, err
	}
	return s.result(*order, input.Actor, enums.StatusFieldOrder, string(order.OrderStatus), changes), nil
}

func (s *service) PaymentTransition(ctx context.Context, input PaymentTransitionInput) (*TransitionResult, error) {
	return s.runPaymentTransition(ctx, input, false)
}

func (s *service) ForcePaymentTransition(ctx context.Context, input PaymentTransitionInput) (*TransitionResult, error) {
	if !input.Actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return s.runPaymentTransition(ctx, input, true)
}

func (s *service) runPaymentTransition(ctx context.Context, input PaymentTransitionInput, forced bool) (*TransitionResult, error) {
	if err := requireActor(input.Actor); err != nil {
		return nil, err
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	apply := func(order *models.Order, now time.Time) ([]change, error) {
		rel := relationOf(order, input.Actor)
		if !rel.any() {
			return nil, errOrderNotFound()
		}
		target, err := enums.ParsePaymentStatus(strings.TrimSpace(input.PaymentStatus))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment status").
				WithDetails(map[string]string{"paymentStatus": "must be one of unpaid, pending_verification, paid, refunded"})
		}
		if !rel.admin && !rel.seller {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only sellers or admins review payments")
		}
		if order.PaymentMethod == enums.PaymentMethodCOD {
			refund := rel.admin &&
				order.PaymentStatus == enums.PaymentStatusPaid &&
				target == enums.PaymentStatusRefunded
			if !refund {
				return nil, nil
			}
		}
		if order.PaymentStatus == target {
			return nil, nil
		}
		if !forced {
			if err := s.lock.Guard(order.CreatedAt, now); err != nil {
				return nil, err
			}
		}
		if err := checkPaymentTransition(order.PaymentStatus, target); err != nil {
			return nil, err
		}
		switch {
		case target == enums.PaymentStatusRefunded && !rel.admin:
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins issue refunds")
		case target == enums.PaymentStatusPendingVerification && !forced:
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "receipt upload by the buyer is required")
		}

		changes := []change{{field: enums.StatusFieldPayment, from: string(order.PaymentStatus), to: string(target)}}
		order.PaymentStatus = target
		if target == enums.PaymentStatusPaid && order.OrderStatus == enums.OrderStatusPending {
			changes = append(changes, change{
				field: enums.StatusFieldOrder,
				from:  string(order.OrderStatus),
				to:    string(enums.OrderStatusProcessing),
			})
			order.OrderStatus = enums.OrderStatusProcessing
		}
		return changes, nil
	}

	order, changes, err := s.mutate(ctx, input.OrderID, input.Actor, forced, enums.StatusFieldPayment, apply)
	if err != nil {
		return nil, err
	}
	return s.result(*order, input.Actor, enums.StatusFieldPayment, string(order.PaymentStatus), changes), nil
}

func (s *service) UploadReceipt(ctx context.Context, input ReceiptInput) (*TransitionResult, error) {
	if err := requireActor(input.Actor); err != nil {
		return nil, err
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	receiptURL := strings.TrimSpace(input.ReceiptImageURL)
	if err := helpers.ValidateReceiptURL(receiptURL); err != nil {
		return nil, err
	}

	apply := func(order *models.Order, now time.Time) ([]change, error) {
		rel := relationOf(order, input.Actor)
		if !rel.any() {
			return nil, errOrderNotFound()
		}
		if !rel.buyer {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer uploads a receipt")
		}
		if !order.PaymentMethod.RequiresVerification() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "receipts are only accepted for gcash orders").
				WithDetails(map[string]string{"paymentMethod": string(order.PaymentMethod)})
		}
		switch order.PaymentStatus {
		case enums.PaymentStatusPendingVerification:
			if order.ReceiptImageURL != nil && *order.ReceiptImageURL == receiptURL {
				return nil, nil
			}
		case enums.PaymentStatusUnpaid:
		default:
			return nil, checkPaymentTransition(order.PaymentStatus, enums.PaymentStatusPendingVerification)
		}
		if err := s.lock.Guard(order.CreatedAt, now); err != nil {
			return nil, err
		}

		changes := []change{{
			field: enums.StatusFieldPayment,
			from:  string(order.PaymentStatus),
			to:    string(enums.PaymentStatusPendingVerification),
		}}
		order.PaymentStatus = enums.PaymentStatusPendingVerification
		order.ReceiptImageURL = &receiptURL
		return changes, nil
	}

	order, changes, err := s.mutate(ctx, input.OrderID, input.Actor, false, enums.StatusFieldPayment, apply)
	if err != nil {
		return nil, err
	}
	return s.result(*order, input.Actor, enums.StatusFieldPayment, string(order.PaymentStatus), changes), nil
}

func (s *service) result(order models.Order, actor Actor, field enums.StatusField, current string, changes []change) *TransitionResult {
	res := &TransitionResult{
		Field:    field,
		Previous: current,
		Current:  current,
		Changed:  len(changes) > 0,
		Order:    s.viewFor(order, actor),
	}
	for _, c := range changes {
		if c.field == field {
			res.Previous = c.from
			break
		}
	}
	return res
}

// mutate runs read, apply and compare-and-swap in one transaction, retrying when
// another writer bumped the version in between.
func (s *service) mutate(ctx context.Context, orderID uuid.UUID, actor Actor, forced bool, field enums.StatusField, apply mutateFn) (*models.Order, []change, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()
	if s.logg != nil {
		ctx = s.logg.WithOrderID(ctx, orderID.String())
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		var (
			result   *models.Order
			changes  []change
			conflict bool
			counted  bool
		)
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			order, err := repo.FindByID(ctx, orderID)
			if err != nil {
				return storeError(err, "load order")
			}

			counted = countsTowardRevenue(*order)
			now := s.clock.Now()
			changes, err = apply(order, now)
			if err != nil {
				return err
			}
			if len(changes) == 0 {
				result = order
				return nil
			}

			expected := order.Version
			order.Version = expected + 1
			order.UpdatedAt = now
			ok, err := repo.UpdateIfVersion(ctx, order, expected)
			if err != nil {
				return storeError(err, "update order")
			}
			if !ok {
				conflict = true
				return errWriteConflict
			}

			if err := repo.InsertStatusChanges(ctx, auditRows(order.ID, actor, forced, changes, now)); err != nil {
				return storeError(err, "record status change")
			}
			if err := s.emitChanges(ctx, tx, order, actor, forced, changes, now); err != nil {
				return storeError(err, "queue order event")
			}
			result = order
			return nil
		})
		// serialization failures and deadlocks are retried like a lost CAS
		if conflict || pkgerrors.IsTransientStoreError(err) {
			s.metrics.IncWriteConflict()
			if s.logg != nil {
				s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt), "order.write_conflict")
			}
			continue
		}
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeLocked) {
				s.metrics.IncLockRejection(string(field))
				if s.logg != nil {
					s.logg.Warn(s.logg.WithField(ctx, "field", field), "order.lock_rejected")
				}
			}
			return nil, nil, storeError(err, "commit order update")
		}
		s.recordChanges(ctx, actor, forced, changes)
		if len(changes) > 0 && counted != countsTowardRevenue(*result) {
			s.invalidateRevenue(ctx, result)
		}
		return result, changes, nil
	}

	return nil, nil, pkgerrors.New(pkgerrors.CodeConflict, "order was modified concurrently; retry the request").
		WithDetails(map[string]any{"attempts": s.maxAttempts})
}

func auditRows(orderID uuid.UUID, actor Actor, forced bool, changes []change, now time.Time) []models.StatusChange {
	rows := make([]models.StatusChange, 0, len(changes))
	for _, c := range changes {
		rows = append(rows, models.StatusChange{
			ID:        uuid.New(),
			OrderID:   orderID,
			Field:     c.field,
			FromValue: c.from,
			ToValue:   c.to,
			ActorID:   actor.UserID,
			ActorRole: actor.Role,
			Forced:    forced,
			CreatedAt: now,
		})
	}
	return rows
}

func (s *service) emitChanges(ctx context.Context, tx *gorm.DB, order *models.Order, actor Actor, forced bool, changes []change, now time.Time) error {
	actorRef := &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)}
	sellers := order.SellerIDs()
	for _, c := range changes {
		event := outbox.DomainEvent{
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actorRef,
			OccurredAt:    now,
		}
		switch c.field {
		case enums.StatusFieldOrder:
			event.EventType = enums.EventOrderStatusChanged
			event.Data = payloads.OrderStatusChangedEvent{
				OrderID:   order.ID,
				BuyerID:   order.BuyerID,
				SellerIDs: sellers,
				Previous:  enums.OrderStatus(c.from),
				Current:   enums.OrderStatus(c.to),
				Forced:    forced,
				ChangedAt: now,
			}
		case enums.StatusFieldPayment:
			event.EventType = enums.EventOrderPaymentStatusChanged
			event.Data = payloads.OrderPaymentStatusChangedEvent{
				OrderID:         order.ID,
				BuyerID:         order.BuyerID,
				SellerIDs:       sellers,
				Previous:        enums.PaymentStatus(c.from),
				Current:         enums.PaymentStatus(c.to),
				ReceiptImageURL: order.ReceiptImageURL,
				Forced:          forced,
				ChangedAt:       now,
			}
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) recordChanges(ctx context.Context, actor Actor, forced bool, changes []change) {
	for _, c := range changes {
		s.metrics.IncTransition(string(c.field), c.to, forced)
		if s.logg == nil {
			continue
		}
		msg := "order.status_changed"
		if c.field == enums.StatusFieldPayment {
			msg = "order.payment_status_changed"
		}
		fields := map[string]any{
			"from":       c.from,
			"to":         c.to,
			"forced":     forced,
			"user_id":    actor.UserID,
			"actor_role": actor.Role,
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), msg)
	}
}
