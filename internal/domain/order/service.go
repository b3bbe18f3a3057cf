package order

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/plantshop/internal/domain/ident"
	"github.com/xenking/plantshop/internal/domain/product"
	"github.com/xenking/plantshop/internal/domain/seller"
	"github.com/xenking/plantshop/internal/domain/user"
)

// Line is one checkout line: a product bought from a seller.
type Line struct {
	SellerID  string
	ProductID string
	Quantity  int
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	BuyerID         string
	Lines           []Line
	ShippingAddress json.RawMessage
	// IdempotencyKey is optional. A repeated key for the same buyer is
	// rejected with ErrDuplicateCheckout.
	IdempotencyKey string
}

// Service encapsulates order placement, status updates and order reads.
type Service struct {
	products product.Repository
	users    user.Repository
	sellers  seller.Repository
	orders   Repository

	locker      Locker
	idempotency IdempotencyStore
	now         func() time.Time

	tracer         trace.Tracer
	ordersCreated  metric.Int64Counter
	checkoutFailed metric.Int64Counter
}

// Option configures a Service.
type Option func(*options)

type options struct {
	locker         Locker
	idempotency    IdempotencyStore
	now            func() time.Time
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithLocker sets the per-buyer checkout lock. Defaults to a LocalLocker.
func WithLocker(l Locker) Option {
	return func(o *options) { o.locker = l }
}

// WithIdempotency enables idempotency keys backed by s.
func WithIdempotency(s IdempotencyStore) Option {
	return func(o *options) { o.idempotency = s }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithTracerProvider sets the tracer provider. Defaults to noop.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider. Defaults to noop.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products product.Repository,
	users user.Repository,
	sellers seller.Repository,
	orders Repository,
	opts ...Option,
) (*Service, error) {
	o := options{
		now:            time.Now,
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.locker == nil {
		o.locker = NewLocalLocker()
	}

	meter := o.meterProvider.Meter("github.com/xenking/plantshop/internal/domain/order")
	created, err := meter.Int64Counter("orders.created",
		metric.WithDescription("Orders created by checkout"))
	if err != nil {
		return nil, errors.Wrap(err, "orders.created counter")
	}
	failed, err := meter.Int64Counter("checkouts.failed",
		metric.WithDescription("Checkouts that returned an error"))
	if err != nil {
		return nil, errors.Wrap(err, "checkouts.failed counter")
	}

	return &Service{
		products:       products,
		users:          users,
		sellers:        sellers,
		orders:         orders,
		locker:         o.locker,
		idempotency:    o.idempotency,
		now:            o.now,
		tracer:         o.tracerProvider.Tracer("github.com/xenking/plantshop/internal/domain/order"),
		ordersCreated:  created,
		checkoutFailed: failed,
	}, nil
}

// PlaceOrder splits the checkout lines into one order per seller, persists
// them and clears the buyer's cart. Orders are returned in the order their
// sellers first appear in req.Lines.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (_ []*Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder",
		trace.WithAttributes(
			attribute.String("buyer.id", req.BuyerID),
			attribute.Int("lines", len(req.Lines)),
		),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
			s.checkoutFailed.Add(ctx, 1)
		}
		span.End()
	}()

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	buyer, err := s.users.GetByID(ctx, req.BuyerID)
	if err != nil {
		return nil, errors.Wrap(err, "get buyer")
	}
	if err := s.checkProducts(ctx, req.Lines); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, buyer.ID)
	if err != nil {
		return nil, errors.Wrap(err, "lock checkout")
	}
	defer unlock()

	if s.idempotency != nil && req.IdempotencyKey != "" {
		fresh, err := s.idempotency.Claim(ctx, buyer.ID, req.IdempotencyKey)
		if err != nil {
			return nil, errors.Wrap(err, "claim idempotency key")
		}
		if !fresh {
			return nil, ErrDuplicateCheckout
		}
		defer func() {
			var partial *PartialPersistenceError
			if rerr == nil || errors.As(rerr, &partial) {
				return
			}
			// Nothing was written, so the key may be retried.
			if err := s.idempotency.Forget(context.WithoutCancel(ctx), buyer.ID, req.IdempotencyKey); err != nil {
				zctx.From(ctx).Warn("Forget idempotency key", zap.Error(err))
			}
		}()
	}

	orders, err := s.buildOrders(ctx, buyer.ID, req)
	if err != nil {
		return nil, err
	}

	if err := s.persist(ctx, buyer, orders); err != nil {
		return nil, err
	}

	s.ordersCreated.Add(ctx, int64(len(orders)))
	zctx.From(ctx).Info("Checkout placed",
		zap.String("buyer_id", buyer.ID),
		zap.Int("orders", len(orders)),
	)
	return orders, nil
}

func validateRequest(req PlaceOrderRequest) error {
	if len(req.Lines) == 0 {
		return ErrEmptyItems
	}
	if !validShippingAddress(req.ShippingAddress) {
		return ErrMissingShippingAddress
	}
	for _, l := range req.Lines {
		if err := ident.Check("seller", l.SellerID); err != nil {
			return err
		}
		if l.Quantity <= 0 || l.Quantity > MaxQuantity {
			return &InvalidQuantityError{ProductID: l.ProductID}
		}
	}
	return nil
}

// checkProducts resolves every product in one batch so that a missing or
// mismatched product fails the checkout before anything is locked or written.
func (s *Service) checkProducts(ctx context.Context, lines []Line) error {
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	byID, err := product.Index(ctx, s.products, ids)
	if err != nil {
		return errors.Wrap(err, "get products")
	}
	for _, l := range lines {
		p, ok := byID[l.ProductID]
		if !ok {
			return &ProductNotFoundError{ProductID: l.ProductID}
		}
		if p.SellerID != l.SellerID {
			return &SellerMismatchError{ProductID: l.ProductID, SellerID: l.SellerID}
		}
	}
	return nil
}

// buildOrders groups lines by seller in first-appearance order and prices
// every line against the product as it is now.
func (s *Service) buildOrders(ctx context.Context, buyerID string, req PlaceOrderRequest) ([]*Order, error) {
	var (
		sellerOrder []string
		groups      = make(map[string][]Line)
	)
	for _, l := range req.Lines {
		if _, ok := groups[l.SellerID]; !ok {
			sellerOrder = append(sellerOrder, l.SellerID)
		}
		groups[l.SellerID] = append(groups[l.SellerID], l)
	}

	now := s.now().UTC()
	orders := make([]*Order, 0, len(sellerOrder))
	for _, sellerID := range sellerOrder {
		o := &Order{
			ID:              ident.New(),
			UserID:          buyerID,
			SellerID:        sellerID,
			Items:           make([]Item, 0, len(groups[sellerID])),
			TotalAmount:     decimal.Zero,
			Status:          StatusPending,
			ShippingAddress: req.ShippingAddress,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		for _, l := range groups[sellerID] {
			p, err := s.products.GetByID(ctx, l.ProductID)
			if errors.Is(err, product.ErrNotFound) {
				return nil, &ProductNotFoundError{ProductID: l.ProductID}
			}
			if err != nil {
				return nil, errors.Wrapf(err, "get product %s", l.ProductID)
			}
			if p.SellerID != sellerID {
				return nil, &SellerMismatchError{ProductID: l.ProductID, SellerID: sellerID}
			}
			o.Items = append(o.Items, Item{
				ProductID: p.ID,
				Quantity:  l.Quantity,
				Price:     p.Price,
			})
		}
		o.Recompute()
		orders = append(orders, o)
	}
	return orders, nil
}

// Recompute derives the order totals from its items.
func (o *Order) Recompute() {
	total := decimal.Zero
	count := 0
	for _, it := range o.Items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		count += it.Quantity
	}
	o.TotalAmount = total
	o.TotalItems = count
}

// persist writes orders and clears the buyer's cart in one transaction when
// the repository is a CheckoutCommitter. The sequential path is the fallback
// for stores without transactions and reports PartialPersistenceError once
// any order has been written.
func (s *Service) persist(ctx context.Context, buyer *user.User, orders []*Order) error {
	if tx, ok := s.orders.(CheckoutCommitter); ok {
		if err := tx.CommitCheckout(ctx, buyer.ID, buyer.CartVersion, orders); err != nil {
			return errors.Wrap(err, "commit checkout")
		}
		return nil
	}

	created := make([]string, 0, len(orders))
	for _, o := range orders {
		if err := s.orders.Create(ctx, o); err != nil {
			err = errors.Wrapf(err, "create order for seller %s", o.SellerID)
			if len(created) == 0 {
				return err
			}
			return &PartialPersistenceError{Created: created, Err: err}
		}
		created = append(created, o.ID)
	}

	if err := s.users.ClearCart(ctx, buyer.ID, buyer.CartVersion); err != nil {
		return &PartialPersistenceError{Created: created, Err: errors.Wrap(err, "clear cart")}
	}
	return nil
}

// UpdateStatus overwrites the status of an order. Any known status may
// replace any other.
func (s *Service) UpdateStatus(ctx context.Context, orderID, status string) (*Order, error) {
	if err := ident.Check("order", orderID); err != nil {
		return nil, err
	}
	st, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	o, err := s.orders.UpdateStatus(ctx, orderID, st, s.now().UTC())
	if err != nil {
		return nil, errors.Wrap(err, "update status")
	}
	return o, nil
}
