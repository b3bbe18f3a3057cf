package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/plantshop/internal/domain/ident"
	"github.com/xenking/plantshop/internal/domain/product"
)

// Listing limits for seller order pages.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// DisplayItem is an order item decorated with the product as it is now.
// Price stays the purchase-time snapshot; CurrentPrice is the live price and
// is nil when the product no longer exists.
type DisplayItem struct {
	Item
	Title        string
	Thumbnail    string
	CurrentPrice *decimal.Decimal
}

// View is an order prepared for presentation.
type View struct {
	Order
	Display []DisplayItem
}

// ListQuery is the raw paging input of a seller order listing.
type ListQuery struct {
	Page   int
	Limit  int
	Status string
	Sort   string
}

// SellerPage is one page of a seller's orders.
type SellerPage struct {
	Orders      []View
	TotalOrders int
	CurrentPage int
	TotalPages  int
}

// Get returns a stored order without display decoration.
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	if err := ident.Check("order", orderID); err != nil {
		return nil, err
	}
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}

// ListByBuyer returns every order of a buyer, newest first. Items of products
// that no longer exist keep their snapshot with no display fields.
func (s *Service) ListByBuyer(ctx context.Context, buyerID string) ([]View, error) {
	if err := ident.Check("user", buyerID); err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, buyerID); err != nil {
		return nil, errors.Wrap(err, "get buyer")
	}
	orders, err := s.orders.ListByUser(ctx, buyerID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return s.decorate(ctx, orders, true)
}

// ListBySeller returns a page of a seller's orders. Items of products that no
// longer exist are dropped from the page; order totals are left as stored.
func (s *Service) ListBySeller(ctx context.Context, sellerID string, q ListQuery) (*SellerPage, error) {
	if err := ident.Check("seller", sellerID); err != nil {
		return nil, err
	}
	f, page, err := q.filter(sellerID)
	if err != nil {
		return nil, err
	}
	if _, err := s.sellers.GetByID(ctx, sellerID); err != nil {
		return nil, errors.Wrap(err, "get seller")
	}

	var (
		total  int
		orders []Order
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.orders.CountBySeller(gctx, f)
		if err != nil {
			return errors.Wrap(err, "count orders")
		}
		total = n
		return nil
	})
	g.Go(func() error {
		list, err := s.orders.ListBySeller(gctx, f)
		if err != nil {
			return errors.Wrap(err, "list orders")
		}
		orders = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	views, err := s.decorate(ctx, orders, false)
	if err != nil {
		return nil, err
	}
	return &SellerPage{
		Orders:      views,
		TotalOrders: total,
		CurrentPage: page,
		TotalPages:  (total + f.Limit - 1) / f.Limit,
	}, nil
}

// ListByDateRange returns every order created within [from, to], newest
// first.
func (s *Service) ListByDateRange(ctx context.Context, from, to time.Time) ([]View, error) {
	if from.After(to) {
		return nil, ErrInvalidDateRange
	}
	orders, err := s.orders.ListByDateRange(ctx, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return s.decorate(ctx, orders, true)
}

func (q ListQuery) filter(sellerID string) (SellerFilter, int, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	switch {
	case limit < 1:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	f := SellerFilter{
		SellerID: sellerID,
		Sort:     SortNewest,
		Offset:   (page - 1) * limit,
		Limit:    limit,
	}
	if q.Status != "" {
		st, err := ParseStatus(q.Status)
		if err != nil {
			return f, 0, err
		}
		f.Status = st
	}
	switch Sort(q.Sort) {
	case "":
	case SortNewest, SortOldest, SortUpdated:
		f.Sort = Sort(q.Sort)
	default:
		return f, 0, &InvalidSortError{Sort: q.Sort}
	}
	return f, page, nil
}

// decorate attaches current product data to order items. With keepMissing
// unset, items whose product is gone are left out of Display.
func (s *Service) decorate(ctx context.Context, orders []Order, keepMissing bool) ([]View, error) {
	var ids []string
	for _, o := range orders {
		for _, it := range o.Items {
			ids = append(ids, it.ProductID)
		}
	}
	byID, err := product.Index(ctx, s.products, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}

	views := make([]View, 0, len(orders))
	for _, o := range orders {
		v := View{Order: o, Display: make([]DisplayItem, 0, len(o.Items))}
		for _, it := range o.Items {
			p, ok := byID[it.ProductID]
			if !ok {
				if keepMissing {
					v.Display = append(v.Display, DisplayItem{Item: it})
				}
				continue
			}
			price := p.Price
			v.Display = append(v.Display, DisplayItem{
				Item:         it,
				Title:        p.Title,
				Thumbnail:    p.Thumbnail,
				CurrentPrice: &price,
			})
		}
		views = append(views, v)
	}
	return views, nil
}
