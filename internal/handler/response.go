package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/plantshop/internal/domain/auth"
	"github.com/xenking/plantshop/internal/domain/cart"
	"github.com/xenking/plantshop/internal/domain/ident"
	"github.com/xenking/plantshop/internal/domain/order"
	"github.com/xenking/plantshop/internal/domain/product"
	"github.com/xenking/plantshop/internal/domain/seller"
	"github.com/xenking/plantshop/internal/domain/user"
	"github.com/xenking/plantshop/internal/domain/wishlist"
	"github.com/xenking/plantshop/pkg/httpmiddleware"
)

const maxBodyBytes = 1 << 20

// badRequestError is a malformed request detected by the handler itself.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(msg string) error { return &badRequestError{msg: msg} }

// field is one top-level member of a success envelope.
type field struct {
	key   string
	value any
}

// writeOK writes {"success":true, ...fields}.
func (h *Handler) writeOK(w http.ResponseWriter, r *http.Request, status int, fields ...field) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(true)
	for _, f := range fields {
		b, err := json.Marshal(f.value)
		if err != nil {
			h.fail(w, r, errors.Wrapf(err, "encode %s", f.key))
			return
		}
		e.FieldStart(f.key)
		e.Raw(b)
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// decode reads a JSON request body into v.
func decode(r *http.Request, v any) error {
	d := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := d.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body required")
		}
		return badRequest("invalid JSON body")
	}
	return nil
}

// fail maps err to an HTTP status and writes the error envelope. Unexpected
// errors are logged and reported without detail.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var partial *order.PartialPersistenceError
	if errors.As(err, &partial) {
		zctx.From(r.Context()).Error("Checkout partially persisted",
			zap.Strings("created_order_ids", partial.Created),
			zap.Error(partial.Err),
		)
		writePartial(w, partial)
		return
	}

	status, cause := classify(err)
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		httpmiddleware.WriteError(w, status, "internal server error")
		return
	}
	httpmiddleware.WriteError(w, status, cause.Error())
}

func writePartial(w http.ResponseWriter, err *order.PartialPersistenceError) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("success", func(e *jx.Encoder) { e.Bool(false) })
		e.Field("message", func(e *jx.Encoder) { e.Str(err.Error()) })
		e.Field("createdOrderIds", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, id := range err.Created {
					e.Str(id)
				}
			})
		})
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write(e.Bytes())
}

// errClass maps a group of domain errors to one HTTP status.
type errClass struct {
	status    int
	sentinels []error
	typed     []func(error) error
}

var errClasses = []errClass{
	{
		status:    http.StatusUnauthorized,
		sentinels: []error{auth.ErrUnauthorized},
	},
	{
		status:    http.StatusForbidden,
		sentinels: []error{errForbidden, product.ErrSellerNotApproved, product.ErrNotOwner},
	},
	{
		status: http.StatusNotFound,
		sentinels: []error{
			order.ErrNotFound, product.ErrNotFound, user.ErrNotFound, seller.ErrNotFound,
			cart.ErrNotInCart, wishlist.ErrNotListed,
		},
		typed: []func(error) error{as[*order.ProductNotFoundError]},
	},
	{
		status: http.StatusConflict,
		sentinels: []error{
			user.ErrCartChanged, order.ErrCheckoutInProgress, order.ErrDuplicateCheckout,
			wishlist.ErrAlreadyListed,
		},
	},
	{
		status: http.StatusBadRequest,
		sentinels: []error{
			order.ErrEmptyItems, order.ErrMissingShippingAddress, order.ErrInvalidDateRange,
			product.ErrNegativePrice, product.ErrNegativeStock,
		},
		typed: []func(error) error{
			as[*badRequestError],
			as[*ident.InvalidError],
			as[*order.InvalidQuantityError],
			as[*order.SellerMismatchError],
			as[*order.InvalidStatusError],
			as[*order.InvalidSortError],
			as[*cart.InvalidActionError],
			as[*product.InvalidCategoryError],
			as[*product.MissingFieldError],
		},
	},
}

// as returns the first error in err's chain of type T, or nil.
func as[T error](err error) error {
	var target T
	if errors.As(err, &target) {
		return target
	}
	return nil
}

// classify returns the HTTP status for err along with the domain error whose
// message is safe to show. Wrapping context added on the way up is dropped.
func classify(err error) (int, error) {
	for _, c := range errClasses {
		for _, s := range c.sentinels {
			if errors.Is(err, s) {
				return c.status, s
			}
		}
		for _, match := range c.typed {
			if cause := match(err); cause != nil {
				return c.status, cause
			}
		}
	}
	return http.StatusInternalServerError, err
}

func statusOf(err error) int {
	status, _ := classify(err)
	return status
}
