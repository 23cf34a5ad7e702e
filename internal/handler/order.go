package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/bakery-pos/internal/domain/fault"
	"github.com/xenking/bakery-pos/internal/domain/invoice"
	"github.com/xenking/bakery-pos/internal/domain/order"
	"github.com/xenking/bakery-pos/internal/domain/payment"
	"github.com/xenking/bakery-pos/internal/domain/pricing"
)

// Quote prices a prospective order without persisting it.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decodeBody(w, r, req.Decode); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.check(&req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.orders.Quote(r.Context(), pricing.Input{
		Lines:     toLineRequests(req.Lines),
		Discounts: toDiscountRequests(req.Discounts),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeQuote(e, res) })
}

// CreateOrder prices and stores a new order.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeBody(w, r, req.Decode); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.check(&req); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.Create(r.Context(), order.CreateRequest{
		EmployeeID: req.EmployeeID,
		CustomerID: req.CustomerID,
		Status:     order.Status(req.Status),
		Note:       req.Note,
		Lines:      toLineRequests(req.Lines),
		Discounts:  toDiscountRequests(req.Discounts),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// ListOrders returns a page of orders, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := listQuery{Status: r.URL.Query().Get("status")}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &q.Limit}, {"offset", &q.Offset}} {
		name, dst := p.name, p.dst
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, fault.NewInvalidInput(fault.ReasonRequestInvalid, name, "must be an integer"))
			return
		}
		*dst = v
	}
	if err := h.check(&q); err != nil {
		writeError(w, r, err)
		return
	}

	orders, err := h.orders.List(r.Context(), order.Filter{
		Status: order.Status(q.Status),
		Limit:  q.Limit,
		Offset: q.Offset,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("orders", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for i := range orders {
						encodeOrder(e, &orders[i])
					}
				})
			})
			e.Field("count", func(e *jx.Encoder) { e.Int(len(orders)) })
		})
	})
}

// GetOrder returns one order with its stored breakdown.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// UpdateOrder applies a partial update; line or discount changes re-price
// the whole order.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	var req updateOrderRequest
	if err := decodeBody(w, r, req.Decode); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.check(&req); err != nil {
		writeError(w, r, err)
		return
	}

	upd := order.UpdateRequest{
		EmployeeID:    req.EmployeeID,
		CustomerID:    req.CustomerID,
		ClearCustomer: req.ClearCustomer,
		Note:          req.Note,
		Lines:         toLineRequests(req.Lines),
		Discounts:     toDiscountRequests(req.Discounts),
	}
	if req.Status != nil {
		st := order.Status(*req.Status)
		upd.Status = &st
	}

	o, err := h.orders.Update(r.Context(), chi.URLParam(r, "orderID"), upd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// DeleteOrder removes an order with its lines, discounts and payments.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Delete(r.Context(), chi.URLParam(r, "orderID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecordPayment settles an order.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decodeBody(w, r, req.Decode); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.check(&req); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.payments.Record(r.Context(), payment.RecordRequest{
		OrderID:    chi.URLParam(r, "orderID"),
		Method:     payment.Method(req.Method),
		AmountPaid: req.AmountPaid,
		PaidAt:     req.PaidAt,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodePayment(e, p) })
}

// GetInvoice returns receipt data built from the stored breakdown and the
// latest payment.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	o, err := h.orders.Get(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	latest, err := h.payments.Latest(ctx, o.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	inv := invoice.Build(o, latest)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeInvoice(e, inv) })
}
