// Package handler exposes the order pricing service over HTTP.
package handler

import (
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xenking/bakery-pos/internal/domain/fault"
	"github.com/xenking/bakery-pos/internal/domain/order"
	"github.com/xenking/bakery-pos/internal/domain/payment"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Handler serves the /api routes, delegating to the order and payment
// services.
type Handler struct {
	orders   *order.Service
	payments *payment.Service
	validate *validator.Validate
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(orders *order.Service, payments *payment.Service) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{
		orders:   orders,
		payments: payments,
		validate: v,
	}
}

// Register mounts the API under /api on r. Every route requires a valid API
// key.
func (h *Handler) Register(r chi.Router, sec *SecurityHandler) {
	r.Route("/api", func(r chi.Router) {
		r.Use(sec.Authenticate)

		r.Post("/quotes", h.Quote)
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.CreateOrder)
			r.Get("/", h.ListOrders)
			r.Route("/{orderID}", func(r chi.Router) {
				r.Get("/", h.GetOrder)
				r.Patch("/", h.UpdateOrder)
				r.Delete("/", h.DeleteOrder)
				r.Post("/payments", h.RecordPayment)
				r.Get("/invoice", h.GetInvoice)
			})
		})
	})
}

// decodeBody reads the request body and hands a decoder to fn. Malformed
// JSON is reported as InvalidInput.
func decodeBody(w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder) error) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fault.NewInvalidInput(fault.ReasonRequestInvalid, "", "read body: "+err.Error())
	}
	if err := fn(jx.DecodeBytes(body)); err != nil {
		var fe *fault.Error
		if errors.As(err, &fe) {
			return err
		}
		return fault.NewInvalidInput(fault.ReasonRequestInvalid, "", "malformed JSON: "+err.Error())
	}
	return nil
}

// check runs struct validation and converts the first failure to
// InvalidInput naming the offending JSON field.
func (h *Handler) check(v any) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errors.Wrap(err, "validate")
	}
	fe := verrs[0]
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	detail := "failed " + fe.Tag()
	if fe.Param() != "" {
		detail += "=" + fe.Param()
	}
	return fault.NewInvalidInput(fault.ReasonRequestInvalid, field, detail)
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// statusOf maps a domain error kind to its HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, fault.NotFound):
		return http.StatusNotFound
	case errors.Is(err, fault.Unprocessable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, fault.InvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes {"code","reason","message"}. Unclassified errors are
// logged and reported without their cause.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	reason := string(fault.ReasonOf(err))
	message := err.Error()
	if code == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		reason = "internal"
		message = "internal error"
	}
	writeJSON(w, code, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(code) })
			e.Field("reason", func(e *jx.Encoder) { e.Str(reason) })
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		})
	})
}
