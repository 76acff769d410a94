package handler

import (
	"io"
	"net/http"
	"net/mail"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/mrobles/orders-intake/internal/domain/order"
)

// createOrder handles POST /orders: decode, validate, delegate, respond.
func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read request body", "")
		return
	}

	req, err := decodeOrderRequest(body)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	id, o, err := h.service.CreateOrder(r.Context(), *req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(id)
	e.FieldStart("external_id")
	e.Str(o.ExternalID)
	e.FieldStart("total")
	e.Num(jx.Num(o.Total.StringFixed(2)))
	e.FieldStart("is_vip")
	e.Bool(o.IsVIP)
	e.FieldStart("arrival_date")
	e.Str(o.ArrivalDate.Format(time.RFC3339))
	e.ObjEnd()

	writeJSON(w, http.StatusCreated, e)
}

// decodeOrderRequest parses and validates the submission payload. All
// shape validation lives here; the domain only re-checks business
// invariants. Violations come back as validation-kind errors so the
// shared error writer maps them to 422.
func decodeOrderRequest(data []byte) (*order.CreateOrderRequest, error) {
	var (
		req     order.CreateOrderRequest
		hasDate bool
	)

	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "external_id":
			v, err := d.Str()
			if err != nil {
				return err
			}
			req.ExternalID = v
			return nil
		case "customer":
			return decodeCustomer(d, &req.Customer)
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				item, err := decodeItem(d)
				if err != nil {
					return err
				}
				req.Items = append(req.Items, item)
				return nil
			})
		case "date":
			v, err := d.Str()
			if err != nil {
				return err
			}
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return err
			}
			req.Date = ts
			hasDate = true
			return nil
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, order.Validationf("malformed order payload: %s", err)
	}

	if err := validateOrderRequest(&req, hasDate); err != nil {
		return nil, err
	}
	return &req, nil
}

func decodeCustomer(d *jx.Decoder, c *order.Customer) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "email", "name", "client_id":
			v, err := d.Str()
			if err != nil {
				return err
			}
			switch key {
			case "email":
				c.Email = v
			case "name":
				c.Name = v
			case "client_id":
				c.ClientID = v
			}
			return nil
		default:
			return d.Skip()
		}
	})
}

func decodeItem(d *jx.Decoder) (order.Item, error) {
	var item order.Item
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "sku":
			v, err := d.Str()
			if err != nil {
				return err
			}
			item.SKU = v
			return nil
		case "quantity":
			v, err := d.Int()
			if err != nil {
				return err
			}
			item.Quantity = v
			return nil
		case "price_unit":
			n, err := d.Num()
			if err != nil {
				return err
			}
			price, err := decimal.NewFromString(n.String())
			if err != nil {
				return err
			}
			item.PriceUnit = price
			return nil
		default:
			return d.Skip()
		}
	})
	return item, err
}

func validateOrderRequest(req *order.CreateOrderRequest, hasDate bool) error {
	if req.ExternalID == "" {
		return order.Validationf("external_id must not be empty")
	}
	if addr, err := mail.ParseAddress(req.Customer.Email); err != nil || addr.Address != req.Customer.Email {
		return order.Validationf("customer email %q is not a valid address", req.Customer.Email)
	}
	if req.Customer.Name == "" {
		return order.Validationf("customer name must not be empty")
	}
	if req.Customer.ClientID == "" {
		return order.Validationf("customer client_id must not be empty")
	}
	if len(req.Items) == 0 {
		return order.Validationf("order requires at least one item")
	}
	for i, it := range req.Items {
		if it.SKU == "" {
			return order.Validationf("item %d: sku must not be empty", i)
		}
		if it.Quantity <= 0 {
			return order.Validationf("item %d: quantity must be greater than 0", i)
		}
		if it.PriceUnit.IsNegative() {
			return order.Validationf("item %d: price_unit must not be negative", i)
		}
	}
	if !hasDate {
		return order.Validationf("date is required")
	}
	return nil
}
