package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"
)

// customerReport handles GET /orders/report. Rounding to 2 decimals and
// boolean-to-string conversion happen here, during result formatting.
func (h *Handler) customerReport(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Report(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	e := &jx.Encoder{}
	e.ArrStart()
	for _, row := range rows {
		e.ObjStart()
		e.FieldStart("customer_email")
		e.Str(row.CustomerEmail)
		e.FieldStart("total_orders")
		e.Int(row.TotalOrders)
		e.FieldStart("total_amount_spent")
		e.Num(jx.Num(row.TotalSpent.StringFixed(2)))
		e.FieldStart("is_vip")
		e.Str(vipString(row.IsVIP()))
		e.FieldStart("arrival_date")
		if row.ArrivalDate.IsZero() {
			e.Null()
		} else {
			e.Str(row.ArrivalDate.Format(time.RFC3339))
		}
		e.ObjEnd()
	}
	e.ArrEnd()

	writeJSON(w, http.StatusOK, e)
}

// vipString renders the report's VIP flag as "True"/"False", matching the
// report contract.
func vipString(vip bool) string {
	if vip {
		return "True"
	}
	return "False"
}
