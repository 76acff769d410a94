package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/mrobles/orders-intake/internal/domain/order"
)

// writeDomainError maps a domain error kind to the HTTP status contract:
// validation 422, conflict 409, infrastructure 503 with a non-sensitive
// hint, any other domain error 400. Errors without a domain kind are a
// programming fault and become a 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch order.KindOf(err) {
	case order.KindValidation:
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "")
	case order.KindConflict:
		writeError(w, http.StatusConflict, err.Error(), "")
	case order.KindInfrastructure:
		// The storage fault itself goes to the log, not to the client.
		zctx.From(r.Context()).Error("storage failure", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "storage unavailable",
			"the order store is unreachable or failing; retry later")
	default:
		zctx.From(r.Context()).Error("unclassified failure", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", "")
	}
}

// writeError writes a JSON error body {"code", "message"[, "hint"]}.
func writeError(w http.ResponseWriter, status int, message, hint string) {
	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(message)
	if hint != "" {
		e.FieldStart("hint")
		e.Str(hint)
	}
	e.ObjEnd()

	writeJSON(w, status, e)
}

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
