package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Service orchestrates order intake: uniqueness pre-check, derived-field
// computation and persistence. It is the single place business rules live.
type Service struct {
	orders Repository
}

// NewService creates a Service backed by the given repository.
func NewService(orders Repository) *Service {
	return &Service{orders: orders}
}

// CreateOrderRequest holds the already-validated input for an order
// submission. The transport adapter owns payload-shape validation.
type CreateOrderRequest struct {
	ExternalID string
	Customer   Customer
	Items      []Item
	Date       time.Time
}

// CreateOrder computes the derived order attributes, persists the order and
// returns the store-assigned id together with the constructed value. The
// returned Order is authoritative for the response even if storage computed
// equivalent values independently.
//
// The existence pre-check is an optimization: a concurrent writer can still
// commit the same external id between the check and the save, in which case
// the storage layer's unique constraint surfaces as a conflict-kind error.
// Failures from the repository are passed through unchanged; no retries.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (int64, *Order, error) {
	if len(req.Items) == 0 {
		return 0, nil, Validationf("order requires at least one item")
	}

	exists, err := s.orders.ExternalIDExists(ctx, req.ExternalID)
	if err != nil {
		return 0, nil, errors.Wrap(err, "check external id")
	}
	if exists {
		return 0, nil, Conflictf("external_id %q already exists", req.ExternalID)
	}

	total := decimal.Zero
	for _, it := range req.Items {
		total = total.Add(it.LineTotal())
	}

	isVIP := total.GreaterThan(VIPThreshold)
	days := standardArrivalDays
	if isVIP {
		days = vipArrivalDays
	}

	o := &Order{
		ExternalID:  req.ExternalID,
		Customer:    req.Customer,
		Items:       req.Items,
		Date:        req.Date,
		Total:       total,
		IsVIP:       isVIP,
		ArrivalDate: req.Date.AddDate(0, 0, days),
	}

	id, err := s.orders.SaveOrder(ctx, o)
	if err != nil {
		return 0, nil, errors.Wrap(err, "save order")
	}

	return id, o, nil
}

// Report delegates to the repository's aggregate query without any
// additional transformation.
func (s *Service) Report(ctx context.Context) ([]ReportRow, error) {
	return s.orders.CustomerReport(ctx)
}
