// Package order holds the order-intake domain: entity values, derived
// attribute computation, the persistence contract and the intake service.
package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// VIPThreshold is the strict lower bound for VIP orders: an order is VIP
// only when its total strictly exceeds this amount.
var VIPThreshold = decimal.NewFromInt(300)

// Promised arrival windows in days from the submission date.
const (
	vipArrivalDays      = 3
	standardArrivalDays = 5
)

// Customer identifies the buyer. Identity is the email: repeat submissions
// with a known email reuse the stored record and never overwrite its name
// or client id.
type Customer struct {
	Email    string
	Name     string
	ClientID string
}

// Item is a single order line.
type Item struct {
	SKU       string
	Quantity  int
	PriceUnit decimal.Decimal
}

// LineTotal returns quantity x unit price.
func (i Item) LineTotal() decimal.Decimal {
	return i.PriceUnit.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is an immutable order value. Total, IsVIP and ArrivalDate are
// derived once at creation time and never recomputed afterwards.
type Order struct {
	ExternalID  string
	Customer    Customer
	Items       []Item
	Date        time.Time
	Total       decimal.Decimal
	IsVIP       bool
	ArrivalDate time.Time
}

// ReportRow is one per-customer aggregate: order count, spend total and the
// latest promised arrival across the customer's orders. Rounding and
// boolean-to-string conversion happen at the boundary, not here.
type ReportRow struct {
	CustomerEmail string
	TotalOrders   int
	TotalSpent    decimal.Decimal
	ArrivalDate   time.Time
}

// IsVIP reports whether the customer's accumulated spend strictly exceeds
// the VIP threshold.
func (r ReportRow) IsVIP() bool {
	return r.TotalSpent.GreaterThan(VIPThreshold)
}

// Repository is the persistence contract for orders. It has one production
// implementation (postgres) and one in-memory double for tests.
type Repository interface {
	// ExternalIDExists reports whether an order with the given external id
	// has been committed. The result is advisory: SaveOrder remains the
	// authoritative uniqueness check.
	ExternalIDExists(ctx context.Context, externalID string) (bool, error)

	// SaveOrder persists customer (create-or-reuse by email), order and
	// items as one atomic unit and returns the store-assigned order id.
	// A concurrent commit of the same external id yields a conflict-kind
	// error; any other storage fault yields an infrastructure-kind error.
	SaveOrder(ctx context.Context, o *Order) (int64, error)

	// CustomerReport returns one row per customer with at least one order,
	// ordered by email ascending.
	CustomerReport(ctx context.Context) ([]ReportRow, error)
}
