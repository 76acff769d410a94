// Package memory provides an in-memory order repository used as the test
// double for the persistence contract.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/mrobles/orders-intake/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

type storedCustomer struct {
	name     string
	clientID string
}

type storedOrder struct {
	id    int64
	value order.Order
}

// OrderRepository implements order.Repository with maps guarded by a mutex.
// It mirrors the storage adapter's semantics: conflict on duplicate
// external id, first-write-wins customer identity, inner-join report.
type OrderRepository struct {
	mu        sync.Mutex
	nextID    int64
	customers map[string]storedCustomer // keyed by email
	orders    map[string]storedOrder    // keyed by external id
}

// NewOrderRepository returns an empty in-memory repository.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		customers: make(map[string]storedCustomer),
		orders:    make(map[string]storedOrder),
	}
}

func (r *OrderRepository) ExternalIDExists(_ context.Context, externalID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.orders[externalID]
	return ok, nil
}

func (r *OrderRepository) SaveOrder(_ context.Context, o *order.Order) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[o.ExternalID]; ok {
		return 0, order.Conflictf("external_id %q already exists", o.ExternalID)
	}

	// Create-or-reuse by email; an existing record keeps its first-seen
	// name and client id.
	if _, ok := r.customers[o.Customer.Email]; !ok {
		r.customers[o.Customer.Email] = storedCustomer{
			name:     o.Customer.Name,
			clientID: o.Customer.ClientID,
		}
	}

	r.nextID++
	stored := *o
	stored.Items = append([]order.Item(nil), o.Items...)
	r.orders[o.ExternalID] = storedOrder{id: r.nextID, value: stored}

	return r.nextID, nil
}

func (r *OrderRepository) CustomerReport(_ context.Context) ([]order.ReportRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byEmail := make(map[string]*order.ReportRow)
	for _, so := range r.orders {
		o := so.value
		row, ok := byEmail[o.Customer.Email]
		if !ok {
			row = &order.ReportRow{
				CustomerEmail: o.Customer.Email,
				TotalSpent:    decimal.Zero,
			}
			byEmail[o.Customer.Email] = row
		}
		row.TotalOrders++
		row.TotalSpent = row.TotalSpent.Add(o.Total)
		if o.ArrivalDate.After(row.ArrivalDate) {
			row.ArrivalDate = o.ArrivalDate
		}
	}

	report := make([]order.ReportRow, 0, len(byEmail))
	for _, row := range byEmail {
		report = append(report, *row)
	}
	sort.Slice(report, func(i, j int) bool {
		return report[i].CustomerEmail < report[j].CustomerEmail
	})

	return report, nil
}

// CustomerCount reports the number of distinct stored customers. Test hook.
func (r *OrderRepository) CustomerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.customers)
}

// OrderCount reports the number of stored orders. Test hook.
func (r *OrderRepository) OrderCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}
