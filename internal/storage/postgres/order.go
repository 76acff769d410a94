package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mrobles/orders-intake/internal/domain/order"
)

// Names from db/migrations/001_schema.sql.
const (
	constraintOrderExternalID = "uq_orders_external_id"
	constraintCustomerEmail   = "uq_customers_email"
)

const (
	externalIDExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE external_id = $1)`

	// ON CONFLICT DO NOTHING returns no row when the email is taken, in
	// which case the existing customer id is re-selected. First write wins:
	// name and client_id of an existing customer are never updated.
	insertCustomerSQL = `INSERT INTO customers (email, name, client_id)
	VALUES ($1, $2, $3)
	ON CONFLICT (email) DO NOTHING
	RETURNING id`

	selectCustomerIDSQL = `SELECT id FROM customers WHERE email = $1`

	insertOrderSQL = `INSERT INTO orders (external_id, customer_id, date, total, is_vip, arrival_date)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id`

	insertItemSQL = `INSERT INTO order_items (order_id, sku, quantity, price_unit)
	VALUES ($1, $2, $3, $4)`

	customerReportSQL = `SELECT c.email, COUNT(o.id), SUM(o.total), MAX(o.arrival_date)
	FROM customers c
	JOIN orders o ON o.customer_id = c.id
	GROUP BY c.email
	ORDER BY c.email ASC`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. It is
// the single place storage-native faults are translated into domain error
// kinds: a unique violation on the orders external_id index becomes a
// conflict, everything else becomes infrastructure.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// ExternalIDExists reports whether a committed order carries the external id.
func (r *OrderRepository) ExternalIDExists(ctx context.Context, externalID string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, externalIDExistsSQL, externalID).Scan(&exists); err != nil {
		return false, order.Infrastructure(err, "check external id")
	}
	return exists, nil
}

// SaveOrder persists customer, order and items in one transaction. Inserts
// are ordered customer -> order -> items and commit together; a failure at
// any point rolls back the whole unit.
func (r *OrderRepository) SaveOrder(ctx context.Context, o *order.Order) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, order.Infrastructure(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	customerID, err := upsertCustomer(ctx, tx, o.Customer)
	if err != nil {
		return 0, err
	}

	var orderID int64
	err = tx.QueryRow(ctx, insertOrderSQL,
		o.ExternalID, customerID, o.Date, o.Total, o.IsVIP, o.ArrivalDate,
	).Scan(&orderID)
	if err != nil {
		if isUniqueViolation(err, constraintOrderExternalID) {
			return 0, order.Conflictf("external_id %q already exists", o.ExternalID)
		}
		return 0, order.Infrastructure(err, "insert order")
	}

	batch := &pgx.Batch{}
	for _, it := range o.Items {
		batch.Queue(insertItemSQL, orderID, it.SKU, it.Quantity, it.PriceUnit)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, order.Infrastructure(err, "insert order items")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, order.Infrastructure(err, "commit order")
	}

	return orderID, nil
}

// upsertCustomer creates the customer row or reuses the existing one keyed
// by email. A concurrent insert of the same email is resolved by
// re-selecting the winner's row, never by erroring the caller.
func upsertCustomer(ctx context.Context, tx pgx.Tx, c order.Customer) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, insertCustomerSQL, c.Email, c.Name, c.ClientID).Scan(&id)
	switch {
	case err == nil:
		return id, nil
	case errors.Is(err, pgx.ErrNoRows) || isUniqueViolation(err, constraintCustomerEmail):
		// Email already taken, possibly by a concurrent writer: reuse the row.
		if err := tx.QueryRow(ctx, selectCustomerIDSQL, c.Email).Scan(&id); err != nil {
			return 0, order.Infrastructure(err, "select customer")
		}
		return id, nil
	default:
		return 0, order.Infrastructure(err, "insert customer")
	}
}

// CustomerReport aggregates committed orders per customer: order count,
// spend total and latest arrival date, ordered by email ascending.
// Customers without orders are absent (inner join).
func (r *OrderRepository) CustomerReport(ctx context.Context) ([]order.ReportRow, error) {
	rows, err := r.pool.Query(ctx, customerReportSQL)
	if err != nil {
		return nil, order.Infrastructure(err, "query customer report")
	}
	defer rows.Close()

	var report []order.ReportRow
	for rows.Next() {
		var row order.ReportRow
		if err := rows.Scan(&row.CustomerEmail, &row.TotalOrders, &row.TotalSpent, &row.ArrivalDate); err != nil {
			return nil, order.Infrastructure(err, "scan report row")
		}
		report = append(report, row)
	}
	if err := rows.Err(); err != nil {
		return nil, order.Infrastructure(err, "read report rows")
	}

	return report, nil
}
