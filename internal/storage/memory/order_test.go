package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrobles/orders-intake/internal/domain/order"
)

func testOrder(externalID, email string, total string, arrival time.Time) *order.Order {
	return &order.Order{
		ExternalID: externalID,
		Customer:   order.Customer{Email: email, Name: "Ada", ClientID: "C-1"},
		Items: []order.Item{
			{SKU: "S1", Quantity: 1, PriceUnit: decimal.RequireFromString(total)},
		},
		Date:        arrival.AddDate(0, 0, -5),
		Total:       decimal.RequireFromString(total),
		ArrivalDate: arrival,
	}
}

func TestSaveOrder_AssignsSequentialIDs(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()
	arrival := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)

	id1, err := repo.SaveOrder(ctx, testOrder("X1", "a@b.com", "10.00", arrival))
	require.NoError(t, err)
	id2, err := repo.SaveOrder(ctx, testOrder("X2", "a@b.com", "20.00", arrival))
	require.NoError(t, err)

	assert.Equal(t, int64(1), id1)
	assert.Equal(t, int64(2), id2)
}

func TestSaveOrder_DuplicateExternalID(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()
	arrival := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)

	_, err := repo.SaveOrder(ctx, testOrder("X1", "a@b.com", "10.00", arrival))
	require.NoError(t, err)

	_, err = repo.SaveOrder(ctx, testOrder("X1", "other@b.com", "99.00", arrival))
	require.Error(t, err)
	assert.Equal(t, order.KindConflict, order.KindOf(err))
	assert.Equal(t, 1, repo.OrderCount())
}

func TestSaveOrder_ConcurrentSameExternalID(t *testing.T) {
	repo := NewOrderRepository()
	arrival := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)

	const n = 16
	results := make([]error, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = repo.SaveOrder(context.Background(), testOrder("X1", "a@b.com", "10.00", arrival))
		}()
	}
	wg.Wait()

	var successes, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case order.KindOf(err) == order.KindConflict:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, conflicts)
	assert.Equal(t, 1, repo.OrderCount())
}

func TestSaveOrder_CustomerReuse(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()
	arrival := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)

	first := testOrder("X1", "a@b.com", "10.00", arrival)
	second := testOrder("X2", "a@b.com", "20.00", arrival)
	second.Customer.Name = "Renamed"
	second.Customer.ClientID = "C-2"

	_, err := repo.SaveOrder(ctx, first)
	require.NoError(t, err)
	_, err = repo.SaveOrder(ctx, second)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.CustomerCount())
	assert.Equal(t, 2, repo.OrderCount())

	// First write wins on customer identity.
	repo.mu.Lock()
	c := repo.customers["a@b.com"]
	repo.mu.Unlock()
	assert.Equal(t, "Ada", c.name)
	assert.Equal(t, "C-1", c.clientID)
}

func TestCustomerReport_Aggregation(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()

	early := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)
	late := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)

	_, err := repo.SaveOrder(ctx, testOrder("X1", "a@b.com", "100.00", early))
	require.NoError(t, err)
	_, err = repo.SaveOrder(ctx, testOrder("X2", "a@b.com", "250.00", late))
	require.NoError(t, err)
	_, err = repo.SaveOrder(ctx, testOrder("X3", "z@b.com", "50.00", early))
	require.NoError(t, err)

	report, err := repo.CustomerReport(ctx)
	require.NoError(t, err)
	require.Len(t, report, 2)

	a := report[0]
	assert.Equal(t, "a@b.com", a.CustomerEmail)
	assert.Equal(t, 2, a.TotalOrders)
	assert.True(t, decimal.RequireFromString("350.00").Equal(a.TotalSpent))
	assert.True(t, a.IsVIP())
	assert.Equal(t, late, a.ArrivalDate)

	z := report[1]
	assert.Equal(t, "z@b.com", z.CustomerEmail)
	assert.Equal(t, 1, z.TotalOrders)
	assert.False(t, z.IsVIP())
}

func TestCustomerReport_Empty(t *testing.T) {
	repo := NewOrderRepository()

	report, err := repo.CustomerReport(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report)
}
