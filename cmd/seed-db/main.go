// Command seed-db loads demo orders into the database through the domain
// service, so derived fields and idempotency behave exactly as in the API.
// Re-running it is safe: orders whose external id already exists are skipped.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/mrobles/orders-intake/internal/domain/order"
	"github.com/mrobles/orders-intake/internal/storage/postgres"
)

type orderJSON struct {
	ExternalID string `json:"external_id"`
	Customer   struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		ClientID string `json:"client_id"`
	} `json:"customer"`
	Items []struct {
		SKU       string          `json:"sku"`
		Quantity  int             `json:"quantity"`
		PriceUnit decimal.Decimal `json:"price_unit"`
	} `json:"items"`
	Date time.Time `json:"date"`
}

func main() {
	var (
		databaseURL string
		ordersFile  string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&ordersFile, "orders-file", "db/seed/orders.json", "path to orders JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, ordersFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, ordersFile string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	svc := order.NewService(postgres.NewOrderRepository(pool))

	return seedOrders(ctx, svc, ordersFile)
}

func seedOrders(ctx context.Context, svc *order.Service, ordersFile string) error {
	slog.Info("reading orders file", slog.String("path", ordersFile))

	data, err := os.ReadFile(ordersFile)
	if err != nil {
		return errors.Wrap(err, "read orders file")
	}

	var records []orderJSON
	if err := json.Unmarshal(data, &records); err != nil {
		return errors.Wrap(err, "parse orders JSON")
	}

	slog.Info("creating orders", slog.Int("count", len(records)))

	for _, rec := range records {
		items := make([]order.Item, 0, len(rec.Items))
		for _, it := range rec.Items {
			items = append(items, order.Item{
				SKU:       it.SKU,
				Quantity:  it.Quantity,
				PriceUnit: it.PriceUnit,
			})
		}

		id, o, err := svc.CreateOrder(ctx, order.CreateOrderRequest{
			ExternalID: rec.ExternalID,
			Customer: order.Customer{
				Email:    rec.Customer.Email,
				Name:     rec.Customer.Name,
				ClientID: rec.Customer.ClientID,
			},
			Items: items,
			Date:  rec.Date,
		})
		if err != nil {
			if order.KindOf(err) == order.KindConflict {
				slog.Info("order already exists, skipping", slog.String("external_id", rec.ExternalID))
				continue
			}
			return errors.Wrapf(err, "create order %s", rec.ExternalID)
		}

		slog.Info("created order",
			slog.Int64("id", id),
			slog.String("external_id", o.ExternalID),
			slog.String("total", o.Total.StringFixed(2)),
			slog.Bool("is_vip", o.IsVIP),
		)
	}

	return nil
}
