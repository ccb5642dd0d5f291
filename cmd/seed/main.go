// File: cmd/seed/main.go
// Seeds a handful of verified payments and active subscriptions for local
// development of the refund and dashboard flows.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"subscription-billing/internal/config"
	"subscription-billing/internal/domain/model"
	pg "subscription-billing/internal/infra/db/postgres"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	paymentRepo := pg.NewPaymentRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)

	existing, err := paymentRepo.Count(ctx, nil, model.PaymentFilter{})
	if err != nil {
		log.Fatalf("count payments: %v", err)
	}
	if existing > 0 {
		fmt.Printf("%d payments already present. No changes.\n", existing)
		return
	}

	seed := []struct {
		Email   string
		Amount  int64 // minor units
		Service string
		Days    int
	}{
		{"alice@example.test", 49_900, "starter", 30},
		{"bob@example.test", 149_900, "pro", 30},
		{"carol@example.test", 399_900, "ultra", 90},
	}

	for i, s := range seed {
		p := &model.Payment{
			ID:                uuid.NewString(),
			UserEmail:         s.Email,
			OrderID:           fmt.Sprintf("order_dev_%03d", i+1),
			ProviderPaymentID: fmt.Sprintf("pay_dev_%03d", i+1),
			Amount:            s.Amount,
			Currency:          "INR",
			Status:            model.PaymentStatusVerified,
			CreatedAt:         time.Now().AddDate(0, 0, -i),
		}
		if err := paymentRepo.Save(ctx, nil, p); err != nil {
			log.Fatalf("save payment: %v", err)
		}

		sub, err := model.NewSubscription(uuid.NewString(), p, s.Service, time.Duration(s.Days)*24*time.Hour, cfg.Scheduler.GracePeriod)
		if err != nil {
			log.Fatalf("build subscription: %v", err)
		}
		if err := subRepo.Save(ctx, nil, sub); err != nil {
			log.Fatalf("save subscription: %v", err)
		}
		fmt.Printf("seeded %s: payment %s (%d), subscription %s\n", s.Email, p.ID, p.Amount, sub.ID)
	}
}
