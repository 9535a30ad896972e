// File: cmd/seed/main.go
// Creates the schema and seeds the plan catalog. Idempotent.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"telegram-ai-generation/internal/config"
	"telegram-ai-generation/internal/domain/model"
	"telegram-ai-generation/internal/domain/ports/repository"
	pg "telegram-ai-generation/internal/infra/db/postgres"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		telegram_id    BIGINT PRIMARY KEY,
		username       TEXT NOT NULL DEFAULT '',
		registered_at  TIMESTAMPTZ NOT NULL,
		last_active_at TIMESTAMPTZ NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS plans (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL UNIQUE,
		sort_order    INT NOT NULL DEFAULT 0,
		duration_days INT NOT NULL,
		photo_credits INT NOT NULL,
		video_credits INT NOT NULL,
		price_rub     BIGINT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE TABLE IF NOT EXISTS credit_grants (
		id              TEXT PRIMARY KEY,
		user_id         BIGINT NOT NULL,
		plan_id         TEXT NOT NULL REFERENCES plans(id),
		activated_at    TIMESTAMPTZ NOT NULL,
		expires_at      TIMESTAMPTZ NOT NULL,
		remaining_photo INT NOT NULL CHECK (remaining_photo >= 0),
		remaining_video INT NOT NULL CHECK (remaining_video >= 0),
		status          TEXT NOT NULL
	);`,
	// Backstop for the single-active-grant invariant.
	`CREATE UNIQUE INDEX IF NOT EXISTS credit_grants_one_active
		ON credit_grants (user_id) WHERE status = 'active';`,
	`CREATE INDEX IF NOT EXISTS credit_grants_active_expiry
		ON credit_grants (expires_at) WHERE status = 'active';`,
	`CREATE TABLE IF NOT EXISTS generation_jobs (
		id          TEXT PRIMARY KEY,
		user_id     BIGINT NOT NULL,
		kind        TEXT NOT NULL,
		task_id     TEXT NOT NULL DEFAULT '',
		state       TEXT NOT NULL,
		fail_reason TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS generation_jobs_user_state
		ON generation_jobs (user_id, state);`,
	`CREATE TABLE IF NOT EXISTS payments (
		id         TEXT PRIMARY KEY,
		user_id    BIGINT NOT NULL,
		plan_id    TEXT NOT NULL,
		amount_rub BIGINT NOT NULL,
		tx_id      TEXT NOT NULL UNIQUE,
		pay_url    TEXT NOT NULL DEFAULT '',
		status     TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS payments_pending_created
		ON payments (created_at) WHERE status = 'pending';`,
}

// Catalog: name, duration days (0 = unlimited), photo, video, price RUB.
var catalog = []struct {
	Name  string
	Days  int
	Photo int
	Video int
	Price int64
}{
	{"Base", 0, 0, 0, 0},
	{"Launch", 2, 1, 1, 0},
	{"Orbit", 30, 28, 20, 750},
	{"Nova", 30, 84, 100, 3650},
	{"Cosmic", 30, 334, 200, 9850},
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			log.Fatalf("schema: %v", err)
		}
	}
	fmt.Println("schema ready")

	planRepo := pg.NewPlanRepo(pool)
	existing, err := planRepo.ListAll(ctx, repository.NoTX)
	if err != nil {
		log.Fatalf("list plans: %v", err)
	}
	if len(existing) > 0 {
		fmt.Printf("%d plans already present, no changes\n", len(existing))
		return
	}

	for i, c := range catalog {
		p, err := model.NewPlan(uuid.NewString(), c.Name, c.Days, c.Photo, c.Video, c.Price)
		if err != nil {
			log.Fatalf("plan %q: %v", c.Name, err)
		}
		p.SortOrder = i
		if err := planRepo.Save(ctx, repository.NoTX, p); err != nil {
			log.Fatalf("save plan %q: %v", c.Name, err)
		}
		fmt.Printf("seeded: %s (days=%d, photo=%d, video=%d, price=%d RUB)\n", c.Name, c.Days, c.Photo, c.Video, c.Price)
	}
	fmt.Println("seeding complete")
}
