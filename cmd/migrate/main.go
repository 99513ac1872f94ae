package main

// Apply checklist store migrations for SQL backends:
//   CHECKLIST_STORE=sqlite go run ./cmd/migrate
//   CHECKLIST_STORE=postgres DATABASE_URL=... go run ./cmd/migrate -prune 720h

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"visadoc-backend/internal/bootstrap"
	"visadoc-backend/internal/kv"
	"visadoc-backend/internal/shared/config"
	"visadoc-backend/internal/shared/storage/db"
)

func main() {
	prune := flag.Duration("prune", 0, "delete checklist snapshots not updated within this duration (0 disables)")
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()

	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	sqlDB, driver, err := bootstrap.OpenDB(ctx, cfg, opts)
	if err != nil {
		log.Printf("failed to connect database: %v", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := db.RunMigrations(ctx, sqlDB, driver); err != nil {
		log.Printf("failed to run migrations: %v", err)
		os.Exit(1)
	}
	log.Printf("migrations applied (%s)", driver)

	if *prune > 0 {
		n, err := kv.NewSQLStore(sqlDB, driver).Prune(ctx, time.Now().Add(-*prune))
		if err != nil {
			log.Printf("failed to prune: %v", err)
			os.Exit(1)
		}
		log.Printf("pruned %d checklist snapshots older than %s", n, *prune)
	}
}
