package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/microtales/microtales/internal/config"
	"github.com/microtales/microtales/internal/db"
)

// Seeds the database with the example stories and the two demo
// accounts. Fails loudly; a half-seeded database rolls back.
func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.NewPool(cfg.DBURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	if err := db.Seed(ctx, pool); err != nil {
		log.Fatalf("seed failed: %v", err)
	}

	log.Println("seed complete: 8 stories, 2 accounts")
}
