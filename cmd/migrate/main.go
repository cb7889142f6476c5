// Command migrate applies schema migrations and seed data to the configured
// Postgres instance.
//
// Usage:
//
//	migrate -cmd up      apply pending migrations
//	migrate -cmd down    roll back the most recent migration
//	migrate -cmd seed    apply seed scripts (idempotent)
//	migrate -cmd status  print applied migrations and seeds
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"authgrid.org/db"
	"authgrid.org/internal/migrate"
)

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "one of: up, down, seed, status")
	flag.Parse()

	dsn := os.Getenv("AUTHGRID_PG_DSN")
	if dsn == "" {
		log.Fatal("AUTHGRID_PG_DSN is required")
	}

	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		log.Fatalf("ping db: %v", err)
	}

	mgr := migrate.NewManager(conn, db.FS)

	switch *cmd {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "seed":
		err = mgr.Seed(ctx)
	case "status":
		var applied []string
		applied, err = mgr.Status(ctx)
		for _, name := range applied {
			fmt.Println(name)
		}
	default:
		log.Fatalf("unknown command %q (want up, down, seed, or status)", *cmd)
	}
	if err != nil {
		log.Fatalf("%s: %v", *cmd, err)
	}
	log.Printf("%s: done", *cmd)
}
