package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"simantu.org/internal/auth"
	"simantu.org/internal/migrate"
	"simantu.org/internal/store/pg"
)

func main() {
	log.SetFlags(0)
	dsn := flag.String("dsn", os.Getenv("SIMANTU_PG_DSN"), "PostgreSQL DSN")
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or SIMANTU_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [up|down|seed|status]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := pg.Open(*dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	mgr := migrate.NewManager(store.DB(), migrate.Migrations(), migrate.Seeds())

	switch flag.Arg(0) {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "seed":
		if err = mgr.Seed(ctx); err == nil {
			err = seedAdmin(ctx, store)
		}
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		if err == nil {
			for _, item := range history {
				fmt.Println(item)
			}
		}
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
}

// seedAdmin creates the administrator account when SIMANTU_ADMIN_EMAIL is set.
func seedAdmin(ctx context.Context, store *pg.Store) error {
	email := os.Getenv("SIMANTU_ADMIN_EMAIL")
	if email == "" {
		return nil
	}
	name := os.Getenv("SIMANTU_ADMIN_NAME")
	if name == "" {
		name = "Administrator"
	}
	svc, err := auth.NewService(store, auth.NewTokenService(os.Getenv("SIMANTU_JWT_SECRET")))
	if err != nil {
		return err
	}
	acc, err := svc.EnsureAdmin(ctx, name, email, os.Getenv("SIMANTU_ADMIN_PASSWORD"))
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	log.Printf("administrator %s ready (%s)", acc.Email, acc.ID)
	return nil
}
