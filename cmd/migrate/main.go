package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"warimas-pos/internal/store"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	mode := flag.String("mode", "up", "migration mode: up, down or status")
	flag.Parse()

	path := os.Getenv("STORE_PATH")
	if path == "" {
		path = "data/pos.db"
	}

	db, err := store.Open(path, store.SkipMigrations())
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer db.Close()

	if err := run(db, *mode, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(db *store.DB, mode string, out io.Writer) error {
	switch mode {
	case "up":
		return runMigrationsUp(db, out)
	case "down":
		return runMigrationsDown(db, out)
	case "status":
		return printStatus(db, out)
	default:
		return fmt.Errorf("unknown mode: %s (use 'up', 'down' or 'status')", mode)
	}
}

func runMigrationsUp(db *store.DB, out io.Writer) error {
	applied, err := db.MigrateUp()
	if err != nil {
		return fmt.Errorf("❌ Migration failed: %w", err)
	}
	if len(applied) == 0 {
		fmt.Fprintln(out, "⏭ Store schema already up to date.")
		return nil
	}
	for _, m := range applied {
		fmt.Fprintf(out, "🚀 Applied migration %03d: %s\n", m.Version, m.Name)
	}
	fmt.Fprintln(out, "✅ All new migrations applied successfully.")
	return nil
}

func runMigrationsDown(db *store.DB, out io.Writer) error {
	m, err := db.MigrateDown()
	if err != nil {
		return fmt.Errorf("❌ Rollback failed: %w", err)
	}
	if m == nil {
		fmt.Fprintln(out, "⚠️  No migrations to roll back.")
		return nil
	}
	fmt.Fprintf(out, "🧹 Rolled back migration %03d: %s\n", m.Version, m.Name)
	fmt.Fprintln(out, "✅ Rollback successful.")
	return nil
}

func printStatus(db *store.DB, out io.Writer) error {
	current, err := db.Version()
	if err != nil {
		return err
	}
	for _, m := range store.Migrations {
		mark := "pending"
		if m.Version <= current {
			mark = "applied"
		}
		fmt.Fprintf(out, "%03d  %-8s %s\n", m.Version, mark, m.Name)
	}
	return nil
}
