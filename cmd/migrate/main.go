package main

import (
	"context"
	"log"

	"fomopomo/internal/config"
	"fomopomo/internal/db"
)

func main() {
	cfg := config.Load()
	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database, cfg.MigrationsDir); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	applied, err := db.AppliedMigrations(context.Background(), database)
	if err != nil {
		log.Fatalf("list migrations: %v", err)
	}
	for _, name := range applied {
		log.Printf("applied %s", name)
	}
	log.Printf("%s is at %d migration(s)", cfg.DBPath, len(applied))
}
