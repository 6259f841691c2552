package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/hetulpatel/crossarb/internal/config"
	"github.com/hetulpatel/crossarb/internal/storage/sqlite"
)

func main() {
	configPath := flag.String("config", os.Getenv("CROSSARB_CONFIG"), "path to TOML config")
	reset := flag.Bool("reset", false, "drop the opportunities table before creating it")
	clearRows := flag.Bool("clear", false, "delete stored opportunities after creating the table")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	store, err := sqlite.Open(cfg.SQLite.Path)
	if err != nil {
		log.Fatalf("open sqlite: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if *reset {
		if err := store.DropTables(ctx); err != nil {
			log.Fatalf("drop tables: %v", err)
		}
		log.Printf("SQLite tables dropped at %s", store.Path())
	}
	if err := store.CreateTables(ctx); err != nil {
		log.Fatalf("create tables: %v", err)
	}
	if *clearRows {
		if err := store.ClearTables(ctx); err != nil {
			log.Fatalf("clear tables: %v", err)
		}
		log.Printf("SQLite tables cleared at %s", store.Path())
	}
	log.Printf("SQLite tables created at %s", store.Path())
}
