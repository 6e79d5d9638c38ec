package main

import (
	"database/sql"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/KevanReatha/flight-price-tracker/configs"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := configs.AppLoad()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := sql.Open("pgx", cfg.Warehouse.DSN)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	if err := goose.SetDialect("postgres"); err != nil {
		logger.Fatalf("Goose: failed to set dialect: %v", err)
	}

	logger.Info("Running database migrations...")
	if err := goose.Up(db, "internal/migrations"); err != nil {
		logger.Fatalf("Goose migration failed: %v", err)
	}

	logger.Info("Migrations completed successfully")
	os.Exit(0)
}
