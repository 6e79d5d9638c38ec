// Operator tool for the persisted circuit breaker.
//
// Usage:
//
//	breaker status   print whether the breaker is open, and why
//	breaker clear    close the breaker so the next run ingests again
//	breaker open     open the breaker manually (e.g. planned maintenance)
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/KevanReatha/flight-price-tracker/configs"
	"github.com/KevanReatha/flight-price-tracker/internal/breaker"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := configs.AppLoad()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	store := breaker.NewFileStore(cfg.BreakerPath)

	command := "status"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "status":
		state, err := store.State()
		if err != nil {
			logger.Fatalf("Failed to read breaker state: %v", err)
		}
		if state == nil {
			fmt.Println("Breaker: CLOSED")
			return
		}
		fmt.Println("Breaker: OPEN")
		if !state.OpenedAt.IsZero() {
			fmt.Printf("Opened at: %s\n", state.OpenedAt.Format("2006-01-02 15:04:05 MST"))
		}
		if state.Reason != "" {
			fmt.Printf("Reason: %s\n", state.Reason)
		}

	case "clear":
		if err := store.Close(); err != nil {
			logger.Fatalf("Failed to clear breaker: %v", err)
		}
		logger.Info("Breaker cleared - ingestion resumes on the next run")

	case "open":
		if err := store.Open("opened manually by operator"); err != nil {
			logger.Fatalf("Failed to open breaker: %v", err)
		}
		logger.Info("Breaker opened - runs will be skipped until cleared")

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want status, clear, or open)\n", command)
		os.Exit(2)
	}
}
