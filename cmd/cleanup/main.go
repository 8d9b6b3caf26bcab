package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sentra-access/sentra/internal/audit"
	"github.com/sentra-access/sentra/internal/config"
	"github.com/sentra-access/sentra/internal/credential"
	"github.com/sentra-access/sentra/internal/store/postgres"
)

// One-shot sweep of expired credentials, for cron-style scheduling outside
// the server's built-in ticker.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	credentialService := credential.NewService(postgres.NewCredentialRepository(db), audit.NewSlogLogger(), nil)

	removed, err := credentialService.CleanupExpired(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Sweep failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Removed %d expired credentials.\n", removed)
}
