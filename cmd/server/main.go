// Copyright 2026 The Sentra Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sentra-access/sentra/internal/audit"
	"github.com/sentra-access/sentra/internal/authz"
	"github.com/sentra-access/sentra/internal/config"
	"github.com/sentra-access/sentra/internal/credential"
	"github.com/sentra-access/sentra/internal/identity"
	"github.com/sentra-access/sentra/internal/observability/logger"
	"github.com/sentra-access/sentra/internal/observability/metrics"
	"github.com/sentra-access/sentra/internal/observability/tracing"
	"github.com/sentra-access/sentra/internal/store/postgres"
	transportHTTP "github.com/sentra-access/sentra/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting sentra access control engine")

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Initialize context
	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	} else {
		defer tracer.Shutdown(ctx)
	}

	// Initialize meter
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	}
	decisionMetrics, err := meter.NewDecisionMetrics()
	if err != nil {
		slog.Error("failed to initialize decision metrics", logger.Error(err))
	}

	// Initialize database
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
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to database")

	// Initialize repositories
	userRepo := postgres.NewUserRepository(db)
	roleRepo := postgres.NewRoleRepository(db)
	assignmentRepo := postgres.NewAssignmentRepository(db)
	credentialRepo := postgres.NewCredentialRepository(db)

	// Initialize helpers
	auditLogger := audit.NewSlogLogger()
	passwordHasher := identity.NewPasswordHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)

	var tokenSigner *credential.TokenSigner
	if cfg.Credential.SigningKey != "" {
		tokenSigner, err = credential.NewTokenSigner([]byte(cfg.Credential.SigningKey), cfg.Credential.Issuer)
		if err != nil {
			slog.Error("failed to initialize token signer", logger.Error(err))
			os.Exit(1)
		}
	}

	// Initialize services
	identityService := identity.NewService(userRepo, passwordHasher, auditLogger)
	authzService := authz.NewService(roleRepo, assignmentRepo, auditLogger)
	credentialService := credential.NewService(credentialRepo, auditLogger, tokenSigner)

	// Seed the built-in role catalog
	if err := authzService.SeedSystemRoles(ctx); err != nil {
		slog.Error("failed to seed system roles", logger.Error(err))
		os.Exit(1)
	}
	slog.Info("system roles seeded")

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// Initialize HTTP handler
	handler := transportHTTP.NewHandler(
		identityService,
		authzService,
		credentialService,
		auditLogger,
		decisionMetrics,
		transportHTTP.SessionConfig{TTL: cfg.Credential.SessionTTL},
	)

	// Create router
	router := transportHTTP.NewRouter(handler, rateLimiter)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start credential sweep goroutine
	go func() {
		ticker := time.NewTicker(cfg.Credential.SweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			removed, err := credentialService.CleanupExpired(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "failed to sweep expired credentials", logger.Error(err))
				continue
			}
			if removed > 0 {
				slog.InfoContext(ctx, "swept expired credentials", "removed", removed)
			}
		}
	}()

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}

func runMigrate(cfg *config.Config) error {
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
		return err
	}
	defer db.Close()

	fmt.Println("Applying initial schema...")
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}
	fmt.Println("Migration successful.")
	return nil
}
