package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/rebel7/certserver/internal/api"
	"github.com/rebel7/certserver/internal/api/handlers"
	"github.com/rebel7/certserver/internal/config"
	"github.com/rebel7/certserver/internal/db"
	"github.com/rebel7/certserver/internal/db/repository"
	"github.com/rebel7/certserver/internal/logging"
)

var (
	// Version information (set via ldflags)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional; env vars suffice)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ESG Certificate Server\n")
		fmt.Printf("Version:    %s\n", Version)
		fmt.Printf("Commit:     %s\n", Commit)
		fmt.Printf("Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	// Pick up a local .env before reading the environment
	_ = godotenv.Load()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Logging)
	log.Infof("Starting ESG Certificate Server %s (commit: %s)", Version, Commit)

	for key := range cfg.Missing() {
		log.Warnf("Configuration key %s is not set; dependent endpoints will answer ENV_MISSING", key)
	}

	// Initialize the record store. A missing database path is survivable:
	// the handlers report ENV_MISSING per call instead.
	var (
		certStore  handlers.CertStore
		auditStore handlers.AuditStore
		database   *db.DB
	)
	if cfg.Database.Path != "" {
		log.Infof("Connecting to database: %s", cfg.Database.Path)
		database, err = db.New(cfg.Database.Path)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()

		log.Info("Running database migrations...")
		if err := db.RunMigrations(database, cfg.Database.Table); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}

		certStore = repository.NewCertRepository(database.DB, cfg.Database.Table)
		auditStore = repository.NewAuditRepository(database.DB)
	}

	// Create HTTP server
	server := api.NewServer(cfg, log, certStore, auditStore)

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Start server in a goroutine
	go func() {
		log.Infof("Starting HTTP server on %s", cfg.Server.ListenAddr)
		if err := server.Run(); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	<-quit
	log.Info("Shutting down server...")

	if database != nil {
		database.Close()
	}

	log.Info("Server stopped")
}
