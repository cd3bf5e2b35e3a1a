package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/andy/duesink/internal/channel"
	"github.com/andy/duesink/internal/config"
	"github.com/andy/duesink/internal/crypto"
	"github.com/andy/duesink/internal/db"
	"github.com/andy/duesink/internal/domain"
	"github.com/andy/duesink/internal/logger"
	"github.com/andy/duesink/internal/repository"
	"github.com/andy/duesink/internal/service"
	"golang.org/x/term"
)

// App is the dependency injection container for all application components
type App struct {
	Config *config.Config
	DB     *db.DB

	// Repositories
	ClientRepo         repository.ClientRepository
	InvoiceRepo        repository.InvoiceRepository
	CollectionRepo     repository.CollectionRepository
	ReconciliationRepo repository.ReconciliationRepository

	// Services
	InvoiceService        service.InvoiceService
	QuoteService          service.QuoteService
	CollectionService     service.CollectionService
	ReconciliationService service.ReconciliationService
	ReportService         service.ReportService

	// Senders per channel; every channel defaults to the log sender
	Senders channel.Registry
}

// New creates a new App instance, initializing all dependencies
// It handles:
// 1. Loading config (.env, config file, environment overrides)
// 2. Setting up logging
// 3. Getting the encryption key from the environment or keyring
// 4. Opening the database and running migrations
// 5. Creating repositories and services
func New(ctx context.Context) (*App, error) {
	cfg, err := config.LoadDefault()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return NewWithConfig(ctx, cfg)
}

// NewWithConfig creates an App with a provided config (useful for testing)
func NewWithConfig(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := logger.Setup(logger.LogConfig{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		TimeFormat: time.RFC3339,
		Output:     cfg.Log.Output,
	}); err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	password, err := resolveKey(crypto.NewKeyring(cfg.DBKey))
	if err != nil {
		return nil, err
	}

	database, err := db.Open(cfg.Database.Path, password)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Run migrations to ensure schema is up to date
	if err := database.RunMigrations(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	a, err := wire(cfg, database)
	if err != nil {
		database.Close()
		return nil, err
	}
	return a, nil
}

// wire builds repositories and services on an open database
func wire(cfg *config.Config, database *db.DB) (*App, error) {
	rates, err := cfg.Rates()
	if err != nil {
		return nil, err
	}
	chargeRates := service.ChargeRates{
		DailyInterest:   rates.DailyInterest,
		Penalty:         rates.Penalty,
		MonthlyDiscount: rates.MonthlyDiscount,
	}

	clientRepo := repository.NewClientRepo(database)
	invoiceRepo := repository.NewInvoiceRepo(database)
	collectionRepo := repository.NewCollectionRepo(database)
	reconciliationRepo := repository.NewReconciliationRepo(database)

	invoiceService := service.NewInvoiceService(invoiceRepo, clientRepo, service.InvoiceOptions{
		NumberPrefix:   cfg.Invoice.NumberPrefix,
		InterestPolicy: domain.InterestPolicy(cfg.Invoice.InterestPolicy),
	}, logger.WithComponent("invoices"))
	collectionService := service.NewCollectionService(
		collectionRepo, invoiceRepo, clientRepo,
		cfg.Collection.PhoneRegion,
		logger.WithComponent("collections"),
	)
	reconciliationService := service.NewReconciliationService(
		reconciliationRepo, invoiceRepo, chargeRates,
		logger.WithComponent("reconciliation"),
	)

	dryRun := channel.NewLogSender(logger.WithComponent("sender"))
	senders := channel.Registry{}
	for _, ch := range []domain.Channel{domain.ChannelEmail, domain.ChannelWhatsApp, domain.ChannelSMS, domain.ChannelPix} {
		senders[ch] = dryRun
	}

	return &App{
		Config:                cfg,
		DB:                    database,
		ClientRepo:            clientRepo,
		InvoiceRepo:           invoiceRepo,
		CollectionRepo:        collectionRepo,
		ReconciliationRepo:    reconciliationRepo,
		InvoiceService:        invoiceService,
		QuoteService:          service.NewQuoteService(chargeRates),
		CollectionService:     collectionService,
		ReconciliationService: reconciliationService,
		ReportService:         service.NewReportService(invoiceRepo),
		Senders:               senders,
	}, nil
}

// Backoff returns the configured retry policy for collection dispatch
func (a *App) Backoff() service.BackoffPolicy {
	c := a.Config.Collection
	if c.BackoffBase <= 0 {
		return service.NoRetry{}
	}
	return service.ExponentialBackoff{
		Base:        c.BackoffBase,
		Factor:      c.BackoffFactor,
		Max:         c.BackoffMax,
		MaxAttempts: c.MaxAttempts,
	}
}

// Close cleanly shuts down the application
func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

// resolveKey returns the stored key, prompting for one on first run
func resolveKey(keyring crypto.Keyring) (string, error) {
	password, err := keyring.GetKey()
	if err == nil {
		return password, nil
	}
	if !errors.Is(err, crypto.ErrNoKey) {
		return "", err
	}

	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", fmt.Errorf("no encryption key: set %s or run interactively once", config.EnvDBKey)
	}

	fmt.Fprintln(os.Stderr, "Setting up database encryption for the first time...")
	password, err = promptForPassword()
	if err != nil {
		return "", fmt.Errorf("failed to set password: %w", err)
	}

	// Store the key in keyring
	if err := keyring.SetKey(password); err != nil {
		return "", fmt.Errorf("failed to store encryption key: %w", err)
	}
	return password, nil
}

// promptForPassword prompts user for a new database password (first run)
func promptForPassword() (string, error) {
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Your billing data will be encrypted with a password.")
	fmt.Fprintln(os.Stderr, "This password will be stored securely in your system keyring.")
	fmt.Fprintln(os.Stderr)
	fmt.Fprint(os.Stderr, "Enter a password for database encryption: ")

	// Read password securely (no echo)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if len(password) == 0 {
		return "", fmt.Errorf("password cannot be empty")
	}

	fmt.Fprint(os.Stderr, "Confirm password: ")
	confirm, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read confirmation: %w", err)
	}

	if string(password) != string(confirm) {
		return "", fmt.Errorf("passwords do not match")
	}

	fmt.Fprintln(os.Stderr, "✓ Database encryption configured")
	return string(password), nil
}

// SaveConfig saves the current configuration to disk
func (a *App) SaveConfig() error {
	path := os.Getenv(config.EnvConfigPath)
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return a.Config.Save(path)
}
