package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	goeen_log "github.com/eencloud/goeen/log"

	"github.com/cleanermarketing/cleaner-marketing-forms-sub004/internal/api"
	"github.com/cleanermarketing/cleaner-marketing-forms-sub004/internal/config"
	"github.com/cleanermarketing/cleaner-marketing-forms-sub004/internal/core"
	"github.com/cleanermarketing/cleaner-marketing-forms-sub004/internal/forms"
	"github.com/cleanermarketing/cleaner-marketing-forms-sub004/internal/notify"
	"github.com/cleanermarketing/cleaner-marketing-forms-sub004/internal/pos"
	_ "github.com/cleanermarketing/cleaner-marketing-forms-sub004/internal/pos/cleancloud"
	_ "github.com/cleanermarketing/cleaner-marketing-forms-sub004/internal/pos/smrt"
	"github.com/cleanermarketing/cleaner-marketing-forms-sub004/internal/settings"
	"github.com/cleanermarketing/cleaner-marketing-forms-sub004/internal/signup"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	logger := goeen_log.NewContext(os.Stdout, "", goeen_log.LevelInfo).GetLogger("signup-service", goeen_log.LevelInfo)
	logger.Info("Starting signup service...")

	var cfg *config.ParsedConfig
	var err error
	if *configPath != "" {
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			logger.Fatalf("Failed to load config: %v", err)
		}
	} else {
		logger.Info("No config file given, using defaults")
		cfg = config.Default()
	}

	dataDir := cfg.Data.Dir
	if dataDir == "" {
		dataDir = core.GetDataDirectory()
	}
	dbDir := filepath.Join(dataDir, "badger_db")
	store, err := core.NewSubmissionStore(dbDir, cfg.Data.MaxDBSizeGB, logger)
	if err != nil {
		logger.Fatalf("Failed to create submission store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Errorf("Failed to close submission store: %v", err)
		}
	}()

	events, err := core.NewEventLogger("signup-service",
		filepath.Join(dataDir, "events.jsonl"), core.INFO)
	if err != nil {
		logger.Fatalf("Failed to create event logger: %v", err)
	}
	defer func() { _ = events.Close() }()

	stdLogger := log.New(os.Stderr, "", log.LstdFlags)
	audit := core.NewAuditLogger(filepath.Join(dataDir, "audit_logs"), 100, stdLogger)

	webhook := notify.NewWebhookClient(cfg.WebhookTimeout, cfg.Webhooks.MaxRetries, logger)
	email := notify.NewEmailSender(notify.EmailSettings{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
		AdminTo:  cfg.Email.AdminTo,
	}, logger)
	notifier := notify.NewNotifier(cfg.Webhooks.URLs, webhook, email, logger)

	settingsManager := settings.NewManager(logger)
	integrations := pos.NewManager(logger)
	settingsManager.SetUpdateCallback(func(icfg *settings.IntegrationConfig) {
		if err := integrations.HandleConfigChange(icfg); err != nil {
			logger.Errorf("Failed to apply integration config: %v", err)
		} else if icfg != nil {
			events.LogIntegrationSwitched(icfg.Vendor)
		}
	})
	defer func() { _ = integrations.Stop() }()

	if cfg.Integration.Vendor != "" {
		raw, err := json.Marshal(cfg.Integration.Config)
		if err != nil {
			logger.Fatalf("Failed to serialize integration config: %v", err)
		}
		payload, _ := json.Marshal(settings.IntegrationConfig{
			Vendor: cfg.Integration.Vendor,
			Config: raw,
		})
		if err := settingsManager.UpdateSettings(payload); err != nil {
			logger.Fatalf("Failed to apply initial integration config: %v", err)
		}
	} else {
		logger.Warningf("No POS integration configured, signups will be unavailable until one is set")
	}

	tokens := signup.NewStepTokens(cfg.Tokens.Secret, cfg.TokenTTL)
	wizard := signup.NewWizard(store, integrations, tokens, notifier, events, logger,
		cfg.Signup.LoginURL, cfg.Signup.StoreURL)
	formsHandler := forms.NewHandler(store, notifier, events, logger)

	apiAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := api.NewServer(apiAddr, logger, wizard, formsHandler,
		settingsManager, integrations, store, audit, notifier)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("API Server failed: %v", err)
		}
	}()

	events.LogStartup(map[string]interface{}{
		"port":   cfg.Server.Port,
		"vendor": cfg.Integration.Vendor,
		"mode":   os.Getenv("MODE"),
	})

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.Errorf("API Server stop failed: %v", err)
	}
	if err := integrations.Stop(); err != nil {
		logger.Errorf("Integration stop failed: %v", err)
	}
	logger.Info("Signup service stopped")
}
