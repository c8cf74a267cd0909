package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"skwatch/internal/auth"
	"skwatch/internal/config"
	"skwatch/internal/datastore"
	"skwatch/internal/differ"
	"skwatch/internal/logger"
	"skwatch/internal/notifier"
	"skwatch/internal/portal"
	"skwatch/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "", "Path to the configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "skwatch: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadGlobalConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	appLogger, err := logger.New(cfg.LogConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	appLogger.Info().Msg("Starting appointment slot watcher")

	store, err := datastore.New(cfg.StorageConfig.SQLiteDBPath, appLogger)
	if err != nil {
		return fmt.Errorf("failed to open datastore: %w", err)
	}
	defer store.Close()

	browser := portal.NewBrowserManager(cfg.PortalConfig, appLogger)
	if err := browser.Start(); err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer browser.Stop()

	bot, err := notifier.NewBot(cfg.NotificationConfig, store, cfg.LogConfig.LogFile, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create operator bot: %w", err)
	}

	var prompter auth.Prompter
	if bot != nil {
		prompter = bot
	}
	solver := auth.NewTwoCaptchaSolver(cfg.CaptchaConfig, appLogger)
	var captchaSolver auth.CaptchaSolver
	if solver != nil {
		captchaSolver = solver
	}

	authManager := auth.NewManager(
		cfg.AuthConfig,
		cfg.PortalConfig,
		cfg.CaptchaConfig,
		store,
		browser,
		prompter,
		captchaSolver,
		cfg.StorageConfig.ScreenshotsDir,
		appLogger,
	)

	detector := differ.NewDetector(store, appLogger)
	checker := scheduler.NewChecker(cfg.SchedulerConfig, store, browser, authManager, detector, appLogger)

	var dispatcher scheduler.Dispatcher
	if bot != nil {
		dispatcher = notifier.NewDispatcher(store, bot, appLogger)
	}
	sched := scheduler.NewScheduler(
		cfg.SchedulerConfig,
		store,
		checker,
		dispatcher,
		cfg.StorageConfig.HeartbeatPath,
		appLogger,
	)

	if bot != nil {
		bot.Bind(authManager, sched)
		sched.SetCategoryDoneCallback(func(categoryKey string, result scheduler.CheckResult) {
			bot.OnCategoryDone(categoryKey, result.Findings, result.Errors)
		})
		if err := bot.Start(); err != nil {
			return fmt.Errorf("failed to start operator bot: %w", err)
		}
		defer bot.Stop()
	} else {
		appLogger.Warn().Msg("Operator channel not configured, findings will stay pending")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched.Start(ctx)

	<-ctx.Done()
	appLogger.Info().Msg("Shutdown signal received")
	sched.Stop()
	appLogger.Info().Msg("Watcher stopped")
	return nil
}
