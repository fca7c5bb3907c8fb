package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kerhoff/remindbot/internal/api"
	"github.com/Kerhoff/remindbot/internal/handlers"
	"github.com/Kerhoff/remindbot/internal/service"
	"github.com/Kerhoff/remindbot/internal/telegram"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the bot, the due-check loop and the HTTP API",
		RunE:  runBot,
	})
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireTelegram(); err != nil {
		return err
	}

	svc, store, l, err := openService(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	l.Info("Starting RemindBoT...")

	// Telegram bot
	bot, err := telegram.NewBot(cfg.TelegramToken, l)
	if err != nil {
		return err
	}

	// Register command handlers
	bot.RegisterCommand("start", handlers.NewStartHandler(l))
	bot.RegisterCommand("help", handlers.NewHelpHandler(l))

	create := handlers.NewCreateHandler(svc, l)
	bot.RegisterCommand("create", create)
	bot.RegisterCommand("crear", create)

	del := handlers.NewDeleteHandler(svc, l)
	bot.RegisterCommand("delete", del)
	bot.RegisterCommand("borrar", del)

	list := handlers.NewListHandler(svc, l)
	bot.RegisterCommand("reminders", list)
	bot.RegisterCommand("list", list)

	callbacks := handlers.NewReminderCallbackHandler(svc, l)
	bot.RegisterCallback(telegram.ActionDelete, callbacks)
	bot.RegisterCallback(telegram.ActionDone, callbacks)
	bot.RegisterCallback(telegram.ActionPostpone, callbacks)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
			l.Info("Received shutdown signal...")
			cancel()
		case <-ctx.Done():
		}
	}()

	// Start reminder scheduler
	notifier := handlers.NewDueNotifier(bot, svc.PostponeDelay())
	go svc.StartReminderScheduler(ctx, service.SchedulerConfig{
		Interval:     cfg.CheckInterval,
		InitialDelay: cfg.CheckDelay,
	}, notifier.Notify)

	// HTTP API and metrics
	var httpServer *http.Server
	if cfg.Port != "" {
		httpServer = &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           api.NewServer(svc, l).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			l.Infof("HTTP server listening on :%s", cfg.Port)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				l.Errorf("HTTP server error: %v", err)
			}
		}()
	}

	// Start Telegram bot polling
	go func() {
		if err := bot.Start(ctx); err != nil {
			l.Errorf("Bot error: %v", err)
			cancel()
		}
	}()

	l.Info("RemindBoT started successfully")

	<-ctx.Done()

	if httpServer != nil {
		l.Info("Shutting down HTTP server...")
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		httpServer.Shutdown(shutdownCtx)
	}

	l.Info("RemindBoT stopped")
	return nil
}
