// Package cli implements the remindbot commands.
package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Kerhoff/remindbot/internal/config"
	"github.com/Kerhoff/remindbot/internal/repository"
	"github.com/Kerhoff/remindbot/internal/service"
	"github.com/Kerhoff/remindbot/pkg/logger"
)

var (
	storeFile   string
	storeDriver string
)

// RootCmd is the top-level command. Without a subcommand it runs the bot.
var RootCmd = &cobra.Command{
	Use:          "remindbot",
	Short:        "Recurring reminder bot for Telegram",
	Long:         "A Telegram bot that nags you about recurring tasks until you mark them done or postpone them.",
	SilenceUsage: true,
	RunE:         runBot,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&storeFile, "file", "f", "", "Reminders file (default: $REMINDERS_FILE or reminders.json)")
	RootCmd.PersistentFlags().StringVar(&storeDriver, "driver", "", "Store driver: json or bolt (default: $STORE_DRIVER or json)")
}

// loadConfig reads the environment and applies command line overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if storeFile != "" {
		cfg.RemindersFile = storeFile
	}
	if storeDriver != "" {
		cfg.StoreDriver = storeDriver
	}
	return cfg, nil
}

// openService wires logger, store and service for commands that only need
// the reminder book
func openService(cfg *config.Config, opts ...service.Option) (*service.Service, repository.ReminderStore, *logrus.Logger, error) {
	l := logger.New(cfg.LogLevel, cfg.LogFormat)
	store, err := config.NewStore(cfg, l)
	if err != nil {
		return nil, nil, nil, err
	}
	opts = append([]service.Option{service.WithPostponeDelay(cfg.PostponeDelay)}, opts...)
	return service.New(store, l, opts...), store, l, nil
}
