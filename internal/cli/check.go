package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kerhoff/remindbot/internal/models"
	"github.com/Kerhoff/remindbot/internal/service"
)

func init() {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "List reminders that are due",
		Long:  "Run a single due check against the reminders file and print what would be sent. Nothing is sent and the file is never written.",
		RunE:  runCheck,
	}

	cmd.Flags().String("at", "", "Check as of this time (2006-01-02T15:04:05, default: now)")
	cmd.Flags().Bool("json", false, "Print JSON instead of text")

	RootCmd.AddCommand(cmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	at, _ := cmd.Flags().GetString("at")
	asJSON, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	opts := []service.Option{service.ReadOnly()}
	if at != "" {
		t, err := models.ParseTimestamp(at)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
		opts = append(opts, service.WithClock(func() time.Time { return t }))
	}

	svc, store, _, err := openService(cfg, opts...)
	if err != nil {
		return err
	}
	defer store.Close()

	due, err := svc.Due(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		type dueEntry struct {
			ChatID   string          `json:"chat_id"`
			Reminder models.Reminder `json:"reminder"`
		}
		entries := make([]dueEntry, 0, len(due))
		for _, d := range due {
			entries = append(entries, dueEntry{ChatID: d.ChatID, Reminder: d.Reminder})
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(due) == 0 {
		fmt.Fprintln(out, "No reminders due.")
		return nil
	}
	for _, d := range due {
		fmt.Fprintf(out, "%s\t%s\t%s\n", d.ChatID, d.Reminder.Name, models.FormatTimestamp(d.Reminder.NextDue))
	}
	return nil
}
