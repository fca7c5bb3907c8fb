package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/Kerhoff/remindbot/internal/service"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "export",
		Short: "Print the reminders document as JSON",
		RunE:  runExport,
	})
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	svc, store, _, err := openService(cfg, service.ReadOnly())
	if err != nil {
		return err
	}
	defer store.Close()

	book, err := svc.Book(cmd.Context())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(book)
}
