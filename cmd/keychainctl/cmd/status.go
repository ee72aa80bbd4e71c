package cmd

import (
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show wallet state",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, _ []string) error {
	var out struct {
		State string `json:"state"`
		DID   string `json:"did"`
	}
	if err := newDaemonClient().get("/status", &out); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(out)
	}

	switch out.State {
	case "unlocked":
		Success("Wallet is unlocked")
	case "locked":
		Warning("Wallet is locked")
	default:
		Warning("No wallet set up yet, run 'keychainctl setup'")
	}
	if out.DID != "" {
		PrintKeyValue("DID", out.DID)
	}
	return nil
}
