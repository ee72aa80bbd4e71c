package cmd

import (
	"github.com/spf13/cobra"
)

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Lock the wallet",
	Long:  `Lock the wallet, clearing the in-memory key. Connections survive a lock; data operations fail fast until the next unlock.`,
	RunE:  runLock,
}

func init() {
	rootCmd.AddCommand(lockCmd)
}

func runLock(_ *cobra.Command, _ []string) error {
	if err := newDaemonClient().post("/lock", nil, nil); err != nil {
		return err
	}
	Success("Wallet locked")
	return nil
}
