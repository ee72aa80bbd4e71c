package cmd

import (
	"github.com/spf13/cobra"
)

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Unlock the wallet",
	Long: `Unlock the wallet by entering your password.

The password can also be provided via the KEYCHAIN_PASSWORD environment variable.`,
	RunE: runUnlock,
}

func init() {
	rootCmd.AddCommand(unlockCmd)
}

func runUnlock(_ *cobra.Command, _ []string) error {
	password, err := promptPassword("Enter password: ")
	if err != nil {
		return err
	}

	if err := newDaemonClient().post("/unlock", map[string]string{"password": password}, nil); err != nil {
		return err
	}

	Success("Wallet unlocked")
	return nil
}
