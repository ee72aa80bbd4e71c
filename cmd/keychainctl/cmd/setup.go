package cmd

import (
	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create a new wallet",
	Long: `Create a new wallet: generates a keypair, encrypts the private key
under your password, and leaves the wallet unlocked.

The password can also be provided via the KEYCHAIN_PASSWORD environment variable.`,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	password, err := promptPasswordConfirm()
	if err != nil {
		return err
	}

	var out struct {
		DID string `json:"did"`
	}
	if err := newDaemonClient().post("/setup", map[string]string{"password": password}, &out); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(out)
	}
	Success("Wallet created")
	PrintKeyValue("DID", out.DID)
	Warning("Back up your key with 'keychainctl export' and store it somewhere safe")
	return nil
}
