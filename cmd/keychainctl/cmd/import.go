package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import PRIVATE_KEY_HEX",
	Short: "Import an existing private key",
	Long: `Import a hex-encoded private key as the wallet key. The key is
encrypted under your password before it touches disk.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(_ *cobra.Command, args []string) error {
	privHex := args[0]
	if privHex == "" {
		return fmt.Errorf("private key is required")
	}

	password, err := promptPasswordConfirm()
	if err != nil {
		return err
	}

	var out struct {
		DID string `json:"did"`
	}
	err = newDaemonClient().post("/import", map[string]string{
		"password":   password,
		"privateKey": privHex,
	}, &out)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(out)
	}
	Success("Wallet imported")
	PrintKeyValue("DID", out.DID)
	return nil
}
