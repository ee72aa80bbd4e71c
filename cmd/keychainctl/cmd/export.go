package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the raw private key",
	Long: `Export the hex-encoded private key after verifying your password.

The key is printed to stdout; everything else goes to stderr, so the output
can be piped safely.`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func runExport(_ *cobra.Command, _ []string) error {
	password, err := promptPassword("Enter password: ")
	if err != nil {
		return err
	}

	var out struct {
		PrivateKey string `json:"privateKey"`
	}
	if err := newDaemonClient().post("/export", map[string]string{"password": password}, &out); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(out)
	}
	fmt.Println(out.PrivateKey)
	return nil
}
