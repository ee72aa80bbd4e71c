// Package cmd provides the CLI commands for keychainctl.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	adminAddr  string
	jsonOutput bool
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "keychainctl",
	Short: "Keychain CLI - manage the local keychain daemon",
	Long: `keychainctl manages the wallet held by a running keychaind daemon.

Get started:
  keychainctl setup          Create a new wallet
  keychainctl status         Show wallet state
  keychainctl unlock         Unlock the wallet
  keychainctl pending        List requests awaiting approval
  keychainctl approve ID     Approve a pending request

Examples:
  keychainctl setup
  keychainctl sites
  keychainctl disconnect https://app.example
  keychainctl approve 2f9c…`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&adminAddr, "addr", "", "daemon admin address (default 127.0.0.1:7468)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	viper.BindPFlag("admin.addr", rootCmd.PersistentFlags().Lookup("addr"))
}

func initConfig() {
	viper.SetDefault("admin.addr", "127.0.0.1:7468")
	viper.SetEnvPrefix("KEYCHAIN")
	viper.AutomaticEnv()
}
