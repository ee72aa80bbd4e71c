package cmd

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "List connected sites",
	RunE:  runSites,
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect ORIGIN",
	Short: "Disconnect a site",
	Long: `Remove an origin from the connection allowlist. Open pages on that
origin are force-disconnected immediately.`,
	Args: cobra.ExactArgs(1),
	RunE: runDisconnect,
}

func init() {
	rootCmd.AddCommand(sitesCmd)
	rootCmd.AddCommand(disconnectCmd)
}

func runSites(_ *cobra.Command, _ []string) error {
	var out struct {
		Sites []string `json:"sites"`
	}
	if err := newDaemonClient().get("/sites", &out); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(out)
	}
	if len(out.Sites) == 0 {
		fmt.Println(Dim("No connected sites"))
		return nil
	}
	for _, site := range out.Sites {
		fmt.Println(site)
	}
	return nil
}

func runDisconnect(_ *cobra.Command, args []string) error {
	origin := args[0]
	if err := newDaemonClient().delete("/sites/" + url.PathEscape(origin)); err != nil {
		return err
	}
	Success("Disconnected %s", origin)
	return nil
}
