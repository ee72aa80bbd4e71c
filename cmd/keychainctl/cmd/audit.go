package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var auditLimit int

type auditEntry struct {
	ID      string    `json:"id"`
	Time    time.Time `json:"time"`
	Origin  string    `json:"origin"`
	Action  string    `json:"action"`
	Outcome string    `json:"outcome"`
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent approval decisions",
	RunE:  runAudit,
}

func init() {
	auditCmd.Flags().IntVar(&auditLimit, "limit", 20, "maximum entries to show")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(_ *cobra.Command, _ []string) error {
	var out struct {
		Entries []auditEntry `json:"entries"`
	}
	if err := newDaemonClient().get(fmt.Sprintf("/audit?limit=%d", auditLimit), &out); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(out)
	}
	if len(out.Entries) == 0 {
		fmt.Println(Dim("No audit entries"))
		return nil
	}
	for _, e := range out.Entries {
		marker := Dim(e.Outcome)
		switch e.Outcome {
		case "approved":
			marker = successColor.Sprint(e.Outcome)
		case "rejected", "timeout":
			marker = errorColor.Sprint(e.Outcome)
		}
		fmt.Printf("%s  %-12s %-14s %s\n", e.Time.Local().Format(time.RFC3339), marker, e.Action, e.Origin)
	}
	return nil
}
