package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

type pendingView struct {
	ID     string          `json:"id"`
	Origin string          `json:"origin"`
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List requests awaiting approval",
	RunE:  runPending,
}

var approveCmd = &cobra.Command{
	Use:   "approve REQUEST_ID",
	Short: "Approve a pending request",
	Long: `Approve a pending request. For data actions the daemon performs the
storage operation before resolving; the requesting page receives the result.`,
	Args: cobra.ExactArgs(1),
	RunE: runApprove,
}

var rejectCmd = &cobra.Command{
	Use:   "reject REQUEST_ID",
	Short: "Reject a pending request",
	Args:  cobra.ExactArgs(1),
	RunE:  runReject,
}

func init() {
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(rejectCmd)
}

func runPending(_ *cobra.Command, _ []string) error {
	var out struct {
		Requests []pendingView `json:"requests"`
	}
	if err := newDaemonClient().get("/pending", &out); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(out)
	}
	if len(out.Requests) == 0 {
		fmt.Println(Dim("No pending requests"))
		return nil
	}
	for _, req := range out.Requests {
		fmt.Printf("%s  %s  %s\n", Bold(req.ID), req.Action, req.Origin)
		if len(req.Data) > 0 {
			fmt.Printf("  %s\n", Dim("%s", req.Data))
		}
	}
	return nil
}

func runApprove(_ *cobra.Command, args []string) error {
	id := args[0]

	var view pendingView
	if err := newDaemonClient().get("/pending/"+id, &view); err != nil {
		return err
	}
	fmt.Printf("%s wants to %s\n", Bold(view.Origin), view.Action)
	if !PromptConfirm("Approve this request?") {
		Warning("Not approved; the request stays pending")
		return nil
	}

	if err := newDaemonClient().post("/pending/"+id+"/approve", nil, nil); err != nil {
		return err
	}
	Success("Approved %s", id)
	return nil
}

func runReject(_ *cobra.Command, args []string) error {
	id := args[0]
	if err := newDaemonClient().post("/pending/"+id+"/reject", nil, nil); err != nil {
		return err
	}
	Success("Rejected %s", id)
	return nil
}
