package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	flowsEnvironmentID string
	flowsRunStatus     string
	flowsRunTop        int
	flowsRunToken      string
)

func init() {
	for _, c := range []*cobra.Command{flowsListCmd, flowsGetCmd, flowsEnableCmd, flowsDisableCmd, flowsDeleteCmd, flowsRunsCmd, flowsCancelRunCmd} {
		c.Flags().StringVar(&flowsEnvironmentID, "environment-id", "", "Environment ID (default: configured)")
	}
	flowsRunsCmd.Flags().StringVar(&flowsRunStatus, "status", "", "Filter runs by status (e.g., Failed, Succeeded)")
	flowsRunsCmd.Flags().IntVar(&flowsRunTop, "top", 0, "Page size")
	flowsRunsCmd.Flags().StringVar(&flowsRunToken, "continuation-token", "", "Continuation token from a previous page")

	flowsCmd.AddCommand(flowsListCmd, flowsGetCmd, flowsEnableCmd, flowsDisableCmd, flowsDeleteCmd, flowsRunsCmd, flowsCancelRunCmd)
	rootCmd.AddCommand(flowsCmd)
}

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "Manage cloud flows",
}

var flowsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cloud flows in an environment",
	RunE: func(cmd *cobra.Command, args []string) error {
		envID, err := environmentID(flowsEnvironmentID)
		if err != nil {
			return err
		}
		pc, err := platformClient(cmd.Context())
		if err != nil {
			return err
		}
		flows, err := pc.ListCloudFlows(cmd.Context(), envID)
		if err != nil {
			return err
		}
		for _, f := range flows {
			state, _ := f.Properties["state"].(string)
			display, _ := f.Properties["displayName"].(string)
			fmt.Printf("%-40s %-10s %s\n", f.Name, state, display)
		}
		return nil
	},
}

var flowsGetCmd = &cobra.Command{
	Use:   "get <flow-id>",
	Short: "Show one cloud flow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		envID, err := environmentID(flowsEnvironmentID)
		if err != nil {
			return err
		}
		pc, err := platformClient(cmd.Context())
		if err != nil {
			return err
		}
		flow, err := pc.GetCloudFlow(cmd.Context(), envID, args[0])
		if err != nil {
			return err
		}
		return printJSON(flow)
	},
}

func setFlowState(state string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		envID, err := environmentID(flowsEnvironmentID)
		if err != nil {
			return err
		}
		pc, err := platformClient(cmd.Context())
		if err != nil {
			return err
		}
		flow, err := pc.SetCloudFlowState(cmd.Context(), envID, args[0], state)
		if err != nil {
			return err
		}
		fmt.Printf("Flow %s is now %s.\n", flow.Name, state)
		return nil
	}
}

var flowsEnableCmd = &cobra.Command{
	Use:   "enable <flow-id>",
	Short: "Start a cloud flow",
	Args:  cobra.ExactArgs(1),
	RunE:  setFlowState("Started"),
}

var flowsDisableCmd = &cobra.Command{
	Use:   "disable <flow-id>",
	Short: "Stop a cloud flow",
	Args:  cobra.ExactArgs(1),
	RunE:  setFlowState("Stopped"),
}

var flowsDeleteCmd = &cobra.Command{
	Use:   "delete <flow-id>",
	Short: "Delete a cloud flow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		envID, err := environmentID(flowsEnvironmentID)
		if err != nil {
			return err
		}
		pc, err := platformClient(cmd.Context())
		if err != nil {
			return err
		}
		if err := pc.DeleteCloudFlow(cmd.Context(), envID, args[0]); err != nil {
			return err
		}
		fmt.Println("Flow deleted.")
		return nil
	},
}

var flowsRunsCmd = &cobra.Command{
	Use:   "runs <flow-id>",
	Short: "List runs of a cloud flow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		envID, err := environmentID(flowsEnvironmentID)
		if err != nil {
			return err
		}
		pc, err := platformClient(cmd.Context())
		if err != nil {
			return err
		}
		page, err := pc.ListCloudFlowRuns(cmd.Context(), envID, args[0], flowsRunStatus, flowsRunTop, flowsRunToken)
		if err != nil {
			return err
		}
		if err := printJSON(page.Runs); err != nil {
			return err
		}
		if page.ContinuationToken != "" {
			fmt.Printf("More results: --continuation-token %s\n", page.ContinuationToken)
		}
		return nil
	},
}

var flowsCancelRunCmd = &cobra.Command{
	Use:   "cancel-run <flow-id> <run-name>",
	Short: "Cancel a running flow run",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		envID, err := environmentID(flowsEnvironmentID)
		if err != nil {
			return err
		}
		pc, err := platformClient(cmd.Context())
		if err != nil {
			return err
		}
		if err := pc.CancelCloudFlowRun(cmd.Context(), envID, args[0], args[1]); err != nil {
			return err
		}
		fmt.Println("Run cancellation requested.")
		return nil
	},
}
