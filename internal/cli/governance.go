package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pacx-labs/pacx/internal/governance"
	"github.com/pacx-labs/pacx/internal/poll"
)

var (
	govBody          string
	govWait          bool
	govWaitTimeout   time.Duration
	govEnvironmentID string
	govGroupID       string
	govPolicyID      string
)

func init() {
	govReportCreateCmd.Flags().StringVar(&govBody, "body", "", "Report request as inline JSON or @file")
	govReportCreateCmd.MarkFlagRequired("body")
	govReportCreateCmd.Flags().BoolVar(&govWait, "wait", false, "Wait for the report to complete")
	govReportCreateCmd.Flags().DurationVar(&govWaitTimeout, "timeout", 10*time.Minute, "Wait timeout")
	govReportWaitCmd.Flags().DurationVar(&govWaitTimeout, "timeout", 10*time.Minute, "Wait timeout")

	govRuleCreateCmd.Flags().StringVar(&govBody, "body", "", "Policy payload as inline JSON or @file")
	govRuleUpdateCmd.Flags().StringVar(&govBody, "body", "", "Policy payload as inline JSON or @file")
	govRuleCreateCmd.MarkFlagRequired("body")
	govRuleUpdateCmd.MarkFlagRequired("body")

	govRuleAssignCmd.Flags().StringVar(&govEnvironmentID, "environment-id", "", "Target environment")
	govRuleAssignCmd.Flags().StringVar(&govGroupID, "environment-group-id", "", "Target environment group")

	govAssignListCmd.Flags().StringVar(&govEnvironmentID, "environment-id", "", "Filter by environment")
	govAssignListCmd.Flags().StringVar(&govGroupID, "environment-group-id", "", "Filter by environment group")
	govAssignListCmd.Flags().StringVar(&govPolicyID, "policy-id", "", "Filter by policy")

	govReportCmd.AddCommand(govReportCreateCmd, govReportListCmd, govReportGetCmd, govReportWaitCmd)
	govRuleCmd.AddCommand(govRuleCreateCmd, govRuleListCmd, govRuleGetCmd, govRuleUpdateCmd,
		govRuleAssignCmd, govRuleAssignmentsCmd, govAssignListCmd)
	govCmd.AddCommand(govReportCmd, govRuleCmd)
	rootCmd.AddCommand(govCmd)
}

var govCmd = &cobra.Command{
	Use:   "governance",
	Short: "Cross-tenant reports and rule-based policies",
}

var govReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Cross-tenant connection reports",
}

var govReportCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Request a cross-tenant connection report",
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := readBodyArg(govBody)
		if err != nil {
			return err
		}
		gc, err := governanceClient(cmd.Context())
		if err != nil {
			return err
		}
		op, err := gc.CreateCrossTenantReport(cmd.Context(), body)
		if err != nil {
			return err
		}
		id := op.ResourceID()
		if !govWait {
			fmt.Printf("Report requested. ID: %s\n", id)
			return nil
		}
		report, err := gc.WaitForReport(cmd.Context(), id, poll.Options{Timeout: govWaitTimeout})
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

var govReportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cross-tenant connection reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		gc, err := governanceClient(cmd.Context())
		if err != nil {
			return err
		}
		reports, err := gc.ListCrossTenantReports(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(reports)
	},
}

var govReportGetCmd = &cobra.Command{
	Use:   "get <report-id>",
	Short: "Show a cross-tenant connection report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gc, err := governanceClient(cmd.Context())
		if err != nil {
			return err
		}
		report, err := gc.GetCrossTenantReport(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

var govReportWaitCmd = &cobra.Command{
	Use:   "wait <report-id>",
	Short: "Poll a report until it completes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gc, err := governanceClient(cmd.Context())
		if err != nil {
			return err
		}
		report, err := gc.WaitForReport(cmd.Context(), args[0], poll.Options{Timeout: govWaitTimeout})
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

var govRuleCmd = &cobra.Command{
	Use:   "rule",
	Short: "Rule-based policies",
}

var govRuleCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a rule-based policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := readBodyArg(govBody)
		if err != nil {
			return err
		}
		gc, err := governanceClient(cmd.Context())
		if err != nil {
			return err
		}
		policy, err := gc.CreateRulePolicy(cmd.Context(), body)
		if err != nil {
			return err
		}
		return printJSON(policy)
	},
}

var govRuleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rule-based policies",
	RunE: func(cmd *cobra.Command, args []string) error {
		gc, err := governanceClient(cmd.Context())
		if err != nil {
			return err
		}
		policies, err := gc.ListRulePolicies(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(policies)
	},
}

var govRuleGetCmd = &cobra.Command{
	Use:   "get <policy-id>",
	Short: "Show one rule-based policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gc, err := governanceClient(cmd.Context())
		if err != nil {
			return err
		}
		policy, err := gc.GetRulePolicy(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(policy)
	},
}

var govRuleUpdateCmd = &cobra.Command{
	Use:   "update <policy-id>",
	Short: "Update a rule-based policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := readBodyArg(govBody)
		if err != nil {
			return err
		}
		gc, err := governanceClient(cmd.Context())
		if err != nil {
			return err
		}
		policy, err := gc.UpdateRulePolicy(cmd.Context(), args[0], body)
		if err != nil {
			return err
		}
		return printJSON(policy)
	},
}

var govRuleAssignCmd = &cobra.Command{
	Use:   "assign <policy-id>",
	Short: "Assign a policy to an environment or environment group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if (govEnvironmentID == "") == (govGroupID == "") {
			return fmt.Errorf("provide exactly one of --environment-id or --environment-group-id")
		}
		gc, err := governanceClient(cmd.Context())
		if err != nil {
			return err
		}
		var op *governance.Operation
		if govEnvironmentID != "" {
			op, err = gc.AssignToEnvironment(cmd.Context(), args[0], govEnvironmentID)
		} else {
			op, err = gc.AssignToEnvironmentGroup(cmd.Context(), args[0], govGroupID)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Assignment accepted. ID: %s\n", op.ResourceID())
		return nil
	},
}

var govRuleAssignmentsCmd = &cobra.Command{
	Use:   "list-policy-assignments <policy-id>",
	Short: "List assignments of one policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gc, err := governanceClient(cmd.Context())
		if err != nil {
			return err
		}
		assignments, err := gc.ListAssignmentsByPolicy(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(assignments)
	},
}

var govAssignListCmd = &cobra.Command{
	Use:   "assignments",
	Short: "List rule assignments with optional filters",
	RunE: func(cmd *cobra.Command, args []string) error {
		gc, err := governanceClient(cmd.Context())
		if err != nil {
			return err
		}
		assignments, err := gc.ListAssignments(cmd.Context(), govEnvironmentID, govGroupID, govPolicyID)
		if err != nil {
			return err
		}
		return printJSON(assignments)
	},
}
