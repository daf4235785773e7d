package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	licBody          string
	licEnvironmentID string
)

func init() {
	licPolicyCreateCmd.Flags().StringVar(&licBody, "body", "", "Policy payload as inline JSON or @file")
	licPolicyUpdateCmd.Flags().StringVar(&licBody, "body", "", "Policy payload as inline JSON or @file")
	licPolicyCreateCmd.MarkFlagRequired("body")
	licPolicyUpdateCmd.MarkFlagRequired("body")
	licEnvShowCmd.Flags().StringVar(&licEnvironmentID, "environment-id", "", "Environment ID (default: configured)")

	licPolicyCmd.AddCommand(licPolicyListCmd, licPolicyGetCmd, licPolicyCreateCmd,
		licPolicyUpdateCmd, licPolicyDeleteCmd, licPolicyRefreshCmd)
	licEnvCmd.AddCommand(licEnvAddCmd, licEnvRemoveCmd, licEnvListCmd, licEnvShowCmd)
	licCmd.AddCommand(licPolicyCmd, licEnvCmd, licCapacityCmd, licStorageWarningsCmd, licCurrencyReportsCmd)
	rootCmd.AddCommand(licCmd)
}

var licCmd = &cobra.Command{
	Use:   "licensing",
	Short: "Billing policies and tenant capacity",
}

var licPolicyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage billing policies",
}

var licPolicyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List billing policies",
	RunE: func(cmd *cobra.Command, args []string) error {
		lc, err := licensingClient(cmd.Context())
		if err != nil {
			return err
		}
		policies, err := lc.ListBillingPolicies(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(policies)
	},
}

var licPolicyGetCmd = &cobra.Command{
	Use:   "get <policy-id>",
	Short: "Show one billing policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lc, err := licensingClient(cmd.Context())
		if err != nil {
			return err
		}
		policy, err := lc.GetBillingPolicy(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(policy)
	},
}

var licPolicyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a billing policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := readBodyArg(licBody)
		if err != nil {
			return err
		}
		lc, err := licensingClient(cmd.Context())
		if err != nil {
			return err
		}
		policy, err := lc.CreateBillingPolicy(cmd.Context(), body)
		if err != nil {
			return err
		}
		return printJSON(policy)
	},
}

var licPolicyUpdateCmd = &cobra.Command{
	Use:   "update <policy-id>",
	Short: "Update a billing policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := readBodyArg(licBody)
		if err != nil {
			return err
		}
		lc, err := licensingClient(cmd.Context())
		if err != nil {
			return err
		}
		policy, err := lc.UpdateBillingPolicy(cmd.Context(), args[0], body)
		if err != nil {
			return err
		}
		return printJSON(policy)
	},
}

var licPolicyDeleteCmd = &cobra.Command{
	Use:   "delete <policy-id>",
	Short: "Delete a billing policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lc, err := licensingClient(cmd.Context())
		if err != nil {
			return err
		}
		if err := lc.DeleteBillingPolicy(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("Billing policy deleted.")
		return nil
	},
}

var licPolicyRefreshCmd = &cobra.Command{
	Use:   "refresh <policy-id>",
	Short: "Refresh billing policy provisioning",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lc, err := licensingClient(cmd.Context())
		if err != nil {
			return err
		}
		op, err := lc.RefreshBillingPolicyProvisioning(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if op.OperationLocation != "" {
			fmt.Printf("Refresh started. Operation: %s\n", op.OperationLocation)
		} else {
			fmt.Println("Refresh completed.")
		}
		return nil
	},
}

var licEnvCmd = &cobra.Command{
	Use:   "env",
	Short: "Manage billing policy environment links",
}

var licEnvAddCmd = &cobra.Command{
	Use:   "add <policy-id> <environment-id>",
	Short: "Attach an environment to a billing policy",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		lc, err := licensingClient(cmd.Context())
		if err != nil {
			return err
		}
		if err := lc.AddBillingPolicyEnvironment(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Println("Environment attached.")
		return nil
	},
}

var licEnvRemoveCmd = &cobra.Command{
	Use:   "remove <policy-id> <environment-id>",
	Short: "Detach an environment from a billing policy",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		lc, err := licensingClient(cmd.Context())
		if err != nil {
			return err
		}
		if err := lc.RemoveBillingPolicyEnvironment(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Println("Environment detached.")
		return nil
	},
}

var licEnvListCmd = &cobra.Command{
	Use:   "list <policy-id>",
	Short: "List environments attached to a billing policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lc, err := licensingClient(cmd.Context())
		if err != nil {
			return err
		}
		envs, err := lc.ListBillingPolicyEnvironments(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(envs)
	},
}

var licEnvShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the billing policy of an environment",
	RunE: func(cmd *cobra.Command, args []string) error {
		envID, err := environmentID(licEnvironmentID)
		if err != nil {
			return err
		}
		lc, err := licensingClient(cmd.Context())
		if err != nil {
			return err
		}
		policy, err := lc.GetEnvironmentBillingPolicy(cmd.Context(), envID)
		if err != nil {
			return err
		}
		return printJSON(policy)
	},
}

var licCapacityCmd = &cobra.Command{
	Use:   "capacity",
	Short: "Show tenant capacity details",
	RunE: func(cmd *cobra.Command, args []string) error {
		lc, err := licensingClient(cmd.Context())
		if err != nil {
			return err
		}
		capacity, err := lc.GetTenantCapacityDetails(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(capacity)
	},
}

var licStorageWarningsCmd = &cobra.Command{
	Use:   "storage-warnings",
	Short: "List tenant storage warnings",
	RunE: func(cmd *cobra.Command, args []string) error {
		lc, err := licensingClient(cmd.Context())
		if err != nil {
			return err
		}
		warnings, err := lc.ListStorageWarnings(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(warnings)
	},
}

var licCurrencyReportsCmd = &cobra.Command{
	Use:   "currency-reports",
	Short: "List currency consumption reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		lc, err := licensingClient(cmd.Context())
		if err != nil {
			return err
		}
		reports, err := lc.ListCurrencyReports(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(reports)
	},
}
