package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	tenantBody  string
	tenantAsync bool
)

func init() {
	tenantUpdateCmd.Flags().StringVar(&tenantBody, "body", "", "Settings patch as inline JSON or @file")
	tenantUpdateCmd.Flags().BoolVar(&tenantAsync, "async", false, "Request asynchronous processing (Prefer: respond-async)")
	tenantUpdateCmd.MarkFlagRequired("body")
	tenantFeatureSetCmd.Flags().StringVar(&tenantBody, "body", "", "Feature control patch as inline JSON or @file")
	tenantFeatureSetCmd.Flags().BoolVar(&tenantAsync, "async", false, "Request asynchronous processing (Prefer: respond-async)")
	tenantFeatureSetCmd.MarkFlagRequired("body")

	tenantFeatureCmd.AddCommand(tenantFeatureListCmd, tenantFeatureGetCmd, tenantFeatureSetCmd)
	tenantCmd.AddCommand(tenantShowCmd, tenantUpdateCmd, tenantFeatureCmd)
	rootCmd.AddCommand(tenantCmd)
}

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Tenant settings and feature controls",
}

var tenantShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show tenant settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		tc, err := tenantClient(cmd.Context())
		if err != nil {
			return err
		}
		settings, err := tc.GetSettings(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(settings)
	},
}

var tenantUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Apply a partial tenant settings update",
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := readBodyArg(tenantBody)
		if err != nil {
			return err
		}
		tc, err := tenantClient(cmd.Context())
		if err != nil {
			return err
		}
		result, err := tc.UpdateSettings(cmd.Context(), body, tenantAsync)
		if err != nil {
			return err
		}
		if result.Accepted() {
			fmt.Printf("Update queued. Operation: %s\n", result.OperationLocation)
			return nil
		}
		return printJSON(result.Resource)
	},
}

var tenantFeatureCmd = &cobra.Command{
	Use:   "feature",
	Short: "Manage tenant feature controls",
}

var tenantFeatureListCmd = &cobra.Command{
	Use:   "list",
	Short: "List feature controls",
	RunE: func(cmd *cobra.Command, args []string) error {
		tc, err := tenantClient(cmd.Context())
		if err != nil {
			return err
		}
		features, err := tc.ListFeatureControls(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(features)
	},
}

var tenantFeatureGetCmd = &cobra.Command{
	Use:   "get <feature-name>",
	Short: "Show one feature control",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tc, err := tenantClient(cmd.Context())
		if err != nil {
			return err
		}
		feature, err := tc.GetFeatureControl(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(feature)
	},
}

var tenantFeatureSetCmd = &cobra.Command{
	Use:   "set <feature-name>",
	Short: "Update a feature control",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := readBodyArg(tenantBody)
		if err != nil {
			return err
		}
		tc, err := tenantClient(cmd.Context())
		if err != nil {
			return err
		}
		result, err := tc.UpdateFeatureControl(cmd.Context(), args[0], body, tenantAsync)
		if err != nil {
			return err
		}
		if result.Accepted() {
			fmt.Printf("Update queued. Operation: %s\n", result.OperationLocation)
			return nil
		}
		return printJSON(result.Resource)
	},
}
