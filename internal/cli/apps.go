package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	appsEnvironmentID string
	appsTop           int
	appsSkipToken     string
)

func init() {
	for _, c := range []*cobra.Command{appsListCmd, appsVersionsCmd, appsRestoreCmd} {
		c.Flags().StringVar(&appsEnvironmentID, "environment-id", "", "Environment ID (default: configured)")
	}
	appsListCmd.Flags().IntVar(&appsTop, "top", 0, "Page size")
	appsVersionsCmd.Flags().IntVar(&appsTop, "top", 0, "Page size")
	appsVersionsCmd.Flags().StringVar(&appsSkipToken, "skip-token", "", "Continuation token from a previous page")
	appsRestoreCmd.Flags().StringVar(&appsBody, "body", "{}", "Restore payload as inline JSON or @file")

	appsCmd.AddCommand(appsListCmd, appsVersionsCmd, appsRestoreCmd)
	rootCmd.AddCommand(appsCmd)
}

var appsBody string

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "Manage Power Apps",
}

var appsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List apps in an environment",
	RunE: func(cmd *cobra.Command, args []string) error {
		envID, err := environmentID(appsEnvironmentID)
		if err != nil {
			return err
		}
		pc, err := platformClient(cmd.Context())
		if err != nil {
			return err
		}
		apps, err := pc.ListApps(cmd.Context(), envID, appsTop)
		if err != nil {
			return err
		}
		for _, a := range apps {
			display, _ := a.Properties["displayName"].(string)
			fmt.Printf("%-40s %-20s %s\n", a.ID, a.Type, display)
		}
		return nil
	},
}

var appsVersionsCmd = &cobra.Command{
	Use:   "versions <app-id>",
	Short: "List versions of an app",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		envID, err := environmentID(appsEnvironmentID)
		if err != nil {
			return err
		}
		pc, err := platformClient(cmd.Context())
		if err != nil {
			return err
		}
		page, err := pc.ListAppVersions(cmd.Context(), envID, args[0], appsTop, appsSkipToken)
		if err != nil {
			return err
		}
		if err := printJSON(page.Versions); err != nil {
			return err
		}
		if page.ContinuationToken != "" {
			fmt.Printf("More results: --skip-token %s\n", page.ContinuationToken)
		}
		return nil
	},
}

var appsRestoreCmd = &cobra.Command{
	Use:   "restore <app-id>",
	Short: "Restore an app to a previous version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		envID, err := environmentID(appsEnvironmentID)
		if err != nil {
			return err
		}
		body, err := readBodyArg(appsBody)
		if err != nil {
			return err
		}
		pc, err := platformClient(cmd.Context())
		if err != nil {
			return err
		}
		handle, err := pc.RestoreApp(cmd.Context(), envID, args[0], body)
		if err != nil {
			return err
		}
		fmt.Printf("Restore started. Operation: %s\n", handle.ID())
		return nil
	},
}
