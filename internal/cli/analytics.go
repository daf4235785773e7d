package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	anTop       int
	anSkipToken string
	anBody      string
)

func init() {
	anResourcesCmd.Flags().IntVar(&anTop, "top", 0, "Page size")
	anResourcesCmd.Flags().StringVar(&anSkipToken, "skip-token", "", "Continuation token from a previous page")
	anAckCmd.Flags().StringVar(&anBody, "body", "{}", "Action payload as inline JSON or @file")
	anDismissCmd.Flags().StringVar(&anBody, "body", "{}", "Action payload as inline JSON or @file")

	anCmd.AddCommand(anScenariosCmd, anActionsCmd, anRecommendationsCmd, anResourcesCmd, anAckCmd, anDismissCmd)
	rootCmd.AddCommand(anCmd)
}

var anCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Advisor recommendation analytics",
}

var anScenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List advisor scenarios",
	RunE: func(cmd *cobra.Command, args []string) error {
		ac, err := analyticsClient(cmd.Context())
		if err != nil {
			return err
		}
		scenarios, err := ac.ListScenarios(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(scenarios)
	},
}

var anActionsCmd = &cobra.Command{
	Use:   "actions <scenario>",
	Short: "List available actions for a scenario",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ac, err := analyticsClient(cmd.Context())
		if err != nil {
			return err
		}
		actions, err := ac.ListActions(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(actions)
	},
}

var anRecommendationsCmd = &cobra.Command{
	Use:   "recommendations <scenario>",
	Short: "List recommendations for a scenario",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ac, err := analyticsClient(cmd.Context())
		if err != nil {
			return err
		}
		recs, err := ac.ListRecommendations(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(recs)
	},
}

var anResourcesCmd = &cobra.Command{
	Use:   "resources <scenario>",
	Short: "List resources affected by a scenario",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ac, err := analyticsClient(cmd.Context())
		if err != nil {
			return err
		}
		page, err := ac.ListResources(cmd.Context(), args[0], anTop, anSkipToken)
		if err != nil {
			return err
		}
		if err := printJSON(page.Resources); err != nil {
			return err
		}
		if page.SkipToken != "" {
			fmt.Printf("More results: --skip-token %s\n", page.SkipToken)
		}
		return nil
	},
}

var anAckCmd = &cobra.Command{
	Use:   "ack <scenario> <recommendation-id>",
	Short: "Acknowledge a recommendation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := readBodyArg(anBody)
		if err != nil {
			return err
		}
		ac, err := analyticsClient(cmd.Context())
		if err != nil {
			return err
		}
		result, err := ac.AcknowledgeRecommendation(cmd.Context(), args[0], args[1], body)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var anDismissCmd = &cobra.Command{
	Use:   "dismiss <scenario> <recommendation-id>",
	Short: "Dismiss a recommendation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := readBodyArg(anBody)
		if err != nil {
			return err
		}
		ac, err := analyticsClient(cmd.Context())
		if err != nil {
			return err
		}
		result, err := ac.DismissRecommendation(cmd.Context(), args[0], args[1], body)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}
