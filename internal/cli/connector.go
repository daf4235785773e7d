package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pacx-labs/pacx/internal/connectors"
)

var (
	connEnvironmentID string
	connTop           int
	connSkipToken     string
	connDisplayName   string
	connSkipValidate  bool
)

func init() {
	for _, c := range []*cobra.Command{connListCmd, connGetCmd, connPushCmd, connDeleteCmd} {
		c.Flags().StringVar(&connEnvironmentID, "environment-id", "", "Environment ID (default: configured)")
	}
	connListCmd.Flags().IntVar(&connTop, "top", 0, "Page size")
	connListCmd.Flags().StringVar(&connSkipToken, "skip-token", "", "Continuation token from a previous page")
	connPushCmd.Flags().StringVar(&connDisplayName, "display-name", "", "Connector display name (default: connector name)")
	connPushCmd.Flags().BoolVar(&connSkipValidate, "skip-validation", false, "Upload without local OpenAPI validation")

	connCmd.AddCommand(connListCmd, connGetCmd, connPushCmd, connDeleteCmd, connValidateCmd)
	rootCmd.AddCommand(connCmd)
}

var connCmd = &cobra.Command{
	Use:   "connector",
	Short: "Manage custom connectors",
}

var connListCmd = &cobra.Command{
	Use:   "list",
	Short: "List custom connectors in an environment",
	RunE: func(cmd *cobra.Command, args []string) error {
		envID, err := environmentID(connEnvironmentID)
		if err != nil {
			return err
		}
		cc, err := connectorsClient(cmd.Context())
		if err != nil {
			return err
		}
		page, err := cc.ListAPIs(cmd.Context(), envID, connTop, connSkipToken)
		if err != nil {
			return err
		}
		for _, api := range page.Value {
			name, _ := api["name"].(string)
			display := ""
			if props, ok := api["properties"].(map[string]any); ok {
				display, _ = props["displayName"].(string)
			}
			fmt.Printf("%-40s %s\n", name, display)
		}
		if page.NextLink != "" {
			fmt.Fprintln(os.Stderr, "More pages available; pass --skip-token from the nextLink.")
		}
		return nil
	},
}

var connGetCmd = &cobra.Command{
	Use:   "get <api-name>",
	Short: "Show one connector",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		envID, err := environmentID(connEnvironmentID)
		if err != nil {
			return err
		}
		cc, err := connectorsClient(cmd.Context())
		if err != nil {
			return err
		}
		api, err := cc.GetAPI(cmd.Context(), envID, args[0])
		if err != nil {
			return err
		}
		return printJSON(api)
	},
}

var connPushCmd = &cobra.Command{
	Use:   "push <api-name> <openapi-file>",
	Short: "Create or update a connector from an OpenAPI document",
	Long: `Validates the OpenAPI document (YAML or JSON) against the connector
schema, then PUTs it wrapped in the connector envelope.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("reading OpenAPI file: %w", err)
		}

		if !connSkipValidate {
			result, err := connectors.Validate(text)
			if err != nil {
				return err
			}
			if !result.Valid {
				printValidationIssues(result)
				return fmt.Errorf("OpenAPI document failed validation (%d issues)", len(result.Issues))
			}
		}

		envID, err := environmentID(connEnvironmentID)
		if err != nil {
			return err
		}
		cc, err := connectorsClient(cmd.Context())
		if err != nil {
			return err
		}
		if _, err := cc.PutFromOpenAPI(cmd.Context(), envID, args[0], string(text), connDisplayName); err != nil {
			return err
		}
		fmt.Printf("Connector %s pushed.\n", args[0])
		return nil
	},
}

var connDeleteCmd = &cobra.Command{
	Use:   "delete <api-name>",
	Short: "Delete a connector",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		envID, err := environmentID(connEnvironmentID)
		if err != nil {
			return err
		}
		cc, err := connectorsClient(cmd.Context())
		if err != nil {
			return err
		}
		if err := cc.DeleteAPI(cmd.Context(), envID, args[0]); err != nil {
			return err
		}
		fmt.Printf("Connector %s deleted.\n", args[0])
		return nil
	},
}

var connValidateCmd = &cobra.Command{
	Use:   "validate <openapi-file>",
	Short: "Validate an OpenAPI document locally",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := connectors.ValidateFile(args[0])
		if err != nil {
			return err
		}
		if result.Valid {
			fmt.Println("Document is valid.")
			return nil
		}
		printValidationIssues(result)
		return fmt.Errorf("document failed validation (%d issues)", len(result.Issues))
	},
}

func printValidationIssues(result *connectors.ValidationResult) {
	for _, issue := range result.Issues {
		fmt.Printf("  %s: %s\n", issue.Path, issue.Message)
	}
}
