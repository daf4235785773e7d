package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pacx-labs/pacx/internal/dlp"
	"github.com/pacx-labs/pacx/internal/poll"
)

var (
	dlpAPIVersion  string
	dlpTop         int
	dlpSkip        int
	dlpBody        string
	dlpWait        bool
	dlpWaitTimeout time.Duration
)

func init() {
	dlpCmd.PersistentFlags().StringVar(&dlpAPIVersion, "api-version", "", "Policy API version override")
	dlpListCmd.Flags().IntVar(&dlpTop, "top", 0, "Page size limit")
	dlpListCmd.Flags().IntVar(&dlpSkip, "skip", 0, "Offset for pagination")

	for _, c := range []*cobra.Command{dlpCreateCmd, dlpUpdateCmd, dlpConnectorsUpdateCmd, dlpAssignCmd} {
		c.Flags().StringVar(&dlpBody, "body", "", "Payload as inline JSON or @file")
		c.MarkFlagRequired("body")
	}
	for _, c := range []*cobra.Command{dlpCreateCmd, dlpUpdateCmd, dlpDeleteCmd,
		dlpConnectorsUpdateCmd, dlpAssignCmd, dlpAssignRemoveCmd} {
		c.Flags().BoolVar(&dlpWait, "wait", false, "Wait for the operation to complete")
		c.Flags().DurationVar(&dlpWaitTimeout, "timeout", 10*time.Minute, "Wait timeout")
	}

	dlpConnectorsCmd.AddCommand(dlpConnectorsListCmd, dlpConnectorsUpdateCmd)
	dlpAssignmentsCmd.AddCommand(dlpAssignListCmd, dlpAssignCmd, dlpAssignRemoveCmd)
	dlpCmd.AddCommand(dlpListCmd, dlpGetCmd, dlpCreateCmd, dlpUpdateCmd, dlpDeleteCmd,
		dlpConnectorsCmd, dlpAssignmentsCmd)
	policyCmd.AddCommand(dlpCmd)
	rootCmd.AddCommand(policyCmd)
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Policy administration workloads",
}

var dlpCmd = &cobra.Command{
	Use:   "dlp",
	Short: "Manage data loss prevention policies",
}

func dlpClientFromCmd(cmd *cobra.Command) (*dlp.Client, error) {
	c, err := dlpClient(cmd.Context())
	if err != nil {
		return nil, err
	}
	c.SetAPIVersion(dlpAPIVersion)
	return c, nil
}

// renderDLPOperation prints an accepted operation, optionally polling it to
// completion first.
func renderDLPOperation(cmd *cobra.Command, c *dlp.Client, action string, h *dlp.OperationHandle) error {
	if dlpWait && h.OperationLocation != "" {
		status, err := c.WaitForOperation(cmd.Context(), h.OperationLocation, poll.Options{Timeout: dlpWaitTimeout})
		if err != nil {
			return err
		}
		fmt.Printf("%s completed: %s\n", action, poll.StateOf(status))
		return printJSON(status)
	}
	if id := h.ID(); id != "" {
		fmt.Printf("%s accepted. Operation: %s\n", action, id)
	} else {
		fmt.Printf("%s accepted.\n", action)
	}
	if len(h.Metadata) > 0 {
		return printJSON(h.Metadata)
	}
	return nil
}

// decodeConnectorGroups pulls the non-empty "groups" array out of a payload.
func decodeConnectorGroups(body map[string]any) ([]dlp.ConnectorGroup, error) {
	var out struct {
		Groups []dlp.ConnectorGroup `json:"groups"`
	}
	if err := reshape(body, &out); err != nil {
		return nil, err
	}
	if len(out.Groups) == 0 {
		return nil, fmt.Errorf(`payload must include a non-empty "groups" array`)
	}
	return out.Groups, nil
}

// decodeAssignments pulls the non-empty "assignments" array out of a payload.
func decodeAssignments(body map[string]any) ([]dlp.Assignment, error) {
	var out struct {
		Assignments []dlp.Assignment `json:"assignments"`
	}
	if err := reshape(body, &out); err != nil {
		return nil, err
	}
	if len(out.Assignments) == 0 {
		return nil, fmt.Errorf(`payload must include a non-empty "assignments" array`)
	}
	return out.Assignments, nil
}

// reshape converts an untyped payload into a typed structure via JSON.
func reshape(in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

var dlpListCmd = &cobra.Command{
	Use:   "list",
	Short: "List DLP policies",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dlpClientFromCmd(cmd)
		if err != nil {
			return err
		}
		page, err := c.ListPolicies(cmd.Context(), dlpTop, dlpSkip)
		if err != nil {
			return err
		}
		for _, p := range page.Policies {
			fmt.Printf("%s\t%s\t%s\n", p.ID, p.State, p.DisplayName)
		}
		if page.NextLink != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "More results: rerun with --skip %d\n", dlpSkip+len(page.Policies))
		}
		return nil
	},
}

var dlpGetCmd = &cobra.Command{
	Use:   "get <policy-id>",
	Short: "Show one DLP policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dlpClientFromCmd(cmd)
		if err != nil {
			return err
		}
		p, err := c.GetPolicy(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(p)
	},
}

var dlpCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a DLP policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := readBodyArg(dlpBody)
		if err != nil {
			return err
		}
		c, err := dlpClientFromCmd(cmd)
		if err != nil {
			return err
		}
		h, err := c.CreatePolicy(cmd.Context(), body)
		if err != nil {
			return err
		}
		return renderDLPOperation(cmd, c, "Policy creation", h)
	},
}

var dlpUpdateCmd = &cobra.Command{
	Use:   "update <policy-id>",
	Short: "Update a DLP policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := readBodyArg(dlpBody)
		if err != nil {
			return err
		}
		c, err := dlpClientFromCmd(cmd)
		if err != nil {
			return err
		}
		h, err := c.UpdatePolicy(cmd.Context(), args[0], body)
		if err != nil {
			return err
		}
		return renderDLPOperation(cmd, c, "Policy update", h)
	},
}

var dlpDeleteCmd = &cobra.Command{
	Use:   "delete <policy-id>",
	Short: "Delete a DLP policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dlpClientFromCmd(cmd)
		if err != nil {
			return err
		}
		h, err := c.DeletePolicy(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return renderDLPOperation(cmd, c, "Policy deletion", h)
	},
}

var dlpConnectorsCmd = &cobra.Command{
	Use:   "connectors",
	Short: "Manage connector classifications",
}

var dlpConnectorsListCmd = &cobra.Command{
	Use:   "list <policy-id>",
	Short: "List connector groups of a policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dlpClientFromCmd(cmd)
		if err != nil {
			return err
		}
		groups, err := c.ListConnectorGroups(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(groups)
	},
}

var dlpConnectorsUpdateCmd = &cobra.Command{
	Use:   "update <policy-id>",
	Short: "Replace the connector groups of a policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := readBodyArg(dlpBody)
		if err != nil {
			return err
		}
		groups, err := decodeConnectorGroups(body)
		if err != nil {
			return err
		}
		c, err := dlpClientFromCmd(cmd)
		if err != nil {
			return err
		}
		h, err := c.UpdateConnectorGroups(cmd.Context(), args[0], groups)
		if err != nil {
			return err
		}
		return renderDLPOperation(cmd, c, "Connector groups update", h)
	},
}

var dlpAssignmentsCmd = &cobra.Command{
	Use:   "assignments",
	Short: "Manage environment assignments",
}

var dlpAssignListCmd = &cobra.Command{
	Use:   "list <policy-id>",
	Short: "List environment assignments of a policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dlpClientFromCmd(cmd)
		if err != nil {
			return err
		}
		assignments, err := c.ListAssignments(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, a := range assignments {
			fmt.Printf("%s\t%s\t%s\n", a.AssignmentID, a.AssignmentType, a.EnvironmentID)
		}
		return nil
	},
}

var dlpAssignCmd = &cobra.Command{
	Use:   "assign <policy-id>",
	Short: "Assign a policy to environments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := readBodyArg(dlpBody)
		if err != nil {
			return err
		}
		assignments, err := decodeAssignments(body)
		if err != nil {
			return err
		}
		c, err := dlpClientFromCmd(cmd)
		if err != nil {
			return err
		}
		h, err := c.AssignPolicy(cmd.Context(), args[0], assignments)
		if err != nil {
			return err
		}
		return renderDLPOperation(cmd, c, "Policy assignment", h)
	},
}

var dlpAssignRemoveCmd = &cobra.Command{
	Use:   "remove <policy-id> <assignment-id>",
	Short: "Remove an environment assignment",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dlpClientFromCmd(cmd)
		if err != nil {
			return err
		}
		h, err := c.RemoveAssignment(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return renderDLPOperation(cmd, c, "Assignment removal", h)
	},
}
