package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pacx-labs/pacx/internal/poll"
	"github.com/pacx-labs/pacx/internal/users"
)

var (
	usersWait        bool
	usersWaitTimeout time.Duration
)

func init() {
	for _, c := range []*cobra.Command{usersApplyRoleCmd, usersRemoveRoleCmd} {
		c.Flags().BoolVar(&usersWait, "wait", false, "Wait for the operation to complete")
		c.Flags().DurationVar(&usersWaitTimeout, "timeout", 10*time.Minute, "Wait timeout")
	}
	usersCmd.AddCommand(usersRolesCmd, usersApplyRoleCmd, usersRemoveRoleCmd, usersOperationCmd)
	rootCmd.AddCommand(usersCmd)
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Admin role assignments",
}

var usersRolesCmd = &cobra.Command{
	Use:   "roles <user-id>",
	Short: "List the admin roles assigned to a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uc, err := usersClient(cmd.Context())
		if err != nil {
			return err
		}
		page, err := uc.ListAdminRoles(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, role := range page.Value {
			fmt.Printf("%s\t%s\n", role.RoleDefinitionID, role.RoleDisplayName)
		}
		return nil
	},
}

// renderUsersOperation prints an accepted role operation, optionally polling
// it to completion first.
func renderUsersOperation(cmd *cobra.Command, uc *users.Client, action string, h *users.OperationHandle) error {
	if usersWait && h.OperationLocation != "" {
		status, err := uc.WaitForOperation(cmd.Context(), h.OperationLocation, poll.Options{Timeout: usersWaitTimeout})
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
	return nil
}

var usersApplyRoleCmd = &cobra.Command{
	Use:   "apply-admin-role <user-id>",
	Short: "Grant the default admin role to a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uc, err := usersClient(cmd.Context())
		if err != nil {
			return err
		}
		h, err := uc.ApplyAdminRole(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return renderUsersOperation(cmd, uc, "Role grant", h)
	},
}

var usersRemoveRoleCmd = &cobra.Command{
	Use:   "remove-admin-role <user-id> <role-definition-id>",
	Short: "Revoke an admin role from a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		uc, err := usersClient(cmd.Context())
		if err != nil {
			return err
		}
		h, err := uc.RemoveAdminRole(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return renderUsersOperation(cmd, uc, "Role removal", h)
	},
}

var usersOperationCmd = &cobra.Command{
	Use:   "operation <operation-id>",
	Short: "Show a user management operation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uc, err := usersClient(cmd.Context())
		if err != nil {
			return err
		}
		op, err := uc.GetOperation(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(op)
	},
}
