package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pacx-labs/pacx/internal/poll"
)

var (
	envValidateOnly bool
	envBody         string
	envWaitTimeout  time.Duration
)

func init() {
	envDeleteCmd.Flags().BoolVar(&envValidateOnly, "validate-only", false, "Validate the delete without executing it")
	for _, c := range []*cobra.Command{envCopyCmd, envResetCmd, envBackupCmd, envRestoreCmd} {
		c.Flags().StringVar(&envBody, "body", "{}", "Request payload as inline JSON or @file")
	}
	envWaitCmd.Flags().DurationVar(&envWaitTimeout, "timeout", 10*time.Minute, "Give up after this long")

	envCmd.AddCommand(envListCmd, envGetCmd, envDeleteCmd, envCopyCmd, envResetCmd,
		envBackupCmd, envRestoreCmd, envOperationsCmd, envWaitCmd)
	rootCmd.AddCommand(envCmd)
}

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Manage Power Platform environments",
}

var envListCmd = &cobra.Command{
	Use:   "list",
	Short: "List environments",
	RunE: func(cmd *cobra.Command, args []string) error {
		pc, err := platformClient(cmd.Context())
		if err != nil {
			return err
		}
		envs, err := pc.ListEnvironments(cmd.Context())
		if err != nil {
			return err
		}
		for _, e := range envs {
			fmt.Printf("%-40s %-12s %-15s %s\n", e.ID, e.Type, e.Location, e.Name)
		}
		return nil
	},
}

var envGetCmd = &cobra.Command{
	Use:   "get <environment-id>",
	Short: "Show one environment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pc, err := platformClient(cmd.Context())
		if err != nil {
			return err
		}
		env, err := pc.GetEnvironment(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(env)
	},
}

var envDeleteCmd = &cobra.Command{
	Use:   "delete <environment-id>",
	Short: "Delete an environment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pc, err := platformClient(cmd.Context())
		if err != nil {
			return err
		}
		if err := pc.DeleteEnvironment(cmd.Context(), args[0], envValidateOnly); err != nil {
			return err
		}
		if envValidateOnly {
			fmt.Println("Delete validation passed.")
		} else {
			fmt.Println("Delete accepted.")
		}
		return nil
	},
}

func runEnvOperation(fn func(*cobra.Command, string, map[string]any) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		body, err := readBodyArg(envBody)
		if err != nil {
			return err
		}
		return fn(cmd, args[0], body)
	}
}

var envCopyCmd = &cobra.Command{
	Use:   "copy <source-environment-id>",
	Short: "Copy an environment",
	Args:  cobra.ExactArgs(1),
	RunE: runEnvOperation(func(cmd *cobra.Command, id string, body map[string]any) error {
		pc, err := platformClient(cmd.Context())
		if err != nil {
			return err
		}
		handle, err := pc.CopyEnvironment(cmd.Context(), id, body)
		if err != nil {
			return err
		}
		fmt.Printf("Copy started. Operation: %s\n", handle.ID())
		return nil
	}),
}

var envResetCmd = &cobra.Command{
	Use:   "reset <environment-id>",
	Short: "Reset an environment",
	Args:  cobra.ExactArgs(1),
	RunE: runEnvOperation(func(cmd *cobra.Command, id string, body map[string]any) error {
		pc, err := platformClient(cmd.Context())
		if err != nil {
			return err
		}
		handle, err := pc.ResetEnvironment(cmd.Context(), id, body)
		if err != nil {
			return err
		}
		fmt.Printf("Reset started. Operation: %s\n", handle.ID())
		return nil
	}),
}

var envBackupCmd = &cobra.Command{
	Use:   "backup <environment-id>",
	Short: "Back up an environment",
	Args:  cobra.ExactArgs(1),
	RunE: runEnvOperation(func(cmd *cobra.Command, id string, body map[string]any) error {
		pc, err := platformClient(cmd.Context())
		if err != nil {
			return err
		}
		handle, err := pc.BackupEnvironment(cmd.Context(), id, body)
		if err != nil {
			return err
		}
		fmt.Printf("Backup started. Operation: %s\n", handle.ID())
		return nil
	}),
}

var envRestoreCmd = &cobra.Command{
	Use:   "restore <target-environment-id>",
	Short: "Restore an environment from a backup",
	Args:  cobra.ExactArgs(1),
	RunE: runEnvOperation(func(cmd *cobra.Command, id string, body map[string]any) error {
		pc, err := platformClient(cmd.Context())
		if err != nil {
			return err
		}
		handle, err := pc.RestoreEnvironment(cmd.Context(), id, body)
		if err != nil {
			return err
		}
		fmt.Printf("Restore started. Operation: %s\n", handle.ID())
		return nil
	}),
}

var envOperationsCmd = &cobra.Command{
	Use:   "operations <environment-id>",
	Short: "List lifecycle operations for an environment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pc, err := platformClient(cmd.Context())
		if err != nil {
			return err
		}
		ops, err := pc.ListEnvironmentOperations(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(ops)
	},
}

var envWaitCmd = &cobra.Command{
	Use:   "wait <operation-url>",
	Short: "Poll an operation until it reaches a terminal state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pc, err := platformClient(cmd.Context())
		if err != nil {
			return err
		}
		status, err := pc.WaitForOperation(cmd.Context(), args[0], poll.Options{Timeout: envWaitTimeout})
		if err != nil {
			return err
		}
		fmt.Printf("Operation finished: %s\n", poll.StateOf(status))
		return printJSON(status)
	},
}
