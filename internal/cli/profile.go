package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pacx-labs/pacx/internal/config"
)

func init() {
	profileCmd.AddCommand(profileListCmd, profileShowCmd, profileDeleteCmd, profileSetEnvCmd, profileSetHostCmd)
	rootCmd.AddCommand(profileCmd)
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect and manage saved profiles",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profile names",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, data, err := loadConfig()
		if err != nil {
			return err
		}
		if len(data.Profiles) == 0 {
			fmt.Println("No profiles configured.")
			return nil
		}
		for _, name := range data.ProfileNames() {
			marker := " "
			if name == data.DefaultProfile {
				marker = "*"
			}
			p := data.Profiles[name]
			fmt.Printf("%s %-20s tenant=%s client=%s\n", marker, name, p.TenantID, p.ClientID)
		}
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show one profile (secrets redacted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, data, err := loadConfig()
		if err != nil {
			return err
		}
		var p config.Profile
		if len(args) == 1 {
			var ok bool
			p, ok = data.Profiles[args[0]]
			if !ok {
				return fmt.Errorf("profile %q not found", args[0])
			}
		} else {
			p, err = activeProfile(data)
			if err != nil {
				return err
			}
		}
		view := map[string]any{
			"name":            p.Name,
			"tenant_id":       p.TenantID,
			"client_id":       p.ClientID,
			"scope":           p.Scope,
			"dataverse_host":  p.DataverseHost,
			"environment_id":  p.EnvironmentID,
			"use_device_code": p.UseDeviceCode,
			"has_token":       p.AccessToken != "",
			"secret_backend":  p.SecretBackend,
		}
		return printJSON(view)
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := loadConfig()
		if err != nil {
			return err
		}
		if err := store.DeleteProfile(args[0]); err != nil {
			return err
		}
		fmt.Printf("Profile %q deleted.\n", args[0])
		return nil
	},
}

var profileSetEnvCmd = &cobra.Command{
	Use:   "set-env <environment-id>",
	Short: "Persist the default environment ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, data, err := loadConfig()
		if err != nil {
			return err
		}
		data.EnvironmentID = args[0]
		if err := store.Save(data); err != nil {
			return err
		}
		fmt.Printf("Default environment ID set to %s.\n", args[0])
		return nil
	},
}

var profileSetHostCmd = &cobra.Command{
	Use:   "set-host <dataverse-host>",
	Short: "Persist the default Dataverse host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, data, err := loadConfig()
		if err != nil {
			return err
		}
		data.DataverseHost = args[0]
		if err := store.Save(data); err != nil {
			return err
		}
		fmt.Printf("Default Dataverse host set to %s.\n", args[0])
		return nil
	},
}
