package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pacx-labs/pacx/internal/auth"
	"github.com/pacx-labs/pacx/internal/branding"
	"github.com/pacx-labs/pacx/internal/config"
	"github.com/pacx-labs/pacx/internal/dataverse"
)

var doctorHost string

func init() {
	doctorCmd.Flags().StringVar(&doctorHost, "host", "", "Also probe this Dataverse host with WhoAmI")
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and connectivity",
	Long: `Verifies the config file, the active profile, token acquisition,
and (with --host) reachability of a Dataverse environment.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		failed := false
		check := func(name string, err error) {
			if err != nil {
				failed = true
				fmt.Printf("  [fail] %-18s %v\n", name, err)
				return
			}
			fmt.Printf("  [ ok ] %s\n", name)
		}

		fmt.Printf("Config file: %s\n", config.FilePath())

		_, data, err := loadConfig()
		check("config", err)
		if err != nil {
			return fmt.Errorf("configuration is unusable")
		}

		p, profileErr := activeProfile(data)
		if config.AccessTokenFromEnv() != "" {
			fmt.Printf("  [ ok ] token source      %s\n", branding.EnvVar("ACCESS_TOKEN"))
		} else {
			check("profile", profileErr)
		}

		prov, err := tokenProvider(cmd.Context(), data)
		if err != nil {
			check("token", err)
		} else {
			token, tokErr := prov.Token(cmd.Context())
			check("token", tokErr)
			if tokErr == nil {
				if tid := auth.TenantID(token); tid != "" {
					fmt.Printf("         tenant: %s\n", tid)
				}
				if exp, ok := auth.Expiry(token); ok {
					fmt.Printf("         expires: %s\n", exp.Local().Format("2006-01-02 15:04:05"))
				}
			}
		}

		host := doctorHost
		if host == "" && profileErr == nil {
			host = p.DataverseHost
		}
		if host == "" {
			host = data.DataverseHost
		}
		if host != "" && prov != nil {
			dv := dataverse.New(host, prov.Token)
			who, whoErr := dv.WhoAmI(cmd.Context())
			check("dataverse", whoErr)
			if whoErr == nil {
				fmt.Printf("         user: %s org: %s\n", who.UserID, who.OrganizationID)
			}
		}

		if failed {
			os.Exit(1)
		}
		fmt.Println("All checks passed.")
		return nil
	},
}
