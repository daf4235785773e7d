package cli

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pacx-labs/pacx/internal/auth"
	"github.com/pacx-labs/pacx/internal/config"
	"github.com/pacx-labs/pacx/internal/secrets"
)

var (
	authName          string
	authTenant        string
	authClient        string
	authScope         string
	authHost          string
	authEnvironmentID string
	authSecretEnv     string
	authSecretBackend string
	authSecretRef     string
	authPromptSecret  bool
)

func init() {
	for _, c := range []*cobra.Command{authDeviceCmd, authClientCmd} {
		c.Flags().StringVar(&authName, "name", "default", "Profile name")
		c.Flags().StringVar(&authTenant, "tenant", "", "Entra ID tenant ID")
		c.Flags().StringVar(&authClient, "client", "", "App registration client ID")
		c.Flags().StringVar(&authScope, "scope", "", "OAuth scope (default: Power Platform API)")
		c.Flags().StringVar(&authHost, "host", "", "Default Dataverse host for this profile")
		c.Flags().StringVar(&authEnvironmentID, "environment-id", "", "Default environment ID for this profile")
		c.MarkFlagRequired("tenant")
		c.MarkFlagRequired("client")
	}

	authClientCmd.Flags().StringVar(&authSecretEnv, "secret-env", "", "Environment variable holding the client secret")
	authClientCmd.Flags().StringVar(&authSecretBackend, "secret-backend", "", "Secret backend: env, keyring, or keyvault")
	authClientCmd.Flags().StringVar(&authSecretRef, "secret-ref", "", "Secret reference within the backend")
	authClientCmd.Flags().BoolVar(&authPromptSecret, "prompt-secret", false, "Read the secret interactively and store it in the OS keyring")

	authCmd.AddCommand(authDeviceCmd, authClientCmd, authUseCmd)
	rootCmd.AddCommand(authCmd)
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication profiles",
}

var authDeviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Create a profile using the device-code flow",
	Long: `Runs the Entra ID device-code flow once to verify the registration,
then saves the profile. Later commands repeat the flow on demand when no
cached token is available.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := loadConfig()
		if err != nil {
			return err
		}

		p := newProfileFromFlags()
		p.UseDeviceCode = true

		var scopes []string
		if p.Scope != "" {
			scopes = []string{p.Scope}
		}
		prov := auth.NewEntraID(p.TenantID, p.ClientID, scopes, "")
		prov.Prompt = os.Stderr

		token, err := prov.Token(cmd.Context())
		if err != nil {
			return fmt.Errorf("device-code sign-in failed: %w", err)
		}
		p.AccessToken = token

		if err := store.UpsertProfile(p, true); err != nil {
			return err
		}
		fmt.Printf("Profile %q saved and set as default.\n", p.Name)
		if exp, ok := auth.Expiry(token); ok {
			fmt.Printf("Token valid until %s.\n", exp.Local().Format("15:04:05"))
		}
		return nil
	},
}

var authClientCmd = &cobra.Command{
	Use:   "client",
	Short: "Create a profile using client credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := loadConfig()
		if err != nil {
			return err
		}

		p := newProfileFromFlags()
		p.ClientSecretEnv = authSecretEnv
		p.SecretBackend = authSecretBackend
		p.SecretRef = authSecretRef

		if authPromptSecret {
			fmt.Fprint(os.Stderr, "Client secret: ")
			raw, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return fmt.Errorf("reading secret: %w", err)
			}
			ref := p.SecretRef
			if ref == "" {
				ref = "pacx:" + p.Name
				p.SecretRef = ref
			}
			p.SecretBackend = secrets.BackendKeyring
			resolver := secrets.NewResolver(nil)
			if err := resolver.Store(secrets.Spec{Backend: secrets.BackendKeyring, Ref: ref}, string(raw)); err != nil {
				return fmt.Errorf("storing secret in keyring: %w", err)
			}
		}

		if p.ClientSecretEnv == "" && p.SecretBackend == "" {
			return fmt.Errorf("client credentials need a secret source: --secret-env, --secret-backend/--secret-ref, or --prompt-secret")
		}

		if err := store.UpsertProfile(p, true); err != nil {
			return err
		}
		fmt.Printf("Profile %q saved and set as default.\n", p.Name)
		return nil
	},
}

var authUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Select the default profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := loadConfig()
		if err != nil {
			return err
		}
		if err := store.SetDefaultProfile(args[0]); err != nil {
			return err
		}
		fmt.Printf("Default profile is now %q.\n", args[0])
		return nil
	},
}

func newProfileFromFlags() config.Profile {
	return config.Profile{
		Name:          authName,
		TenantID:      authTenant,
		ClientID:      authClient,
		Scope:         authScope,
		DataverseHost: authHost,
		EnvironmentID: authEnvironmentID,
	}
}
