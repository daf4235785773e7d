package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pacx-labs/pacx/internal/analytics"
	"github.com/pacx-labs/pacx/internal/auth"
	"github.com/pacx-labs/pacx/internal/config"
	"github.com/pacx-labs/pacx/internal/connectors"
	"github.com/pacx-labs/pacx/internal/dataverse"
	"github.com/pacx-labs/pacx/internal/dlp"
	"github.com/pacx-labs/pacx/internal/governance"
	"github.com/pacx-labs/pacx/internal/licensing"
	"github.com/pacx-labs/pacx/internal/logging"
	"github.com/pacx-labs/pacx/internal/platform"
	"github.com/pacx-labs/pacx/internal/secrets"
	"github.com/pacx-labs/pacx/internal/tenant"
	"github.com/pacx-labs/pacx/internal/users"
	"go.uber.org/zap"
)

// loadConfig opens the store at the default path and reads the decrypted
// configuration.
func loadConfig() (*config.Store, config.Data, error) {
	store, err := config.NewStore("")
	if err != nil {
		return nil, config.Data{}, err
	}
	data, err := store.Load()
	if err != nil {
		return nil, config.Data{}, err
	}
	return store, data, nil
}

// activeProfile returns the profile named by --profile, falling back to the
// configured default.
func activeProfile(data config.Data) (config.Profile, error) {
	if flagProfile != "" {
		p, ok := data.Profiles[flagProfile]
		if !ok {
			return config.Profile{}, fmt.Errorf("profile %q not found (have: %v)", flagProfile, data.ProfileNames())
		}
		return p, nil
	}
	p, ok := data.Default()
	if !ok {
		return config.Profile{}, auth.ErrNotConfigured
	}
	return p, nil
}

// tokenProvider builds the auth chain: PACX_ACCESS_TOKEN wins, then a
// profile's stored token, then client credentials (secret from env or a
// secret backend), then the device-code flow.
func tokenProvider(ctx context.Context, data config.Data) (auth.Provider, error) {
	if tok := config.AccessTokenFromEnv(); tok != "" {
		return auth.NewStatic(tok), nil
	}

	p, err := activeProfile(data)
	if err != nil {
		return nil, err
	}

	if p.AccessToken != "" {
		return auth.NewStatic(p.AccessToken), nil
	}

	var scopes []string
	if p.Scope != "" {
		scopes = []string{p.Scope}
	}

	secret := ""
	if p.ClientSecretEnv != "" {
		secret = os.Getenv(p.ClientSecretEnv)
	}
	if secret == "" && p.SecretBackend != "" {
		// Key Vault lookups authenticate with a vault-scoped device-code
		// token from the same tenant/client pair.
		base := auth.NewEntraID(p.TenantID, p.ClientID, scopes, "")
		base.Prompt = os.Stderr
		resolver := secrets.NewResolver(base.VaultScoped().Token)
		secret, err = resolver.Get(ctx, secrets.Spec{Backend: p.SecretBackend, Ref: p.SecretRef})
		if err != nil {
			return nil, fmt.Errorf("resolving client secret for profile %q: %w", p.Name, err)
		}
	}

	prov := auth.NewEntraID(p.TenantID, p.ClientID, scopes, secret)
	prov.Prompt = os.Stderr
	if secret == "" && !p.UseDeviceCode {
		logging.L().Debug("no client secret available, falling back to device code",
			zap.String("profile", p.Name))
	}
	return prov, nil
}

// dataverseClient resolves the host (flag > DATAVERSE_HOST > config) and
// builds an authenticated Web API client.
func dataverseClient(ctx context.Context, hostFlag string) (*dataverse.Client, error) {
	_, data, err := loadConfig()
	if err != nil {
		return nil, err
	}
	host, err := config.ResolveDataverseHost(hostFlag, data)
	if err != nil {
		return nil, err
	}
	prov, err := tokenProvider(ctx, data)
	if err != nil {
		return nil, err
	}
	return dataverse.New(host, prov.Token), nil
}

func platformClient(ctx context.Context) (*platform.Client, error) {
	_, data, err := loadConfig()
	if err != nil {
		return nil, err
	}
	prov, err := tokenProvider(ctx, data)
	if err != nil {
		return nil, err
	}
	return platform.New("", prov.Token), nil
}

func connectorsClient(ctx context.Context) (*connectors.Client, error) {
	_, data, err := loadConfig()
	if err != nil {
		return nil, err
	}
	prov, err := tokenProvider(ctx, data)
	if err != nil {
		return nil, err
	}
	return connectors.New("", prov.Token), nil
}

func licensingClient(ctx context.Context) (*licensing.Client, error) {
	_, data, err := loadConfig()
	if err != nil {
		return nil, err
	}
	prov, err := tokenProvider(ctx, data)
	if err != nil {
		return nil, err
	}
	return licensing.New("", prov.Token), nil
}

func tenantClient(ctx context.Context) (*tenant.Client, error) {
	_, data, err := loadConfig()
	if err != nil {
		return nil, err
	}
	prov, err := tokenProvider(ctx, data)
	if err != nil {
		return nil, err
	}
	return tenant.New("", prov.Token), nil
}

func analyticsClient(ctx context.Context) (*analytics.Client, error) {
	_, data, err := loadConfig()
	if err != nil {
		return nil, err
	}
	prov, err := tokenProvider(ctx, data)
	if err != nil {
		return nil, err
	}
	return analytics.New("", prov.Token), nil
}

func dlpClient(ctx context.Context) (*dlp.Client, error) {
	_, data, err := loadConfig()
	if err != nil {
		return nil, err
	}
	prov, err := tokenProvider(ctx, data)
	if err != nil {
		return nil, err
	}
	return dlp.New("", prov.Token), nil
}

func governanceClient(ctx context.Context) (*governance.Client, error) {
	_, data, err := loadConfig()
	if err != nil {
		return nil, err
	}
	prov, err := tokenProvider(ctx, data)
	if err != nil {
		return nil, err
	}
	return governance.New("", prov.Token), nil
}

func usersClient(ctx context.Context) (*users.Client, error) {
	_, data, err := loadConfig()
	if err != nil {
		return nil, err
	}
	prov, err := tokenProvider(ctx, data)
	if err != nil {
		return nil, err
	}
	return users.New("", prov.Token), nil
}

// environmentID applies flag > config precedence.
func environmentID(flagValue string) (string, error) {
	_, data, err := loadConfig()
	if err != nil {
		return "", err
	}
	return config.ResolveEnvironmentID(flagValue, data)
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// readBodyArg parses an inline JSON object or @file reference.
func readBodyArg(arg string) (map[string]any, error) {
	raw := []byte(arg)
	if len(arg) > 1 && arg[0] == '@' {
		var err error
		raw, err = os.ReadFile(arg[1:])
		if err != nil {
			return nil, fmt.Errorf("reading body file: %w", err)
		}
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("parsing JSON body: %w", err)
	}
	return body, nil
}
