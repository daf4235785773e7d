package auth

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/pacx-labs/pacx/internal/logging"
)

// DefaultScope is the Power Platform API scope used when a profile does not
// override it.
const DefaultScope = "https://api.powerplatform.com/.default"

// refreshSkew renews tokens slightly before their exp claim.
const refreshSkew = 2 * time.Minute

func authorityBase(tenantID string) string {
	return "https://login.microsoftonline.com/" + tenantID + "/oauth2/v2.0"
}

// EntraID acquires tokens from Microsoft Entra ID. With a client secret it
// runs the client-credential flow; otherwise the device-code flow, printing
// the verification prompt to Prompt (stderr by default).
type EntraID struct {
	TenantID     string
	ClientID     string
	Scopes       []string
	ClientSecret string
	Prompt       io.Writer

	// overridable endpoints for tests
	endpoint oauth2.Endpoint
	tokenURL string

	mu     sync.Mutex
	cached string
	expiry time.Time
}

// NewEntraID builds a provider. scopes defaults to DefaultScope when empty.
func NewEntraID(tenantID, clientID string, scopes []string, clientSecret string) *EntraID {
	if len(scopes) == 0 {
		scopes = []string{DefaultScope}
	}
	base := authorityBase(tenantID)
	return &EntraID{
		TenantID:     tenantID,
		ClientID:     clientID,
		Scopes:       scopes,
		ClientSecret: clientSecret,
		Prompt:       os.Stderr,
		endpoint: oauth2.Endpoint{
			AuthURL:       base + "/authorize",
			TokenURL:      base + "/token",
			DeviceAuthURL: base + "/devicecode",
		},
		tokenURL: base + "/token",
	}
}

// Token returns a cached token until shortly before expiry, then reacquires.
func (p *EntraID) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != "" && time.Now().Before(p.expiry.Add(-refreshSkew)) {
		return p.cached, nil
	}

	var (
		tok *oauth2.Token
		err error
	)
	if p.ClientSecret != "" {
		tok, err = p.clientCredentialToken(ctx)
	} else {
		tok, err = p.deviceCodeToken(ctx)
	}
	if err != nil {
		return "", err
	}

	p.cached = tok.AccessToken
	p.expiry = tok.Expiry
	if p.expiry.IsZero() {
		if exp, ok := Expiry(tok.AccessToken); ok {
			p.expiry = exp
		}
	}
	logging.L().Debug("acquired token",
		zap.String("tenant", p.TenantID),
		zap.Time("expiry", p.expiry))
	return p.cached, nil
}

func (p *EntraID) clientCredentialToken(ctx context.Context) (*oauth2.Token, error) {
	cfg := clientcredentials.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		TokenURL:     p.tokenURL,
		Scopes:       p.Scopes,
	}
	tok, err := cfg.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("client credential flow: %w", err)
	}
	return tok, nil
}

func (p *EntraID) deviceCodeToken(ctx context.Context) (*oauth2.Token, error) {
	cfg := oauth2.Config{
		ClientID: p.ClientID,
		Endpoint: p.endpoint,
		Scopes:   p.Scopes,
	}
	da, err := cfg.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting device flow: %w", err)
	}

	prompt := p.Prompt
	if prompt == nil {
		prompt = os.Stderr
	}
	if da.VerificationURIComplete != "" {
		fmt.Fprintf(prompt, "To sign in, open %s in a browser.\n", da.VerificationURIComplete)
	} else {
		fmt.Fprintf(prompt, "To sign in, open %s and enter the code %s.\n", da.VerificationURI, da.UserCode)
	}

	tok, err := cfg.DeviceAccessToken(ctx, da)
	if err != nil {
		return nil, fmt.Errorf("device flow: %w", err)
	}
	return tok, nil
}

// VaultScoped returns a provider acquiring tokens for Azure Key Vault using
// the same credentials. Device-code profiles reuse the interactive flow with
// the vault scope.
func (p *EntraID) VaultScoped() *EntraID {
	return NewEntraID(p.TenantID, p.ClientID, []string{"https://vault.azure.net/.default"}, p.ClientSecret)
}
