package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/viper"

	"github.com/pacx-labs/pacx/internal/branding"
)

const fileName = "config.json"

// Profile holds the credentials and defaults for one named connection.
type Profile struct {
	Name            string `json:"name"`
	TenantID        string `json:"tenant_id,omitempty"`
	ClientID        string `json:"client_id,omitempty"`
	Scope           string `json:"scope,omitempty"`
	DataverseHost   string `json:"dataverse_host,omitempty"`
	EnvironmentID   string `json:"environment_id,omitempty"`
	AccessToken     string `json:"-"`
	ClientSecretEnv string `json:"client_secret_env,omitempty"`
	SecretBackend   string `json:"secret_backend,omitempty"`
	SecretRef       string `json:"secret_ref,omitempty"`
	UseDeviceCode   bool   `json:"use_device_code,omitempty"`
}

// Data is the full decrypted configuration.
type Data struct {
	DefaultProfile string
	Profiles       map[string]Profile
	EnvironmentID  string
	DataverseHost  string
}

// InitEnv wires the PACX_* environment surface through viper. Called once
// from the root command.
func InitEnv() {
	viper.SetEnvPrefix(branding.EnvPrefix())
	viper.AutomaticEnv()
	// DATAVERSE_HOST predates the PACX_ prefix and is kept for compatibility.
	_ = viper.BindEnv("dataverse_host", "DATAVERSE_HOST")
}

// AccessTokenFromEnv returns PACX_ACCESS_TOKEN, which bypasses profile-based
// token acquisition entirely.
func AccessTokenFromEnv() string {
	return viper.GetString("access_token")
}

// Dir returns the PACX home directory (PACX_HOME or ~/.pacx).
func Dir() string {
	if home := viper.GetString("home"); home != "" {
		return home
	}
	if home := os.Getenv(branding.EnvVar("HOME")); home != "" {
		return home
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return filepath.Join(userHome, branding.HomeDir())
}

// FilePath returns the full path to the config file.
func FilePath() string {
	return filepath.Join(Dir(), fileName)
}

// Store reads and writes the JSON config file.
type Store struct {
	path   string
	cipher *cipherBox
}

// NewStore creates a Store at path, defaulting to FilePath(). The
// encryption key is read from PACX_CONFIG_ENCRYPTION_KEY at construction.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = FilePath()
	}
	box, err := newCipherBox(os.Getenv(branding.EnvVar("CONFIG_ENCRYPTION_KEY")))
	if err != nil {
		return nil, err
	}
	return &Store{path: path, cipher: box}, nil
}

// on-disk shapes; access_token may be a plain string or an encrypted envelope.

type diskConfig struct {
	Default       string                 `json:"default"`
	Profiles      map[string]diskProfile `json:"profiles"`
	EnvironmentID string                 `json:"environment_id,omitempty"`
	DataverseHost string                 `json:"dataverse_host,omitempty"`
}

type diskProfile struct {
	Profile
	AccessToken json.RawMessage `json:"access_token,omitempty"`
}

// Load reads and decrypts the config file. A missing file yields empty Data.
func (s *Store) Load() (Data, error) {
	data := Data{Profiles: map[string]Profile{}}

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return data, nil
	}
	if err != nil {
		return data, fmt.Errorf("reading config %s: %w", s.path, err)
	}
	ensureSecurePermissions(s.path)

	var disk diskConfig
	if err := json.Unmarshal(raw, &disk); err != nil {
		return data, fmt.Errorf("parsing config %s: %w", s.path, err)
	}

	data.DefaultProfile = disk.Default
	data.EnvironmentID = disk.EnvironmentID
	data.DataverseHost = disk.DataverseHost
	for name, dp := range disk.Profiles {
		p := dp.Profile
		p.Name = name
		token, err := s.cipher.decryptValue(dp.AccessToken)
		if err != nil {
			return data, fmt.Errorf("profile %q: %w", name, err)
		}
		p.AccessToken = token
		data.Profiles[name] = p
	}
	return data, nil
}

// Save encrypts and atomically writes the config file with 0600 permissions.
func (s *Store) Save(data Data) error {
	disk := diskConfig{
		Default:       data.DefaultProfile,
		Profiles:      map[string]diskProfile{},
		EnvironmentID: data.EnvironmentID,
		DataverseHost: data.DataverseHost,
	}
	for name, p := range data.Profiles {
		token, err := s.cipher.encryptValue(p.AccessToken)
		if err != nil {
			return fmt.Errorf("profile %q: %w", name, err)
		}
		disk.Profiles[name] = diskProfile{Profile: p, AccessToken: token}
	}

	raw, err := json.MarshalIndent(disk, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing config: %w", err)
	}
	ensureSecurePermissions(s.path)
	return nil
}

// UpsertProfile stores the profile, making it the default when requested or
// when no default exists yet.
func (s *Store) UpsertProfile(p Profile, setDefault bool) error {
	data, err := s.Load()
	if err != nil {
		return err
	}
	data.Profiles[p.Name] = p
	if setDefault || data.DefaultProfile == "" {
		data.DefaultProfile = p.Name
	}
	return s.Save(data)
}

// SetDefaultProfile marks name as the default profile.
func (s *Store) SetDefaultProfile(name string) error {
	data, err := s.Load()
	if err != nil {
		return err
	}
	if _, ok := data.Profiles[name]; !ok {
		return fmt.Errorf("profile %q not found", name)
	}
	data.DefaultProfile = name
	return s.Save(data)
}

// DeleteProfile removes a profile, clearing the default when it pointed at
// the removed entry.
func (s *Store) DeleteProfile(name string) error {
	data, err := s.Load()
	if err != nil {
		return err
	}
	if _, ok := data.Profiles[name]; !ok {
		return fmt.Errorf("profile %q not found", name)
	}
	delete(data.Profiles, name)
	if data.DefaultProfile == name {
		data.DefaultProfile = ""
	}
	return s.Save(data)
}

// ProfileNames returns the profile names sorted.
func (d Data) ProfileNames() []string {
	names := make([]string, 0, len(d.Profiles))
	for name := range d.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns the default profile, if one is configured and present.
func (d Data) Default() (Profile, bool) {
	if d.DefaultProfile == "" {
		return Profile{}, false
	}
	p, ok := d.Profiles[d.DefaultProfile]
	return p, ok
}

// ResolveEnvironmentID applies flag > config precedence for the environment
// id used by Power Platform commands.
func ResolveEnvironmentID(flagValue string, d Data) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if d.EnvironmentID != "" {
		return d.EnvironmentID, nil
	}
	return "", fmt.Errorf(
		"environment ID is not configured: pass --environment-id or run `%s profile set-env <id>` to persist a default",
		branding.CLIName())
}

// ResolveDataverseHost applies flag > DATAVERSE_HOST > config precedence.
func ResolveDataverseHost(flagValue string, d Data) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if host := viper.GetString("dataverse_host"); host != "" {
		return host, nil
	}
	if d.DataverseHost != "" {
		return d.DataverseHost, nil
	}
	if p, ok := d.Default(); ok && p.DataverseHost != "" {
		return p.DataverseHost, nil
	}
	return "", fmt.Errorf(
		"Dataverse host is not configured: pass --host, export DATAVERSE_HOST, or run `%s profile set-host <org.crm.dynamics.com>`",
		branding.CLIName())
}
