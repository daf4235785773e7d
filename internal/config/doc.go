// Package config manages the ~/.pacx/config.json profile store: named
// authentication profiles, the default profile selection, and global
// Dataverse defaults. Sensitive profile fields are encrypted at rest when
// PACX_CONFIG_ENCRYPTION_KEY is set. Environment overrides (PACX_*,
// DATAVERSE_HOST) are resolved through viper with flag > env > config
// precedence.
package config
