// Package cli defines the Cobra command tree for the ppx CLI. Each file in
// this package registers one top-level command group (env, solution, dv,
// pages, etc.) with the root command. Command implementations delegate to
// internal packages for the API work and only handle flag parsing, I/O
// formatting, and user interaction.
package cli
