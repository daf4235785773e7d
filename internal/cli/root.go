package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pacx-labs/pacx/internal/branding"
	"github.com/pacx-labs/pacx/internal/config"
	"github.com/pacx-labs/pacx/internal/httpx"
	"github.com/pacx-labs/pacx/internal/logging"
	"github.com/pacx-labs/pacx/internal/updater"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string

	flagProfile string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: branding.DisplayName() + ` wraps the Microsoft Power Platform and Dataverse REST APIs:
environments, solutions, connectors, cloud flows, Power Pages, licensing,
tenant settings, DLP and governance policies, admin roles, and generic
Dataverse CRUD, driven by named auth profiles.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.InitEnv()
		logging.Init(flagVerbose)

		// Commands that manage versions skip the banner.
		name := cmd.Name()
		if name == "self-update" || name == "version" {
			return
		}

		// Non-blocking banner from the cached version check.
		u := updater.New(buildVersion)
		u.CheckAndPrintBanner(os.Stderr, config.Dir())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagProfile, "profile", "", "Named auth profile to use (default: configured default)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
}

// Execute runs the root command with build info injected via ldflags.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	err := rootCmd.Execute()
	if err != nil {
		renderError(os.Stderr, err)
	}
	return err
}

// renderError prints HTTP failures with their response details so API error
// payloads (Dataverse/Power Platform error envelopes) are not lost.
func renderError(w *os.File, err error) {
	var he *httpx.HTTPError
	if errors.As(err, &he) {
		fmt.Fprintf(w, "Error: %v\n", err)
		if details := he.DetailString(); details != "" {
			fmt.Fprintln(w, details)
		}
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}
