package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pacx-labs/pacx/internal/pages"
)

var (
	pagesHost     string
	pagesTables   string
	pagesTop      int
	pagesFiles    bool
	pagesBinaries bool
	pagesStrategy string
	pagesKeyFlags []string
)

func init() {
	for _, c := range []*cobra.Command{pagesDownloadCmd, pagesUploadCmd, pagesDiffCmd} {
		c.Flags().StringVar(&pagesHost, "host", "", "Dataverse host (default: DATAVERSE_HOST or configured)")
	}
	pagesDownloadCmd.Flags().StringVar(&pagesTables, "tables", "core", `Tables to export: "core", "full", or a comma-separated list`)
	pagesDownloadCmd.Flags().IntVar(&pagesTop, "top", 0, "Rows per table")
	pagesDownloadCmd.Flags().BoolVar(&pagesFiles, "include-files", false, "Include the web files table")
	pagesDownloadCmd.Flags().BoolVar(&pagesBinaries, "binaries", false, "Also download web file binaries with sha256 sidecars")
	pagesUploadCmd.Flags().StringVar(&pagesStrategy, "strategy", pages.StrategyMerge, "Upload strategy: replace, merge, skip-existing, or create-only")
	pagesDiffCmd.Flags().StringArrayVar(&pagesKeyFlags, "key", nil, "Natural key override as entityset=col1,col2 (repeatable)")

	pagesCmd.AddCommand(pagesDownloadCmd, pagesUploadCmd, pagesDiffCmd)
	rootCmd.AddCommand(pagesCmd)
}

var pagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "Sync Power Pages site content",
}

var pagesDownloadCmd = &cobra.Command{
	Use:   "download <website-id> <folder>",
	Short: "Download site records into per-table JSON folders",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dv, err := dataverseClient(cmd.Context(), pagesHost)
		if err != nil {
			return err
		}
		pc := pages.NewClient(dv)
		manifest, err := pc.DownloadSite(cmd.Context(), args[0], args[1], pages.DownloadOptions{
			Tables:       pagesTables,
			Top:          pagesTop,
			IncludeFiles: pagesFiles,
			Binaries:     pagesBinaries,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Downloaded site %s into %s:\n", args[0], args[1])
		for table, count := range manifest.Summary {
			fmt.Printf("  %-30s %d\n", table, count)
		}
		return nil
	},
}

var pagesUploadCmd = &cobra.Command{
	Use:   "upload <folder>",
	Short: "Upload site records from per-table JSON folders",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dv, err := dataverseClient(cmd.Context(), pagesHost)
		if err != nil {
			return err
		}
		pc := pages.NewClient(dv)
		if err := pc.UploadSite(cmd.Context(), args[0], pagesStrategy); err != nil {
			return err
		}
		fmt.Println("Upload complete.")
		return nil
	},
}

var pagesDiffCmd = &cobra.Command{
	Use:   "diff-permissions <website-id> <folder>",
	Short: "Show a permission sync plan against the live site",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides, err := parseKeyOverrides(pagesKeyFlags)
		if err != nil {
			return err
		}
		dv, err := dataverseClient(cmd.Context(), pagesHost)
		if err != nil {
			return err
		}
		pc := pages.NewClient(dv)
		entries, err := pc.DiffPermissions(cmd.Context(), args[0], args[1], overrides)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No permission changes.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%-8s %-25s %s\n", e.Action, e.EntitySet, strings.Join(e.Key, " / "))
		}
		return nil
	},
}

// parseKeyOverrides turns repeated entityset=col1,col2 flags into a map.
func parseKeyOverrides(flags []string) (map[string][]string, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	out := make(map[string][]string, len(flags))
	for _, f := range flags {
		name, cols, ok := strings.Cut(f, "=")
		if !ok || name == "" || cols == "" {
			return nil, fmt.Errorf("invalid --key %q, want entityset=col1,col2", f)
		}
		out[name] = strings.Split(cols, ",")
	}
	return out, nil
}
