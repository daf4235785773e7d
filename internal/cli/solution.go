package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pacx-labs/pacx/internal/dataverse"
	"github.com/pacx-labs/pacx/internal/odata"
	"github.com/pacx-labs/pacx/internal/poll"
	"github.com/pacx-labs/pacx/internal/solution"
)

var (
	solHost        string
	solManaged     bool
	solOut         string
	solNoOverwrite bool
	solNoPublish   bool
	solWait        bool
	solWaitTimeout time.Duration
	solBumpLevel   string
)

func init() {
	for _, c := range []*cobra.Command{solListCmd, solExportCmd, solImportCmd, solPublishAllCmd} {
		c.Flags().StringVar(&solHost, "host", "", "Dataverse host (default: DATAVERSE_HOST or configured)")
	}
	solExportCmd.Flags().BoolVar(&solManaged, "managed", false, "Export as a managed solution")
	solExportCmd.Flags().StringVar(&solOut, "out", "", "Output ZIP path (default: <name>.zip)")
	solImportCmd.Flags().BoolVar(&solNoOverwrite, "no-overwrite", false, "Do not overwrite unmanaged customizations")
	solImportCmd.Flags().BoolVar(&solNoPublish, "no-publish", false, "Do not publish workflows after import")
	solImportCmd.Flags().BoolVar(&solWait, "wait", false, "Poll the import job until it completes")
	solImportCmd.Flags().DurationVar(&solWaitTimeout, "timeout", 10*time.Minute, "Give up waiting after this long")
	solBumpCmd.Flags().StringVar(&solBumpLevel, "level", solution.BumpPatch, "Version part to raise: major, minor, or patch")

	solCmd.AddCommand(solListCmd, solExportCmd, solImportCmd, solPublishAllCmd,
		solPackCmd, solUnpackCmd, solPackSPCmd, solUnpackSPCmd, solBumpCmd)
	rootCmd.AddCommand(solCmd)
}

var solCmd = &cobra.Command{
	Use:   "solution",
	Short: "Manage Dataverse solutions",
}

var solListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed solutions",
	RunE: func(cmd *cobra.Command, args []string) error {
		dv, err := dataverseClient(cmd.Context(), solHost)
		if err != nil {
			return err
		}
		sols, err := dv.ListSolutions(cmd.Context(), odata.Query{
			Select:  "solutionid,uniquename,friendlyname,version",
			OrderBy: "uniquename",
		})
		if err != nil {
			return err
		}
		for _, s := range sols {
			fmt.Printf("%-40s %-12s %s\n", s.UniqueName, s.Version, s.FriendlyName)
		}
		return nil
	},
}

var solExportCmd = &cobra.Command{
	Use:   "export <unique-name>",
	Short: "Export a solution to a ZIP file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dv, err := dataverseClient(cmd.Context(), solHost)
		if err != nil {
			return err
		}
		data, err := dv.ExportSolution(cmd.Context(), args[0], solManaged)
		if err != nil {
			return err
		}
		out := solOut
		if out == "" {
			out = args[0] + ".zip"
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", out, err)
		}
		fmt.Printf("Exported %s (%d bytes) to %s\n", args[0], len(data), out)
		return nil
	},
}

var solImportCmd = &cobra.Command{
	Use:   "import <solution.zip>",
	Short: "Import a solution ZIP",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		zipData, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading solution file: %w", err)
		}
		dv, err := dataverseClient(cmd.Context(), solHost)
		if err != nil {
			return err
		}

		opts := dataverse.DefaultImportOptions()
		opts.OverwriteUnmanagedCustomizations = !solNoOverwrite
		opts.PublishWorkflows = !solNoPublish
		if solWait {
			opts.ImportJobID = uuid.NewString()
		}

		if err := dv.ImportSolution(cmd.Context(), zipData, opts); err != nil {
			return err
		}
		fmt.Println("Import submitted.")

		if solWait {
			status, err := dv.WaitForImportJob(cmd.Context(), opts.ImportJobID, poll.Options{Timeout: solWaitTimeout})
			if err != nil {
				return err
			}
			if p, ok := poll.Progress(status); ok {
				fmt.Printf("Import job progress: %d%%\n", p)
			}
			return printJSON(status)
		}
		return nil
	},
}

var solPublishAllCmd = &cobra.Command{
	Use:   "publish-all",
	Short: "Publish all pending customizations",
	RunE: func(cmd *cobra.Command, args []string) error {
		dv, err := dataverseClient(cmd.Context(), solHost)
		if err != nil {
			return err
		}
		if err := dv.PublishAll(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Publish requested.")
		return nil
	},
}

var solPackCmd = &cobra.Command{
	Use:   "pack <folder> <out.zip>",
	Short: "Pack a folder into a solution ZIP",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := solution.Pack(args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Packed %s into %s\n", args[0], args[1])
		return nil
	},
}

var solUnpackCmd = &cobra.Command{
	Use:   "unpack <solution.zip> <folder>",
	Short: "Unpack a solution ZIP into a folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := solution.Unpack(args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Unpacked %s into %s\n", args[0], args[1])
		return nil
	},
}

var solPackSPCmd = &cobra.Command{
	Use:   "pack-sp <src-folder> <out.zip>",
	Short: "Pack a SolutionPackager-style source folder into a ZIP",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := solution.PackFromSource(args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Packed %s into %s\n", args[0], args[1])
		return nil
	},
}

var solUnpackSPCmd = &cobra.Command{
	Use:   "unpack-sp <solution.zip> <folder>",
	Short: "Unpack a solution ZIP into a SolutionPackager-style source folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := solution.UnpackToSource(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Unpacked %s into %s\n", args[0], src)
		return nil
	},
}

var solBumpCmd = &cobra.Command{
	Use:   "bump <solution.xml>",
	Short: "Raise the version in a solution.xml",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		oldV, newV, err := solution.BumpVersion(args[0], solBumpLevel)
		if err != nil {
			return err
		}
		fmt.Printf("Version bumped: %s -> %s\n", oldV, newV)
		return nil
	},
}
