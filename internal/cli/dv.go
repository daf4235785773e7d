package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pacx-labs/pacx/internal/bulk"
	"github.com/pacx-labs/pacx/internal/odata"
)

var (
	dvHost      string
	dvSelect    string
	dvFilter    string
	dvOrderBy   string
	dvTop       int
	dvAllPages  bool
	dvBody      string
	dvIDColumn  string
	dvKeyCols   string
	dvChunkSize int
	dvCreate    bool
	dvReport    string
)

func init() {
	for _, c := range []*cobra.Command{dvWhoAmICmd, dvListCmd, dvGetCmd, dvCreateCmd, dvUpdateCmd, dvDeleteCmd, dvBulkCSVCmd} {
		c.Flags().StringVar(&dvHost, "host", "", "Dataverse host (default: DATAVERSE_HOST or configured)")
	}
	dvListCmd.Flags().StringVar(&dvSelect, "select", "", "$select column list")
	dvListCmd.Flags().StringVar(&dvFilter, "filter", "", "$filter expression")
	dvListCmd.Flags().StringVar(&dvOrderBy, "orderby", "", "$orderby expression")
	dvListCmd.Flags().IntVar(&dvTop, "top", 0, "$top row limit")
	dvListCmd.Flags().BoolVar(&dvAllPages, "all", false, "Follow @odata.nextLink until exhausted")
	dvGetCmd.Flags().StringVar(&dvSelect, "select", "", "$select column list")
	dvCreateCmd.Flags().StringVar(&dvBody, "body", "", "Record as inline JSON or @file")
	dvUpdateCmd.Flags().StringVar(&dvBody, "body", "", "Changed columns as inline JSON or @file")
	dvCreateCmd.MarkFlagRequired("body")
	dvUpdateCmd.MarkFlagRequired("body")

	dvBulkCSVCmd.Flags().StringVar(&dvIDColumn, "id-column", "", "CSV column holding the primary key")
	dvBulkCSVCmd.Flags().StringVar(&dvKeyCols, "key-columns", "", "Comma-separated alternate key columns")
	dvBulkCSVCmd.Flags().IntVar(&dvChunkSize, "chunk-size", bulk.DefaultChunkSize, "Rows per $batch request")
	dvBulkCSVCmd.Flags().BoolVar(&dvCreate, "create-if-missing", false, "POST rows that have no id or key values")
	dvBulkCSVCmd.Flags().StringVar(&dvReport, "report", "", "Write a per-row result CSV to this path")

	dvCmd.AddCommand(dvWhoAmICmd, dvListCmd, dvGetCmd, dvCreateCmd, dvUpdateCmd, dvDeleteCmd, dvBulkCSVCmd)
	rootCmd.AddCommand(dvCmd)
}

var dvCmd = &cobra.Command{
	Use:   "dv",
	Short: "Generic Dataverse Web API operations",
}

var dvWhoAmICmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the authenticated Dataverse identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		dv, err := dataverseClient(cmd.Context(), dvHost)
		if err != nil {
			return err
		}
		who, err := dv.WhoAmI(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(who)
	},
}

var dvListCmd = &cobra.Command{
	Use:   "list <entity-set>",
	Short: "List records of an entity set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dv, err := dataverseClient(cmd.Context(), dvHost)
		if err != nil {
			return err
		}
		page, err := dv.ListRecords(cmd.Context(), args[0], odata.Query{
			Select:  dvSelect,
			Filter:  dvFilter,
			OrderBy: dvOrderBy,
			Top:     dvTop,
		})
		if err != nil {
			return err
		}
		records := page.Value
		for dvAllPages && page.NextLink != "" {
			page, err = dv.NextPage(cmd.Context(), page.NextLink)
			if err != nil {
				return err
			}
			records = append(records, page.Value...)
		}
		if err := printJSON(records); err != nil {
			return err
		}
		if !dvAllPages && page.NextLink != "" {
			fmt.Fprintln(os.Stderr, "More pages available; re-run with --all.")
		}
		return nil
	},
}

var dvGetCmd = &cobra.Command{
	Use:   "get <entity-set> <id>",
	Short: "Fetch one record by ID",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dv, err := dataverseClient(cmd.Context(), dvHost)
		if err != nil {
			return err
		}
		rec, err := dv.GetRecord(cmd.Context(), args[0], args[1], odata.Query{Select: dvSelect})
		if err != nil {
			return err
		}
		return printJSON(rec)
	},
}

var dvCreateCmd = &cobra.Command{
	Use:   "create <entity-set>",
	Short: "Create a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := readBodyArg(dvBody)
		if err != nil {
			return err
		}
		dv, err := dataverseClient(cmd.Context(), dvHost)
		if err != nil {
			return err
		}
		res, err := dv.CreateRecord(cmd.Context(), args[0], body)
		if err != nil {
			return err
		}
		fmt.Printf("Created: %s\n", res.EntityURL)
		return nil
	},
}

var dvUpdateCmd = &cobra.Command{
	Use:   "update <entity-set> <id>",
	Short: "Update a record (PATCH, update-only)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := readBodyArg(dvBody)
		if err != nil {
			return err
		}
		dv, err := dataverseClient(cmd.Context(), dvHost)
		if err != nil {
			return err
		}
		if err := dv.UpdateRecord(cmd.Context(), args[0], args[1], body); err != nil {
			return err
		}
		fmt.Println("Updated.")
		return nil
	},
}

var dvDeleteCmd = &cobra.Command{
	Use:   "delete <entity-set> <id>",
	Short: "Delete a record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dv, err := dataverseClient(cmd.Context(), dvHost)
		if err != nil {
			return err
		}
		if err := dv.DeleteRecord(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Println("Deleted.")
		return nil
	},
}

var dvBulkCSVCmd = &cobra.Command{
	Use:   "bulk-csv <entity-set> <file.csv>",
	Short: "Upsert records from a CSV via $batch",
	Long: `Reads a CSV with a header row and upserts each row:
rows with a value in --id-column are PATCHed by ID, rows with values in
--key-columns are PATCHed by alternate key, and remaining rows are POSTed
when --create-if-missing is set. Requests are grouped into $batch chunks.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dv, err := dataverseClient(cmd.Context(), dvHost)
		if err != nil {
			return err
		}

		opts := bulk.Options{
			IDColumn:        dvIDColumn,
			ChunkSize:       dvChunkSize,
			CreateIfMissing: dvCreate,
		}
		if dvKeyCols != "" {
			opts.KeyColumns = strings.Split(dvKeyCols, ",")
		}

		result, err := bulk.UpsertCSV(cmd.Context(), dv, args[0], args[1], opts)
		if err != nil {
			return err
		}

		fmt.Printf("Done: %d succeeded, %d failed.\n", result.Stats.Successes, result.Stats.Failures)
		if dvReport != "" {
			f, err := os.Create(dvReport)
			if err != nil {
				return fmt.Errorf("creating report file: %w", err)
			}
			defer f.Close()
			if err := bulk.WriteReport(f, result); err != nil {
				return err
			}
			fmt.Printf("Report written to %s\n", dvReport)
		}
		if result.Stats.Failures > 0 {
			return fmt.Errorf("%d rows failed", result.Stats.Failures)
		}
		return nil
	},
}
