// Package bulk upserts Dataverse records from CSV files using OData $batch
// requests: rows with an id PATCH by primary key, rows with alternate key
// values PATCH by key segment, and the rest POST as new records.
package bulk

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/pacx-labs/pacx/internal/batch"
	"github.com/pacx-labs/pacx/internal/dataverse"
	"github.com/pacx-labs/pacx/internal/logging"
	"github.com/pacx-labs/pacx/internal/odata"
)

// DefaultChunkSize is the number of rows grouped into one $batch request.
const DefaultChunkSize = 50

// Options control how CSV rows map to batch operations.
type Options struct {
	IDColumn        string   // column holding the primary key for PATCH
	KeyColumns      []string // alternate key columns used when the id is blank
	ChunkSize       int      // rows per $batch, DefaultChunkSize when zero
	CreateIfMissing bool     // POST rows that have neither id nor key values
}

// OperationResult is the outcome of one row's operation.
type OperationResult struct {
	RowIndex   int // 1-based position within its chunk
	ContentID  int
	StatusCode int
	Reason     string
	JSON       map[string]any
	Text       string
}

// OK reports whether the row's operation succeeded.
func (r OperationResult) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Stats summarize a bulk run.
type Stats struct {
	Successes int
	Failures  int
}

// Result aggregates all per-row outcomes of an upsert run.
type Result struct {
	Operations []OperationResult
	Stats      Stats
}

// UpsertCSV reads rows from csvPath and upserts them into entitySet.
func UpsertCSV(ctx context.Context, dv *dataverse.Client, entitySet, csvPath string, opts Options) (*Result, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", csvPath, err)
	}
	defer f.Close()
	return Upsert(ctx, dv, entitySet, f, opts)
}

// Upsert reads CSV rows from r and upserts them into entitySet.
func Upsert(ctx context.Context, dv *dataverse.Client, entitySet string, r io.Reader, opts Options) (*Result, error) {
	rows, err := readRows(r)
	if err != nil {
		return nil, err
	}
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	result := &Result{}
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		ops, err := buildOps(entitySet, rows[start:end], opts)
		if err != nil {
			return nil, err
		}
		if len(ops) == 0 {
			continue
		}
		logging.L().Debug("sending bulk chunk",
			zap.String("entitySet", entitySet),
			zap.Int("operations", len(ops)))
		results, err := dv.SendBatch(ctx, ops)
		if err != nil {
			return nil, fmt.Errorf("sending chunk starting at row %d: %w", start+1, err)
		}
		for i, res := range results {
			op := OperationResult{
				RowIndex:   i + 1,
				ContentID:  res.ContentID,
				StatusCode: res.StatusCode,
				Reason:     res.Reason,
				JSON:       res.JSON,
				Text:       res.Text,
			}
			result.Operations = append(result.Operations, op)
			if op.OK() {
				result.Stats.Successes++
			} else {
				result.Stats.Failures++
			}
		}
	}
	return result, nil
}

func readRows(r io.Reader) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	var rows []map[string]string
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row %d: %w", len(rows)+2, err)
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// buildOps maps one chunk of rows to batch operations. Empty-valued fields
// are dropped from the body so PATCH requests do not blank columns.
func buildOps(entitySet string, rows []map[string]string, opts Options) ([]batch.Operation, error) {
	var ops []batch.Operation
	for _, row := range rows {
		body := make(map[string]any, len(row))
		for k, v := range row {
			if k == opts.IDColumn || v == "" {
				continue
			}
			body[k] = v
		}

		id := row[opts.IDColumn]
		switch {
		case id != "":
			ops = append(ops, batch.Operation{
				Method: "PATCH",
				URL:    fmt.Sprintf("%s/%s(%s)", dataverse.APIPath, entitySet, odata.SanitizeGUID(id)),
				Body:   body,
			})
		case hasKeyValues(row, opts.KeyColumns):
			keys := make(map[string]string, len(opts.KeyColumns))
			for _, col := range opts.KeyColumns {
				keys[col] = row[col]
			}
			segment, err := odata.AlternateKeySegment(keys)
			if err != nil {
				return nil, err
			}
			ops = append(ops, batch.Operation{
				Method: "PATCH",
				URL:    fmt.Sprintf("%s/%s(%s)", dataverse.APIPath, entitySet, segment),
				Body:   body,
			})
		case opts.CreateIfMissing:
			ops = append(ops, batch.Operation{
				Method: "POST",
				URL:    fmt.Sprintf("%s/%s", dataverse.APIPath, entitySet),
				Body:   body,
			})
		}
	}
	return ops, nil
}

func hasKeyValues(row map[string]string, keyColumns []string) bool {
	if len(keyColumns) == 0 {
		return false
	}
	for _, col := range keyColumns {
		if row[col] == "" {
			return false
		}
	}
	return true
}

// WriteReport writes per-operation results as CSV to w.
func WriteReport(w io.Writer, result *Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"row_index", "content_id", "status_code", "reason", "json"}); err != nil {
		return fmt.Errorf("writing report header: %w", err)
	}
	for _, op := range result.Operations {
		var body string
		if op.JSON != nil {
			b, err := json.Marshal(op.JSON)
			if err == nil {
				body = string(b)
			}
		}
		record := []string{
			strconv.Itoa(op.RowIndex),
			strconv.Itoa(op.ContentID),
			strconv.Itoa(op.StatusCode),
			op.Reason,
			body,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing report row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
