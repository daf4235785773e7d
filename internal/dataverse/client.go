// Package dataverse wraps the Dataverse Web API (v9.2): generic OData CRUD,
// solution export/import, and $batch execution against one environment host.
package dataverse

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/pacx-labs/pacx/internal/batch"
	"github.com/pacx-labs/pacx/internal/httpx"
	"github.com/pacx-labs/pacx/internal/odata"
	"github.com/pacx-labs/pacx/internal/poll"
)

// APIPath is the Web API base path appended to the environment host. Batch
// operation URLs must carry it too, since they are resolved against the host.
const APIPath = "/api/data/v9.2"

// Client talks to a single Dataverse environment.
type Client struct {
	http *httpx.Client
}

// New builds a client for host (e.g. org.crm.dynamics.com).
func New(host string, token httpx.TokenFunc, opts ...httpx.Option) *Client {
	base := host
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	all := append([]httpx.Option{
		httpx.WithToken(token),
		httpx.WithHeaders(map[string]string{
			"OData-Version":    "4.0",
			"OData-MaxVersion": "4.0",
			"Accept":           "application/json",
			"Content-Type":     "application/json; charset=utf-8",
		}),
	}, opts...)
	return &Client{http: httpx.New(strings.TrimRight(base, "/")+APIPath, all...)}
}

// WhoAmIResponse identifies the calling user.
type WhoAmIResponse struct {
	UserID         string `json:"UserId"`
	BusinessUnitID string `json:"BusinessUnitId"`
	OrganizationID string `json:"OrganizationId"`
}

func (c *Client) WhoAmI(ctx context.Context) (*WhoAmIResponse, error) {
	resp, err := c.http.Get(ctx, "WhoAmI()", nil)
	if err != nil {
		return nil, fmt.Errorf("calling WhoAmI: %w", err)
	}
	var out WhoAmIResponse
	if err := resp.JSON(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Record is a raw Dataverse row.
type Record = map[string]any

// RecordPage is one page of an entity set listing.
type RecordPage struct {
	Value    []Record `json:"value"`
	NextLink string   `json:"@odata.nextLink"`
}

// ListRecords queries an entity set with standard OData options.
func (c *Client) ListRecords(ctx context.Context, entitySet string, q odata.Query) (*RecordPage, error) {
	resp, err := c.http.Get(ctx, entitySet, q.Values())
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", entitySet, err)
	}
	var page RecordPage
	if err := resp.JSON(&page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetRecord retrieves one record by primary key.
func (c *Client) GetRecord(ctx context.Context, entitySet, id string, q odata.Query) (Record, error) {
	path := fmt.Sprintf("%s(%s)", entitySet, odata.SanitizeGUID(id))
	resp, err := c.http.Get(ctx, path, q.Values())
	if err != nil {
		return nil, fmt.Errorf("getting %s: %w", path, err)
	}
	var rec Record
	if err := resp.JSON(&rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// CreateResult reports where a created record landed.
type CreateResult struct {
	EntityURL string
	Body      Record
}

// CreateRecord posts a new record and returns the OData-EntityId header.
func (c *Client) CreateRecord(ctx context.Context, entitySet string, data Record) (*CreateResult, error) {
	resp, err := c.http.Post(ctx, entitySet, nil, data)
	if err != nil {
		return nil, fmt.Errorf("creating %s record: %w", entitySet, err)
	}
	out := &CreateResult{}
	if loc := resp.Header.Get("OData-EntityId"); loc != "" {
		out.EntityURL = loc
	} else if loc := resp.Header.Get("Location"); loc != "" {
		out.EntityURL = loc
	}
	if len(resp.Body) > 0 {
		_ = resp.JSON(&out.Body)
	}
	return out, nil
}

// UpdateRecord patches fields on an existing record. If-Match: * prevents
// the PATCH from creating a record when the id does not exist.
func (c *Client) UpdateRecord(ctx context.Context, entitySet, id string, data Record) error {
	path := fmt.Sprintf("%s(%s)", entitySet, odata.SanitizeGUID(id))
	_, err := c.http.Do(ctx, httpx.Request{
		Method:  "PATCH",
		Path:    path,
		JSON:    data,
		Headers: map[string]string{"If-Match": "*"},
	})
	if err != nil {
		return fmt.Errorf("updating %s: %w", path, err)
	}
	return nil
}

// UpsertByKey patches a record addressed by alternate key, creating it when
// absent.
func (c *Client) UpsertByKey(ctx context.Context, entitySet string, keys map[string]string, data Record) error {
	segment, err := odata.AlternateKeySegment(keys)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("%s(%s)", entitySet, segment)
	if _, err := c.http.Patch(ctx, path, nil, data); err != nil {
		return fmt.Errorf("upserting %s: %w", path, err)
	}
	return nil
}

// DeleteRecord removes a record by primary key.
func (c *Client) DeleteRecord(ctx context.Context, entitySet, id string) error {
	path := fmt.Sprintf("%s(%s)", entitySet, odata.SanitizeGUID(id))
	if _, err := c.http.Delete(ctx, path, nil); err != nil {
		return fmt.Errorf("deleting %s: %w", path, err)
	}
	return nil
}

// SendBatch executes ops as one $batch request and returns per-operation
// results in Content-ID order. Operation URLs must include APIPath.
func (c *Client) SendBatch(ctx context.Context, ops []batch.Operation) ([]batch.Result, error) {
	boundary, body, err := batch.Build(ops)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(ctx, httpx.Request{
		Method: "POST",
		Path:   "$batch",
		Raw:    body,
		Headers: map[string]string{
			"Content-Type": "multipart/mixed; boundary=" + boundary,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sending $batch: %w", err)
	}
	return batch.ParseResponse(resp.Header.Get("Content-Type"), resp.Body), nil
}

// Solution is the subset of solution columns the CLI surfaces.
type Solution struct {
	SolutionID   string `json:"solutionid"`
	UniqueName   string `json:"uniquename"`
	FriendlyName string `json:"friendlyname"`
	Version      string `json:"version"`
}

// ListSolutions lists installed solutions.
func (c *Client) ListSolutions(ctx context.Context, q odata.Query) ([]Solution, error) {
	resp, err := c.http.Get(ctx, "solutions", q.Values())
	if err != nil {
		return nil, fmt.Errorf("listing solutions: %w", err)
	}
	var page struct {
		Value []Solution `json:"value"`
	}
	if err := resp.JSON(&page); err != nil {
		return nil, err
	}
	return page.Value, nil
}

// ExportSolution exports a solution and returns the ZIP payload.
func (c *Client) ExportSolution(ctx context.Context, name string, managed bool) ([]byte, error) {
	body := map[string]any{"SolutionName": name, "Managed": managed}
	resp, err := c.http.Post(ctx, "ExportSolution", nil, body)
	if err != nil {
		return nil, fmt.Errorf("exporting solution %s: %w", name, err)
	}
	var out struct {
		ExportSolutionFile string `json:"ExportSolutionFile"`
	}
	if err := resp.JSON(&out); err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(out.ExportSolutionFile)
	if err != nil {
		return nil, fmt.Errorf("decoding exported solution: %w", err)
	}
	return data, nil
}

// ImportOptions tune a solution import.
type ImportOptions struct {
	OverwriteUnmanagedCustomizations bool
	PublishWorkflows                 bool
	ImportJobID                      string
}

// DefaultImportOptions match the service defaults the CLI exposes.
func DefaultImportOptions() ImportOptions {
	return ImportOptions{OverwriteUnmanagedCustomizations: true, PublishWorkflows: true}
}

// ImportSolution uploads a solution ZIP.
func (c *Client) ImportSolution(ctx context.Context, zipData []byte, opts ImportOptions) error {
	body := map[string]any{
		"OverwriteUnmanagedCustomizations": opts.OverwriteUnmanagedCustomizations,
		"PublishWorkflows":                 opts.PublishWorkflows,
		"CustomizationFile":                base64.StdEncoding.EncodeToString(zipData),
	}
	if opts.ImportJobID != "" {
		body["ImportJobId"] = opts.ImportJobID
	}
	if _, err := c.http.Post(ctx, "ImportSolution", nil, body); err != nil {
		return fmt.Errorf("importing solution: %w", err)
	}
	return nil
}

// PublishAll publishes every pending customization.
func (c *Client) PublishAll(ctx context.Context) error {
	if _, err := c.http.Post(ctx, "PublishAllXml", nil, nil); err != nil {
		return fmt.Errorf("publishing customizations: %w", err)
	}
	return nil
}

// GetImportJob fetches the status row for a solution import job.
func (c *Client) GetImportJob(ctx context.Context, jobID string) (Record, error) {
	return c.GetRecord(ctx, "importjobs", jobID, odata.Query{})
}

// WaitForImportJob polls an import job until it reports completion or the
// timeout elapses.
func (c *Client) WaitForImportJob(ctx context.Context, jobID string, opts poll.Options) (poll.Status, error) {
	fetch := func(ctx context.Context) (poll.Status, error) {
		rec, err := c.GetImportJob(ctx, jobID)
		if err != nil {
			// The job row appears only after the import starts server-side.
			return poll.Status{"status": "Unknown"}, nil
		}
		return poll.Status(rec), nil
	}
	done := func(s poll.Status) bool {
		if p, ok := poll.Progress(s); ok && p >= 100 {
			return true
		}
		return poll.IsTerminal(s)
	}
	return poll.Until(ctx, fetch, done, opts)
}

// NextPage follows an @odata.nextLink from a previous listing.
func (c *Client) NextPage(ctx context.Context, nextLink string) (*RecordPage, error) {
	path, params, err := odata.SplitNextLink(nextLink)
	if err != nil {
		return nil, err
	}
	// nextLink paths are absolute; strip the API prefix so the client base
	// applies once.
	path = strings.TrimPrefix("/"+path, APIPath+"/")
	resp, err := c.http.Get(ctx, path, params)
	if err != nil {
		return nil, fmt.Errorf("following next link: %w", err)
	}
	var page RecordPage
	if err := resp.JSON(&page); err != nil {
		return nil, err
	}
	return &page, nil
}
