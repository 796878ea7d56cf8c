package ledgerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/redromiee/bag-tracker/pkg/models"
)

// Client talks to the ledger service. It is safe for concurrent use: the
// submission queue writes through it while the operator deletes scans.
type Client struct {
	http     *http.Client
	endpoint *url.URL
}

var logger = logrus.StandardLogger().WithField("package", "ledger_client")

// RejectedError is returned when the ledger answered but did not accept the request.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ledger rejected the request (HTTP %d)", e.StatusCode)
	}
	return fmt.Sprintf("ledger rejected the request (HTTP %d): %s", e.StatusCode, e.Message)
}

func New(endpoint string) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("scheme %s is not supported", u.Scheme)
	}

	return &Client{
		endpoint: u,
		http:     &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (c *Client) SetHttpTransport(transport http.RoundTripper) {
	c.http.Transport = transport
}

func (c *Client) SetTimeout(timeout time.Duration) {
	c.http.Timeout = timeout
}

// Record writes a scan record to the ledger. It satisfies submitqueue.Writer.
func (c *Client) Record(ctx context.Context, record models.ScanRecord) error {
	req := models.RecordScanRequest{
		ScanId:    record.ScanId,
		BinId:     record.BinId,
		BagId:     record.BagId,
		ScanType:  record.ScanType,
		Username:  record.Operator,
		Timestamp: record.CapturedAt.Format(models.TimestampLayout),
	}
	_, err := c.postJSON(ctx, "/record_scan", req)
	return err
}

// Delete removes a scan from the ledger. It satisfies recent.Deleter.
func (c *Client) Delete(ctx context.Context, key models.ScanKey) error {
	_, err := c.postJSON(ctx, "/delete_scan", models.DeleteScanRequest{
		BinId:    key.BinId,
		BagId:    key.BagId,
		ScanType: key.ScanType,
	})
	return err
}

// CheckApproval reports whether the operator is still allowed to scan.
func (c *Client) CheckApproval(ctx context.Context, username, token string) (bool, error) {
	res, err := c.postJSON(ctx, "/check_approval", models.ApprovalRequest{
		Username: username,
		Token:    token,
	})
	if err != nil {
		return false, err
	}
	return res.Approved != nil && *res.Approved, nil
}

type Export struct {
	Filename string
	Body     []byte
}

// Export downloads the spreadsheet of every scan in the range.
func (c *Client) Export(ctx context.Context, r models.ExportRange, branch string) (*Export, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	u, err := c.endpoint.Parse("/export")
	if err != nil {
		return nil, fmt.Errorf("unable to parse URL: %v", err)
	}
	q := url.Values{}
	q.Set("start_date", r.Start.Format(models.DateLayout))
	q.Set("end_date", r.End.Format(models.DateLayout))
	if branch != "" {
		q.Set("branch", branch)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("unable to create request: %v", err)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to perform HTTP request: %w", err)
	}
	defer res.Body.Close()

	mediaType, _, _ := mime.ParseMediaType(res.Header.Get("Content-Type"))
	if mediaType == "application/json" || res.StatusCode != http.StatusOK {
		var status models.StatusResponse
		_ = json.NewDecoder(io.LimitReader(res.Body, 64*1024)).Decode(&status)
		return nil, &RejectedError{StatusCode: res.StatusCode, Message: status.Message}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read export: %w", err)
	}

	filename := r.Filename()
	if _, params, err := mime.ParseMediaType(res.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		filename = params["filename"]
	}
	return &Export{Filename: filename, Body: body}, nil
}

// Healthz checks if the ledger service is healthy and returns true if it is.
func (c *Client) Healthz(ctx context.Context) (bool, error) {
	healthEndpoint, err := c.endpoint.Parse("/healthz")
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthEndpoint.String(), nil)
	if err != nil {
		return false, err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	return res.StatusCode == http.StatusOK, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body any) (*models.StatusResponse, error) {
	u, err := c.endpoint.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("unable to parse URL: %v", err)
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("unable to encode request: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("unable to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to perform HTTP request: %w", err)
	}
	defer res.Body.Close()

	var status models.StatusResponse
	decErr := json.NewDecoder(io.LimitReader(res.Body, 64*1024)).Decode(&status)
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &RejectedError{StatusCode: res.StatusCode, Message: status.Message}
	}
	if decErr != nil {
		return nil, fmt.Errorf("unable to decode response: %w", decErr)
	}
	if !status.Ok() {
		return nil, &RejectedError{StatusCode: res.StatusCode, Message: status.Message}
	}
	logger.Tracef("%s: %s", path, status.Status)
	return &status, nil
}
