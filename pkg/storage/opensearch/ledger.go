package opensearch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go"
	"github.com/opensearch-project/opensearch-go/opensearchapi"
	"github.com/sirupsen/logrus"

	"github.com/redromiee/bag-tracker/pkg/models"
	"github.com/redromiee/bag-tracker/pkg/storage/model"
)

var log = logrus.StandardLogger().WithField("package", "storage/opensearch")

var _ model.Ledger = (*Ledger)(nil)

const (
	DefaultIndex = "scans"
	// defaultPageSize is the number of hits fetched per search request.
	defaultPageSize = 1000
)

const indexMapping = `{
  "mappings": {
    "properties": {
      "id":         {"type": "keyword"},
      "scanId":     {"type": "keyword"},
      "timestamp":  {"type": "date"},
      "receivedAt": {"type": "date"},
      "scanType":   {"type": "keyword"},
      "binId":      {"type": "keyword"},
      "bagId":      {"type": "keyword"},
      "username":   {"type": "keyword"},
      "branch":     {"type": "keyword"},
      "status":     {"type": "keyword"}
    }
  }
}`

type Config struct {
	Addr               string
	Username           string
	Password           string
	Index              string
	InsecureSkipVerify bool
}

// Ledger stores every entry as a document of a single index. Documents are
// keyed by ScanId when present, so a retried delivery cannot be indexed twice.
type Ledger struct {
	client   *opensearch.Client
	index    string
	pageSize int
}

func New(ctx context.Context, config Config) (*Ledger, error) {
	if config.Addr == "" {
		return nil, fmt.Errorf("opensearch address is required")
	}
	if config.Index == "" {
		config.Index = DefaultIndex
	}

	var transport http.RoundTripper
	if config.InsecureSkipVerify {
		transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
	} else {
		transport = http.DefaultTransport
	}

	c, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{config.Addr},
		Username:  config.Username,
		Password:  config.Password,
		Transport: transport,
	})
	if err != nil {
		return nil, err
	}

	l := &Ledger{client: c, index: config.Index, pageSize: defaultPageSize}
	if err := l.createIndex(ctx); err != nil {
		return nil, fmt.Errorf("unable to create opensearch index: %w", err)
	}
	return l, nil
}

func (l *Ledger) createIndex(ctx context.Context) error {
	req := opensearchapi.IndicesCreateRequest{
		Index: l.index,
		Body:  strings.NewReader(indexMapping),
	}
	res, err := req.Do(ctx, l.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusBadRequest {
		// Index already exists
		return nil
	}
	if res.IsError() {
		return fmt.Errorf("unexpected status %s: %s", res.Status(), decodeError(res.Body))
	}
	return nil
}

func (l *Ledger) Append(ctx context.Context, e models.LedgerEntry) error {
	if e.Status == "" {
		e.Status = models.StatusScanned
	}
	e.Timestamp = e.Timestamp.UTC()
	e.ReceivedAt = e.ReceivedAt.UTC()

	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("unable to encode JSON: %w", err)
	}
	docId := e.ScanId
	if docId == "" {
		docId = e.Id
	}

	req := opensearchapi.CreateRequest{
		Index:      l.index,
		DocumentID: docId,
		Body:       bytes.NewReader(body),
		Refresh:    "wait_for",
	}
	res, err := req.Do(ctx, l.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusConflict {
		return model.ErrDuplicate
	}
	if res.IsError() {
		return fmt.Errorf("opensearch returned an invalid status %s: %s", res.Status(), decodeError(res.Body))
	}
	log.Debugf("indexed %s", docId)
	return nil
}

func keyQuery(key models.ScanKey) map[string]any {
	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []any{
					map[string]any{"term": map[string]any{"binId": key.BinId}},
					map[string]any{"term": map[string]any{"bagId": key.BagId}},
					map[string]any{"term": map[string]any{"scanType": string(key.ScanType)}},
				},
			},
		},
	}
}

func (l *Ledger) Delete(ctx context.Context, key models.ScanKey) (int, error) {
	body, err := json.Marshal(keyQuery(key))
	if err != nil {
		return 0, err
	}
	refresh := true
	req := opensearchapi.DeleteByQueryRequest{
		Index:   []string{l.index},
		Body:    bytes.NewReader(body),
		Refresh: &refresh,
	}
	res, err := req.Do(ctx, l.client)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, fmt.Errorf("opensearch returned an invalid status %s: %s", res.Status(), decodeError(res.Body))
	}

	var result struct {
		Deleted int `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("decode delete response: %w", err)
	}
	return result.Deleted, nil
}

func filterQuery(f models.LedgerFilter) map[string]any {
	var filters []any
	rng := map[string]any{}
	if !f.From.IsZero() {
		rng["gte"] = f.From.UTC().Format(time.RFC3339Nano)
	}
	if !f.To.IsZero() {
		rng["lt"] = f.To.UTC().Format(time.RFC3339Nano)
	}
	if len(rng) > 0 {
		filters = append(filters, map[string]any{"range": map[string]any{"timestamp": rng}})
	}
	if f.Branch != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"branch": f.Branch}})
	}

	query := map[string]any{"match_all": map[string]any{}}
	if len(filters) > 0 {
		query = map[string]any{"bool": map[string]any{"filter": filters}}
	}
	return map[string]any{
		"query": query,
		"sort": []any{
			map[string]any{"timestamp": map[string]any{"order": "asc"}},
			map[string]any{"id": map[string]any{"order": "asc", "missing": "_last"}},
		},
	}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Id     string             `json:"_id"`
			Source models.LedgerEntry `json:"_source"`
			Sort   []json.RawMessage  `json:"sort"`
		} `json:"hits"`
	} `json:"hits"`
}

// List pages through every matching entry with search_after, so that a
// busy week is never cut off at the result window.
func (l *Ledger) List(ctx context.Context, f models.LedgerFilter) ([]models.LedgerEntry, error) {
	query := filterQuery(f)
	query["size"] = l.pageSize

	var entries []models.LedgerEntry
	for page := 0; ; page++ {
		sr, err := l.search(ctx, query)
		if err != nil {
			return nil, err
		}
		for _, h := range sr.Hits.Hits {
			e := h.Source
			if e.Id == "" {
				e.Id = h.Id
			}
			entries = append(entries, e)
		}

		hits := sr.Hits.Hits
		if len(hits) < l.pageSize {
			break
		}
		last := hits[len(hits)-1].Sort
		if len(last) == 0 {
			return nil, fmt.Errorf("search page %d has no sort values to continue from", page)
		}
		query["search_after"] = last
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	return entries, nil
}

func (l *Ledger) search(ctx context.Context, query map[string]any) (*searchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	req := opensearchapi.SearchRequest{
		Index: []string{l.index},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, l.client)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("opensearch returned an invalid status %s: %s", res.Status(), decodeError(res.Body))
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &sr, nil
}

func decodeError(body io.Reader) string {
	var errorMessage struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&errorMessage); err != nil {
		return ""
	}
	var s string
	if json.Unmarshal(errorMessage.Error, &s) == nil {
		return s
	}
	var obj struct {
		Reason string `json:"reason"`
	}
	if json.Unmarshal(errorMessage.Error, &obj) == nil {
		return obj.Reason
	}
	return string(errorMessage.Error)
}
