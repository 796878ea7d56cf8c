package opensearch

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redromiee/bag-tracker/pkg/models"
	"github.com/redromiee/bag-tracker/pkg/storage/model"
)

const testAddr = "http://opensearch.lan:9200"

// newMockedLedger registers the index creation mock before the client is
// built, so that the client picks up gock's transport.
func newMockedLedger(t *testing.T) *Ledger {
	t.Helper()
	t.Cleanup(gock.Off)

	gock.New(testAddr).
		Get("^/$").
		Persist().
		Reply(200).
		JSON(map[string]any{"version": map[string]any{"number": "2.11.0", "distribution": "opensearch"}})
	gock.New(testAddr).
		Put("^/scans$").
		Reply(400).
		JSON(map[string]any{"error": map[string]any{"type": "resource_already_exists_exception"}})

	l, err := New(context.Background(), Config{Addr: testAddr})
	require.NoError(t, err)
	return l
}

func TestNewRequiresAddr(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}

func TestAppend(t *testing.T) {
	l := newMockedLedger(t)

	gock.New(testAddr).
		Put("/scans/_create/scan-1").
		BodyString(`"binId":"B1"`).
		Reply(201).
		JSON(map[string]any{"result": "created"})

	err := l.Append(context.Background(), models.LedgerEntry{
		Id:        "entry-1",
		ScanId:    "scan-1",
		Timestamp: time.Now(),
		ScanType:  models.Forward,
		BinId:     "B1",
		BagId:     "G1",
		Username:  "alice",
	})
	require.NoError(t, err)
}

func TestAppendFallsBackToEntryId(t *testing.T) {
	l := newMockedLedger(t)

	gock.New(testAddr).
		Put("/scans/_create/entry-1").
		Reply(201).
		JSON(map[string]any{"result": "created"})

	err := l.Append(context.Background(), models.LedgerEntry{Id: "entry-1", ScanType: models.Forward})
	require.NoError(t, err)
}

func TestAppendDuplicate(t *testing.T) {
	l := newMockedLedger(t)

	gock.New(testAddr).
		Put("/scans/_create/scan-1").
		Reply(409).
		JSON(map[string]any{"error": map[string]any{"type": "version_conflict_engine_exception"}})

	err := l.Append(context.Background(), models.LedgerEntry{Id: "entry-2", ScanId: "scan-1"})
	assert.ErrorIs(t, err, model.ErrDuplicate)
}

func TestAppendError(t *testing.T) {
	l := newMockedLedger(t)

	gock.New(testAddr).
		Put("/scans/_create/scan-1").
		Reply(403).
		JSON(map[string]any{"error": map[string]any{"reason": "no permissions"}})

	err := l.Append(context.Background(), models.LedgerEntry{Id: "entry-1", ScanId: "scan-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no permissions")
}

func TestDelete(t *testing.T) {
	l := newMockedLedger(t)

	gock.New(testAddr).
		Post("/scans/_delete_by_query").
		BodyString(`"bagId":"G1"`).
		Reply(200).
		JSON(map[string]any{"deleted": 2, "total": 2})

	n, err := l.Delete(context.Background(), models.ScanKey{BinId: "B1", BagId: "G1", ScanType: models.Forward})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestList(t *testing.T) {
	l := newMockedLedger(t)

	gock.New(testAddr).
		Post("/scans/_search").
		BodyString(`"branch":"north"`).
		Reply(200).
		JSON(map[string]any{
			"hits": map[string]any{
				"hits": []any{
					map[string]any{"_id": "scan-1", "_source": map[string]any{
						"id": "entry-1", "scanId": "scan-1", "timestamp": "2024-03-04T09:30:00Z",
						"scanType": "FWD", "binId": "B1", "bagId": "G1", "username": "alice",
						"branch": "north", "status": "Scanned",
					}},
					map[string]any{"_id": "entry-2", "_source": map[string]any{
						"timestamp": "2024-03-04T09:31:00Z", "scanType": "RTO",
						"binId": "B12", "bagId": "G2", "username": "bob", "branch": "north",
					}},
				},
			},
		})

	from := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	got, err := l.List(context.Background(), models.LedgerFilter{From: from, To: from.AddDate(0, 0, 1), Branch: "north"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "entry-1", got[0].Id)
	assert.Equal(t, models.Forward, got[0].ScanType)
	assert.True(t, got[0].Timestamp.Equal(time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)))
	assert.Equal(t, "entry-2", got[1].Id)
	assert.Equal(t, models.ReturnToOrigin, got[1].ScanType)
}

func TestListPages(t *testing.T) {
	l := newMockedLedger(t)
	l.pageSize = 2

	hit := func(id, ts string, sortMillis int64) map[string]any {
		return map[string]any{
			"_id": id,
			"_source": map[string]any{
				"id": id, "timestamp": ts, "scanType": "FWD", "binId": "B1", "bagId": id,
			},
			"sort": []any{sortMillis, id},
		}
	}

	gock.New(testAddr).
		Post("/scans/_search").
		BodyString(`"size":2`).
		Reply(200).
		JSON(map[string]any{"hits": map[string]any{"hits": []any{
			hit("e1", "2024-03-04T09:30:00Z", 1709544600000),
			hit("e2", "2024-03-04T09:31:00Z", 1709544660000),
		}}})
	gock.New(testAddr).
		Post("/scans/_search").
		BodyString(`"search_after":\[1709544660000,"e2"\]`).
		Reply(200).
		JSON(map[string]any{"hits": map[string]any{"hits": []any{
			hit("e3", "2024-03-04T09:32:00Z", 1709544720000),
		}}})

	got, err := l.List(context.Background(), models.LedgerFilter{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "e1", got[0].Id)
	assert.Equal(t, "e2", got[1].Id)
	assert.Equal(t, "e3", got[2].Id)
}

func TestListPageWithoutSortValues(t *testing.T) {
	l := newMockedLedger(t)
	l.pageSize = 1

	gock.New(testAddr).
		Post("/scans/_search").
		Reply(200).
		JSON(map[string]any{"hits": map[string]any{"hits": []any{
			map[string]any{"_id": "e1", "_source": map[string]any{"timestamp": "2024-03-04T09:30:00Z"}},
		}}})

	_, err := l.List(context.Background(), models.LedgerFilter{})
	assert.Error(t, err)
}

func TestFilterQuery(t *testing.T) {
	q := filterQuery(models.LedgerFilter{})
	assert.Equal(t, map[string]any{"match_all": map[string]any{}}, q["query"])

	from := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	q = filterQuery(models.LedgerFilter{From: from, To: from.AddDate(0, 0, 1)})
	filters := q["query"].(map[string]any)["bool"].(map[string]any)["filter"].([]any)
	require.Len(t, filters, 1)
	rng := filters[0].(map[string]any)["range"].(map[string]any)["timestamp"].(map[string]any)
	assert.Equal(t, "2024-03-04T00:00:00Z", rng["gte"])
	assert.Equal(t, "2024-03-05T00:00:00Z", rng["lt"])
}

func TestLedger_E2E(t *testing.T) {
	if os.Getenv("E2E_TEST") != "true" {
		t.Skip("skipping test; E2E_TEST is not set")
	}
	ctx := context.Background()
	l, err := New(ctx, Config{
		Addr:               os.Getenv("OPENSEARCH_ADDR"),
		Username:           os.Getenv("OPENSEARCH_USERNAME"),
		Password:           os.Getenv("OPENSEARCH_PASSWORD"),
		Index:              "bag-tracker-test",
		InsecureSkipVerify: true,
	})
	require.NoError(t, err)

	key := models.ScanKey{BinId: "E2E", BagId: time.Now().Format("150405.000"), ScanType: models.Forward}
	require.NoError(t, l.Append(ctx, models.LedgerEntry{
		Id: key.BagId, Timestamp: time.Now(), ReceivedAt: time.Now(),
		ScanType: key.ScanType, BinId: key.BinId, BagId: key.BagId, Username: "e2e",
	}))
	n, err := l.Delete(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
