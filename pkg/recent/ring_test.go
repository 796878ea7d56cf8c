package recent_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redromiee/bag-tracker/pkg/models"
	"github.com/redromiee/bag-tracker/pkg/recent"
)

type fakeDeleter struct {
	err   error
	calls []models.ScanKey
}

func (f *fakeDeleter) Delete(_ context.Context, key models.ScanKey) error {
	f.calls = append(f.calls, key)
	return f.err
}

var yes = recent.ConfirmFunc(func(models.RecentScanEntry) bool { return true })
var no = recent.ConfirmFunc(func(models.RecentScanEntry) bool { return false })

func entry(bag string) models.RecentScanEntry {
	return models.RecentScanEntry{BinId: "B12", BagId: bag, ScanType: models.Forward}
}

func TestRing_Bound(t *testing.T) {
	r := recent.New(nil)
	for i := 1; i <= 6; i++ {
		r.Push(entry(fmt.Sprintf("X%d", i)))
	}

	all := r.All()
	require.Len(t, all, recent.DefaultCapacity)
	assert.Equal(t, "X6", all[0].BagId)
	assert.Equal(t, "X2", all[4].BagId)
	for _, e := range all {
		assert.NotEqual(t, "X1", e.BagId)
	}
}

func TestRing_EntriesFiltersByType(t *testing.T) {
	r := recent.New(nil)
	r.Push(entry("X1"))
	r.Push(models.RecentScanEntry{BinId: "R100", BagId: "Y1", ScanType: models.ReturnToOrigin})
	r.Push(entry("X2"))

	fwd := r.Entries(models.Forward)
	require.Len(t, fwd, 2)
	assert.Equal(t, "X2", fwd[0].BagId)
	assert.Equal(t, "X1", fwd[1].BagId)

	rto := r.Entries(models.ReturnToOrigin)
	require.Len(t, rto, 1)
	assert.Equal(t, "Y1", rto[0].BagId)
}

func TestRing_DeleteConfirmed(t *testing.T) {
	d := &fakeDeleter{}
	r := recent.New(d)
	r.Push(entry("X1"))
	r.Push(entry("X2"))

	err := r.Delete(context.Background(), entry("X1"), yes)
	require.NoError(t, err)
	assert.Equal(t, []models.ScanKey{entry("X1").Key()}, d.calls)
	assert.Equal(t, []models.RecentScanEntry{entry("X2")}, r.All())
}

func TestRing_DeleteFailureKeepsEntry(t *testing.T) {
	d := &fakeDeleter{err: errors.New("ledger unreachable")}
	r := recent.New(d)
	r.Push(entry("X1"))

	err := r.Delete(context.Background(), entry("X1"), yes)
	var delErr *recent.DeleteError
	require.ErrorAs(t, err, &delErr)
	assert.Equal(t, entry("X1"), delErr.Entry)
	assert.Len(t, d.calls, 1)
	assert.Equal(t, []models.RecentScanEntry{entry("X1")}, r.All())
}

func TestRing_DeleteCancelled(t *testing.T) {
	d := &fakeDeleter{}
	r := recent.New(d)
	r.Push(entry("X1"))

	err := r.Delete(context.Background(), entry("X1"), no)
	assert.ErrorIs(t, err, recent.ErrCancelled)
	assert.Empty(t, d.calls)
	assert.Equal(t, 1, r.Len())
}

func TestRing_DeleteUnknown(t *testing.T) {
	d := &fakeDeleter{}
	r := recent.New(d)
	r.Push(entry("X1"))

	err := r.Delete(context.Background(), entry("X9"), yes)
	assert.ErrorIs(t, err, recent.ErrNotFound)
	assert.Empty(t, d.calls)
}

func TestRing_DeleteRemovesRepeatedScans(t *testing.T) {
	d := &fakeDeleter{}
	r := recent.New(d)
	r.Push(entry("X1"))
	r.Push(entry("X2"))
	r.Push(entry("X1"))

	require.NoError(t, r.Delete(context.Background(), entry("X1"), yes))
	assert.Len(t, d.calls, 1)
	assert.Equal(t, []models.RecentScanEntry{entry("X2")}, r.All())

	assert.ErrorIs(t, r.Delete(context.Background(), entry("X1"), yes), recent.ErrNotFound)
}
