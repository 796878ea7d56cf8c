package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDay(t *testing.T) {
	now := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)
	want := map[string]time.Time{
		"2024-03-01": time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		"today":      time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		" Yesterday": time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC),
	}
	for in, expected := range want {
		got, err := parseDay(in, now)
		require.NoError(t, err, in)
		assert.True(t, expected.Equal(got), "%s: got %s", in, got)
	}
}

func TestParseDayRejects(t *testing.T) {
	_, err := parseDay("whenever", time.Now())
	assert.Error(t, err)
}

func TestOutputPath(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, "scans_2024-03-01_2024-03-02.xlsx", outputPath("", "scans_2024-03-01_2024-03-02.xlsx"))
	assert.Equal(t, "escape.xlsx", outputPath("", "../../escape.xlsx"))
	assert.Equal(t, dir+"/scans.xlsx", outputPath(dir, "scans.xlsx"))
	assert.Equal(t, "/tmp/custom.xlsx", outputPath("/tmp/custom.xlsx", "scans.xlsx"))
}
