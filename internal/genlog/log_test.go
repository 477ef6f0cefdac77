package genlog_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PeeperFrog/peeperfrog-create/internal/genlog"
)

func mustAppend(t *testing.T, l *genlog.Log, r genlog.Record) {
	t.Helper()
	require.NoError(t, l.Append(r))
}

func TestAppend_PartitionsByMonth(t *testing.T) {
	dir := t.TempDir()
	l := genlog.New(dir)

	mustAppend(t, l, genlog.Record{
		Datetime: time.Date(2026, 1, 15, 10, 0, 0, 0, time.Local),
		Filename: "jan.png", Status: genlog.StatusSuccess, CostUSD: 0.01,
		Provider: "gemini", Quality: "gemini-pro", AspectRatio: "1:1",
	})
	mustAppend(t, l, genlog.Record{
		Datetime: time.Date(2026, 2, 2, 9, 0, 0, 0, time.Local),
		Filename: "feb.png", Status: genlog.StatusSuccess, CostUSD: 0.02,
		Provider: "openai", Quality: "openai-fast", AspectRatio: "16:9",
	})

	_, err := os.Stat(filepath.Join(dir, "generation_log_2026-01.csv"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "generation_log_2026-02.csv"))
	assert.NoError(t, err)
}

func TestQuery_MergesAcrossPartitions(t *testing.T) {
	l := genlog.New(t.TempDir())

	mustAppend(t, l, genlog.Record{
		Datetime: time.Date(2026, 1, 15, 10, 0, 0, 0, time.Local),
		Filename: "jan.png", Status: genlog.StatusSuccess, CostUSD: 0.01,
	})
	mustAppend(t, l, genlog.Record{
		Datetime: time.Date(2026, 2, 2, 9, 0, 0, 0, time.Local),
		Filename: "feb.png", Status: genlog.StatusSuccess, CostUSD: 0.02,
	})
	mustAppend(t, l, genlog.Record{
		Datetime: time.Date(2026, 3, 20, 18, 0, 0, 0, time.Local),
		Filename: "mar.png", Status: genlog.StatusSuccess, CostUSD: 0.04,
	})

	result, err := l.Query(genlog.Query{
		Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.Local),
		End:   time.Date(2026, 2, 28, 23, 59, 59, 0, time.Local),
	})
	require.NoError(t, err)
	require.Len(t, result.Records, 2)
	assert.Equal(t, "jan.png", result.Records[0].Filename)
	assert.Equal(t, "feb.png", result.Records[1].Filename)
	assert.InDelta(t, 0.03, result.TotalCost, 1e-9)

	all, err := l.Query(genlog.Query{})
	require.NoError(t, err)
	assert.Len(t, all.Records, 3)
	assert.InDelta(t, 0.07, all.TotalCost, 1e-9)
}

func TestQuery_FilenameIgnoresExtension(t *testing.T) {
	l := genlog.New(t.TempDir())

	mustAppend(t, l, genlog.Record{Filename: "fox.png", Status: genlog.StatusSuccess, CostUSD: 0.01})
	mustAppend(t, l, genlog.Record{Filename: "owl.png", Status: genlog.StatusSuccess, CostUSD: 0.02})

	result, err := l.Query(genlog.Query{Filename: "fox"})
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "fox.png", result.Records[0].Filename)
	assert.InDelta(t, 0.01, result.TotalCost, 1e-9)
}

func TestQuery_IncludesFailures(t *testing.T) {
	l := genlog.New(t.TempDir())

	mustAppend(t, l, genlog.Record{Filename: "ok.png", Status: genlog.StatusSuccess, CostUSD: 0.05})
	mustAppend(t, l, genlog.Record{Filename: "bad.png", Status: "error: upstream timeout", CostUSD: 0})

	result, err := l.Query(genlog.Query{})
	require.NoError(t, err)
	require.Len(t, result.Records, 2)
	// Failures are in the history but never in the bill.
	assert.InDelta(t, 0.05, result.TotalCost, 1e-9)
}

func TestQuery_EmptyDirectory(t *testing.T) {
	l := genlog.New(filepath.Join(t.TempDir(), "never-written"))

	result, err := l.Query(genlog.Query{})
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	assert.Zero(t, result.TotalCost)
}

func TestAppend_CostPrecision(t *testing.T) {
	dir := t.TempDir()
	l := genlog.New(dir)

	mustAppend(t, l, genlog.Record{
		Datetime: time.Date(2026, 5, 1, 12, 0, 0, 0, time.Local),
		Filename: "tiny.png", Status: genlog.StatusSuccess, CostUSD: 0.0028311552,
	})

	result, err := l.Query(genlog.Query{Filename: "tiny"})
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.InDelta(t, 0.002831, result.Records[0].CostUSD, 1e-9)
}
