// Package genlog keeps an append-only CSV ledger of every generation
// attempt, successes and failures alike. Records are partitioned into one
// file per calendar month to bound file size; queries scan whichever
// partitions could hold matching records and merge the results, so callers
// never see the partitioning scheme.
package genlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	filePrefix = "generation_log_"
	fileSuffix = ".csv"
	timeLayout = "2006-01-02 15:04:05"
)

var header = []string{"datetime", "filename", "status", "cost_usd", "provider", "quality", "aspect_ratio"}

// StatusSuccess marks a completed generation. Failures carry the error
// description instead.
const StatusSuccess = "success"

// Record is one generation attempt.
type Record struct {
	Datetime    time.Time `json:"datetime"`
	Filename    string    `json:"filename"`
	Status      string    `json:"status"`
	CostUSD     float64   `json:"cost_usd"`
	Provider    string    `json:"provider"`
	Quality     string    `json:"quality"` // quality tier or explicit model key
	AspectRatio string    `json:"aspect_ratio"`
}

// Query filters log records. Zero times mean unbounded; an empty filename
// matches everything.
type Query struct {
	Filename string
	Start    time.Time
	End      time.Time
}

// QueryResult is the merged set of matching records with their summed cost.
type QueryResult struct {
	Records   []Record
	TotalCost float64
}

// Log appends to and queries the partitioned ledger in one directory.
type Log struct {
	dir string
}

func New(dir string) *Log {
	return &Log{dir: dir}
}

// Append writes one record to the partition for the record's month, creating
// the partition with a header row when needed. Append is the only mutation;
// historical records are never updated or deleted.
func (l *Log) Append(r Record) error {
	if r.Datetime.IsZero() {
		r.Datetime = time.Now()
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("create log dir %s: %w", l.dir, err)
	}

	path := l.partitionPath(r.Datetime)
	writeHeader := false
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		writeHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log partition %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write log header: %w", err)
		}
	}
	row := []string{
		r.Datetime.Format(timeLayout),
		r.Filename,
		r.Status,
		fmt.Sprintf("%.6f", r.CostUSD),
		r.Provider,
		r.Quality,
		r.AspectRatio,
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write log record: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush log partition %s: %w", path, err)
	}
	return nil
}

// Query scans every partition that could overlap the requested range (all of
// them for filename-only queries) and merges the matches in time order.
func (l *Log) Query(q Query) (QueryResult, error) {
	partitions, err := l.partitions(q)
	if err != nil {
		return QueryResult{}, err
	}

	wantName := stripExt(q.Filename)

	var result QueryResult
	for _, path := range partitions {
		records, err := readPartition(path)
		if err != nil {
			return QueryResult{}, err
		}
		for _, r := range records {
			if wantName != "" && stripExt(r.Filename) != wantName {
				continue
			}
			if !q.Start.IsZero() && r.Datetime.Before(q.Start) {
				continue
			}
			if !q.End.IsZero() && r.Datetime.After(q.End) {
				continue
			}
			result.Records = append(result.Records, r)
			result.TotalCost += r.CostUSD
		}
	}

	sort.SliceStable(result.Records, func(i, j int) bool {
		return result.Records[i].Datetime.Before(result.Records[j].Datetime)
	})
	result.TotalCost = math.Round(result.TotalCost*1e6) / 1e6
	return result, nil
}

// partitions lists partition files relevant to the query, sorted by period.
func (l *Log) partitions(q Query) ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read log dir %s: %w", l.dir, err)
	}

	var paths []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		period, err := time.Parse("2006-01", strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix))
		if err != nil {
			continue
		}
		if !q.Start.IsZero() && monthEnd(period).Before(q.Start) {
			continue
		}
		if !q.End.IsZero() && period.After(q.End) {
			continue
		}
		paths = append(paths, filepath.Join(l.dir, name))
	}
	sort.Strings(paths)
	return paths, nil
}

func (l *Log) partitionPath(t time.Time) string {
	return filepath.Join(l.dir, filePrefix+t.Format("2006-01")+fileSuffix)
}

func readPartition(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log partition %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse log partition %s: %w", path, err)
	}

	var records []Record
	for i, row := range rows {
		if i == 0 || len(row) < len(header) {
			continue
		}
		dt, err := time.Parse(timeLayout, row[0])
		if err != nil {
			continue
		}
		cost, _ := strconv.ParseFloat(row[3], 64)
		records = append(records, Record{
			Datetime:    dt,
			Filename:    row[1],
			Status:      row[2],
			CostUSD:     cost,
			Provider:    row[4],
			Quality:     row[5],
			AspectRatio: row[6],
		})
	}
	return records, nil
}

func monthEnd(period time.Time) time.Time {
	return period.AddDate(0, 1, 0).Add(-time.Second)
}

func stripExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
