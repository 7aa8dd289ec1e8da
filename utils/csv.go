package utils

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// Canonical CSV column layouts. These are the synchronization contract
// with the downstream sonification engine, so the ordering here is the
// single source of truth: feature columns always appear in stack
// declaration order, statistic columns in mean/std/min/max order.
//
// The writers below use encoding/csv rather than a struct-tag mapper
// because feature columns are only known at run time.

// CombinedColumns is the header of combined_time_series.csv and its
// columnwise reordering.
func CombinedColumns(features []string, withStats bool, withDerivatives bool) []string {
	cols := []string{"point_index", "world_x", "world_y"}
	cols = append(cols, features...)
	if withStats {
		for _, f := range features {
			cols = append(cols, f+"_mean", f+"_std", f+"_min", f+"_max")
		}
		if withDerivatives {
			for _, f := range features {
				cols = append(cols, f+"_derivative")
			}
		}
	}
	return cols
}

// FullGridColumns is the header of combined_time_series_fullgrid.csv.
func FullGridColumns(features []string) []string {
	cols := []string{"pixel_x", "pixel_y", "world_x", "world_y"}
	return append(cols, features...)
}

// ColumnAggregateColumns is the header of
// combined_time_series_columnaggregated.csv.
func ColumnAggregateColumns(features []string) []string {
	cols := []string{"pixel_x", "world_x"}
	return append(cols, features...)
}

// CSVFile wraps an output CSV with guaranteed flush-and-close on every
// exit path. Callers defer Close and check its error for the flush.
type CSVFile struct {
	Path   string
	file   *os.File
	writer *csv.Writer
	closed bool
}

func CreateCSV(path string, header []string) (*CSVFile, error) {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return nil, fmt.Errorf("error creating output directory for %s: %v", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("error creating %s: %v", path, err)
	}

	c := &CSVFile{Path: path, file: f, writer: csv.NewWriter(f)}
	if len(header) > 0 {
		if err := c.Write(header); err != nil {
			f.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *CSVFile) Write(record []string) error {
	err := c.writer.Write(record)
	if err != nil {
		return fmt.Errorf("error writing %s: %v", c.Path, err)
	}
	return nil
}

func (c *CSVFile) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.writer.Flush()
	flushErr := c.writer.Error()
	closeErr := c.file.Close()
	if flushErr != nil {
		return fmt.Errorf("error flushing %s: %v", c.Path, flushErr)
	}
	return closeErr
}
