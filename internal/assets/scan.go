package assets

import (
	"encoding/csv"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"paperforge/internal/domain"
)

const (
	sampleRows = 5
	scanLimit  = 50
)

// Scanner discovers tabular data assets in a directory. Assets are read-only
// once discovered; later stages reference the descriptors, never the files.
type Scanner struct {
	logger *slog.Logger
}

// NewScanner builds a data-asset scanner.
func NewScanner(logger *slog.Logger) *Scanner {
	return &Scanner{logger: logger}
}

// Scan walks dir recursively and describes every supported data file, up to
// a fixed limit. A missing directory is not an error: it simply yields no
// assets.
func (s *Scanner) Scan(dir string) ([]Asset, error) {
	if dir == "" {
		return nil, nil
	}
	if _, err := os.Stat(dir); err != nil {
		s.logger.Warn("data directory unavailable", "dir", dir, "error", err)
		return nil, nil
	}

	var found []Asset
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || len(found) >= scanLimit {
			return nil
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".csv":
			found = append(found, s.describeCSV(path))
		case ".xlsx", ".xls":
			// Spreadsheets ride along undescribed; generated code reads them itself.
			found = append(found, Asset{
				Path:        path,
				FileName:    filepath.Base(path),
				FileType:    "excel",
				Description: "spreadsheet (columns not inspected)",
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk data dir: %w", err)
	}

	s.logger.Info("data assets discovered", "dir", dir, "count", len(found))
	return found, nil
}

// Asset aliases the domain descriptor to keep call sites short.
type Asset = domain.DataAsset

func (s *Scanner) describeCSV(path string) Asset {
	f, err := os.Open(path)
	if err != nil {
		return Asset{
			Path:        path,
			FileName:    filepath.Base(path),
			FileType:    "csv",
			Description: fmt.Sprintf("unreadable: %v", err),
		}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return Asset{
			Path:        path,
			FileName:    filepath.Base(path),
			FileType:    "csv",
			Description: fmt.Sprintf("unparsable: %v", err),
		}
	}

	var (
		sample []map[string]string
		rows   int
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.logger.Warn("csv row skipped", "file", path, "error", err)
			continue
		}
		rows++
		if len(sample) < sampleRows {
			row := make(map[string]string, len(header))
			for i, col := range header {
				if i < len(record) {
					row[col] = record[i]
				}
			}
			sample = append(sample, row)
		}
	}

	return Asset{
		Path:        path,
		FileName:    filepath.Base(path),
		FileType:    "csv",
		Columns:     header,
		RowCount:    rows,
		Sample:      sample,
		Description: fmt.Sprintf("CSV with %d columns and %d rows", len(header), rows),
	}
}
