package dataprocessing

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"pollcli/internal/config"
	apperrors "pollcli/internal/errors"
	"pollcli/internal/infrastructure"
	"pollcli/pkg/contracts/domain"
)

const utf8BOM = "\ufeff"

// Reader loads raw records from a file produced by the crawler
type Reader struct {
	format string
	sheet  string
	logger *slog.Logger
}

// NewReader creates a reader. An empty configured format is detected from
// the file extension.
func NewReader(cfg config.InputConfig, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		format: cfg.Format,
		sheet:  cfg.Sheet,
		logger: infrastructure.WithComponent(logger, "reader"),
	}
}

// DetectFormat maps a file extension to an input format
func DetectFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return config.FormatCSV, nil
	case ".json":
		return config.FormatJSON, nil
	case ".jsonl", ".ndjson":
		return config.FormatJSONL, nil
	case ".xlsx":
		return config.FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported input extension %q", filepath.Ext(path))
	}
}

// ReadFile reads every record in path
func (r *Reader) ReadFile(ctx context.Context, path string) ([]domain.RawRecord, error) {
	format := r.format
	if format == "" {
		detected, err := DetectFormat(path)
		if err != nil {
			return nil, apperrors.NewInputError("cannot determine input format", err).WithContext("path", path)
		}
		format = detected
	}

	var records []domain.RawRecord
	var err error
	switch format {
	case config.FormatXLSX:
		records, err = ReadXLSX(path, r.sheet)
	case config.FormatCSV, config.FormatJSON, config.FormatJSONL:
		records, err = r.readStream(path, format)
	default:
		err = fmt.Errorf("unsupported input format %q", format)
	}
	if err != nil {
		return nil, apperrors.NewInputError("failed to read records", err).WithContext("path", path)
	}

	r.logger.InfoContext(ctx, "Loaded raw records",
		slog.String("path", path),
		slog.String("format", format),
		slog.Int("records", len(records)))
	return records, nil
}

func (r *Reader) readStream(path, format string) ([]domain.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if format == config.FormatCSV {
		return ReadCSV(f)
	}
	return ReadJSON(f)
}

// ReadCSV reads a CSV stream whose first row is the header
func ReadCSV(in io.Reader) ([]domain.RawRecord, error) {
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	return rowsToRecords(rows)
}

// ReadXLSX reads the named sheet, or the first sheet when sheet is empty
func ReadXLSX(path, sheet string) ([]domain.RawRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return rowsToRecords(rows)
}

// rowsToRecords maps data rows onto the header row. Short rows are padded
// with empty values; blank header cells and blank rows are skipped.
func rowsToRecords(rows [][]string) ([]domain.RawRecord, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	header := make([]string, len(rows[0]))
	seen := make(map[string]bool, len(header))
	for i, h := range rows[0] {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		h = strings.TrimSpace(h)
		if h != "" && seen[h] {
			return nil, fmt.Errorf("duplicate column %q", h)
		}
		seen[h] = true
		header[i] = h
	}

	records := make([]domain.RawRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		rec := make(domain.RawRecord, len(header))
		for i, name := range header {
			if name == "" {
				continue
			}
			if i < len(row) {
				rec[name] = row[i]
			} else {
				rec[name] = ""
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// ReadJSON reads either a JSON array of objects or a stream of objects,
// one per line. Values may be strings, numbers, booleans or null.
func ReadJSON(in io.Reader) ([]domain.RawRecord, error) {
	br := bufio.NewReader(in)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(br)
	dec.UseNumber()

	var objects []map[string]interface{}
	if first == '[' {
		if err := dec.Decode(&objects); err != nil {
			return nil, fmt.Errorf("failed to parse JSON array: %w", err)
		}
	} else {
		for {
			var obj map[string]interface{}
			err := dec.Decode(&obj)
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("failed to parse JSON record %d: %w", len(objects)+1, err)
			}
			objects = append(objects, obj)
		}
	}

	records := make([]domain.RawRecord, 0, len(objects))
	for i, obj := range objects {
		rec := make(domain.RawRecord, len(obj))
		for key, value := range obj {
			s, err := scalarString(value)
			if err != nil {
				return nil, fmt.Errorf("record %d field %q: %w", i+1, key, err)
			}
			rec[key] = s
		}
		records = append(records, rec)
	}
	return records, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		if err := br.UnreadByte(); err != nil {
			return 0, err
		}
		return b, nil
	}
}

func scalarString(v interface{}) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case json.Number:
		return val.String(), nil
	case bool:
		if val {
			return "true", nil
		}
		return "false", nil
	default:
		return "", fmt.Errorf("unsupported value of type %T", v)
	}
}
