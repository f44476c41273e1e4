// Package sheet reads uploaded spreadsheets into raw tables and writes
// prediction results back out as workbooks.
package sheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"

	"fcc-optimizer/internal/features"

	"github.com/xuri/excelize/v2"
)

// Sheet names of the result workbook.
const (
	ResultSheet  = "预测结果"
	WarningSheet = "告警"
)

// ErrUnsupportedFormat is returned for files that are neither .xlsx nor .csv,
// including legacy BIFF .xls workbooks, which excelize cannot open.
var ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")

// ErrNoHeader means the first sheet has no rows at all.
var ErrNoHeader = errors.New("spreadsheet has no header row")

// Read parses r according to the extension of name. The first row of the
// first sheet is the header; every following row is one observation.
// Trailing blank rows are dropped.
func Read(r io.Reader, name string) (*features.RawTable, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return readWorkbook(r)
	case ".csv":
		return readCSV(r)
	}
	return nil, fmt.Errorf("%w: %q (use .xlsx or .csv)", ErrUnsupportedFormat, name)
}

func readWorkbook(r io.Reader) (*features.RawTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoHeader
	}

	// Raw values keep full precision instead of the cell's number format.
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return toRaw(rows)
}

func readCSV(r io.Reader) (*features.RawTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return toRaw(rows)
}

func toRaw(rows [][]string) (*features.RawTable, error) {
	for len(rows) > 0 && blank(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}
	if len(rows) == 0 {
		return nil, ErrNoHeader
	}
	return &features.RawTable{Header: rows[0], Rows: rows[1:]}, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// WriteWorkbook writes table to the result sheet and warnings, one per row,
// to the warning sheet.
func WriteWorkbook(w io.Writer, table *features.Table, warnings []string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ResultSheet); err != nil {
		return err
	}

	header := table.Schema.Names()
	if err := f.SetSheetRow(ResultSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, row := range table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			// Non-finite numbers are not valid cell values; leave the cell empty.
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				values[j] = v
			}
		}
		if err := f.SetSheetRow(ResultSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	if err := f.SetPanes(ResultSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	if _, err := f.NewSheet(WarningSheet); err != nil {
		return err
	}
	for i, msg := range warnings {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetCellStr(WarningSheet, cell, msg); err != nil {
			return err
		}
	}

	_, err := f.WriteTo(w)
	return err
}
