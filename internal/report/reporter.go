// Package report writes the artefacts of a prediction run: the result
// workbook, a CSV copy, a JSON document and a plain-text summary.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"fcc-optimizer/internal/pipeline"
	"fcc-optimizer/internal/sheet"

	"github.com/rs/zerolog/log"
)

// File names written by Reporter.
const (
	WorkbookFile = "result.xlsx"
	CSVFile      = "result.csv"
	JSONFile     = "result.json"
	SummaryFile  = "summary.txt"
)

// Reporter generates run reports
type Reporter struct {
	result     *pipeline.Result
	outputPath string
}

// NewReporter creates a new reporter
func NewReporter(result *pipeline.Result, outputPath string) *Reporter {
	return &Reporter{
		result:     result,
		outputPath: outputPath,
	}
}

// GenerateReport generates all report formats
func (r *Reporter) GenerateReport() error {
	// Create output directory
	if err := os.MkdirAll(r.outputPath, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.generateWorkbook(); err != nil {
		return err
	}

	if err := r.generateCSV(); err != nil {
		return err
	}

	if err := r.generateJSON(); err != nil {
		return err
	}

	return r.generateSummary()
}

func (r *Reporter) generateWorkbook() error {
	path := filepath.Join(r.outputPath, WorkbookFile)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create workbook: %w", err)
	}
	defer file.Close()

	if err := sheet.WriteWorkbook(file, r.result.Output, r.result.Messages()); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	log.Info().Str("file", path).Msg("Result workbook generated")
	return nil
}

// generateCSV writes the output table with a leading row index column.
func (r *Reporter) generateCSV() error {
	path := filepath.Join(r.outputPath, CSVFile)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := append([]string{"行"}, r.result.Output.Schema.Names()...)
	if err := writer.Write(header); err != nil {
		return err
	}

	for i, row := range r.result.Output.Rows {
		record := make([]string, 0, len(row)+1)
		record = append(record, strconv.Itoa(i))
		for _, v := range row {
			record = append(record, strconv.FormatFloat(v, 'f', -1, 64))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}

	log.Info().Str("file", path).Msg("Result CSV generated")
	return nil
}

func (r *Reporter) generateJSON() error {
	path := filepath.Join(r.outputPath, JSONFile)

	data, err := NewDocument(r.result).Encode()
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write result json: %w", err)
	}

	log.Info().Str("file", path).Msg("Result JSON generated")
	return nil
}

// generateSummary generates a human-readable summary
func (r *Reporter) generateSummary() error {
	path := filepath.Join(r.outputPath, SummaryFile)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	res := r.result
	fmt.Fprintf(file, "FCC PREDICTION SUMMARY\n")
	fmt.Fprintf(file, "======================\n\n")

	fmt.Fprintf(file, "Run: %s\n", res.RunID)
	fmt.Fprintf(file, "Source: %s\n", res.Source)
	fmt.Fprintf(file, "Started: %s\n", res.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(file, "Duration: %s\n", res.Duration)
	fmt.Fprintf(file, "Rows: %d\n\n", res.Output.Len())

	if best, ok := bestRow(res.Valuations); ok {
		v := res.Valuations[best]
		fmt.Fprintf(file, "OPTIMUM\n")
		fmt.Fprintf(file, "-------\n")
		fmt.Fprintf(file, "Best row: %d\n", best)
		fmt.Fprintf(file, "Economic value: %.3f\n", v.EconomicValue)
		fmt.Fprintf(file, "CO2 rate: %.3f t/h\n", v.CO2Rate)
		fmt.Fprintf(file, "Optimum value: %.3f\n\n", v.OptimumValue)
	}

	fmt.Fprintf(file, "RANGE CHECK\n")
	fmt.Fprintf(file, "-----------\n")
	if len(res.Violations) == 0 {
		fmt.Fprintln(file, AllInRangeMessage)
	} else {
		for _, msg := range res.Messages() {
			fmt.Fprintln(file, msg)
		}
	}

	log.Info().Str("file", path).Msg("Summary report generated")
	return nil
}

// bestRow returns the row with the highest optimum value.
func bestRow(vals []pipeline.Valuation) (int, bool) {
	best := -1
	for i, v := range vals {
		if best < 0 || v.OptimumValue > vals[best].OptimumValue {
			best = i
		}
	}
	return best, best >= 0
}
