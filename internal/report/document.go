package report

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"fcc-optimizer/internal/pipeline"
)

// AllInRangeMessage is shown when a run has no range violations.
const AllInRangeMessage = "所有预测值均在范围内。"

// Cell is an output value. Non-finite values encode as JSON null.
type Cell float64

func (c Cell) MarshalJSON() ([]byte, error) {
	f := float64(c)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

// Document is the JSON form of a run, shared by result.json and the HTTP API.
type Document struct {
	RunID      string               `json:"run_id"`
	Source     string               `json:"source"`
	StartedAt  time.Time            `json:"started_at"`
	DurationMS float64              `json:"duration_ms"`
	Columns    []string             `json:"columns"`
	Rows       [][]Cell             `json:"rows"`
	Violations []pipeline.Violation `json:"violations"`
	Messages   []string             `json:"messages"`
}

// NewDocument flattens res into a Document.
func NewDocument(res *pipeline.Result) Document {
	doc := Document{
		RunID:      res.RunID,
		Source:     res.Source,
		StartedAt:  res.StartedAt,
		DurationMS: float64(res.Duration) / float64(time.Millisecond),
		Columns:    res.Output.Schema.Names(),
		Rows:       make([][]Cell, res.Output.Len()),
		Violations: res.Violations,
		Messages:   res.Messages(),
	}
	if doc.Violations == nil {
		doc.Violations = []pipeline.Violation{}
	}
	for i, row := range res.Output.Rows {
		cells := make([]Cell, len(row))
		for j, v := range row {
			cells[j] = Cell(v)
		}
		doc.Rows[i] = cells
	}
	return doc
}

// Encode writes doc as indented JSON.
func (d Document) Encode() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}
