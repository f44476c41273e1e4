package pipeline

import (
	"fmt"

	"fcc-optimizer/internal/features"
)

// Product prices per tonne, relative units.
const (
	GasolinePrice  = 1.2
	LPGPrice       = 1.0
	PropylenePrice = 1.5
)

// CO2Epsilon is added to the CO2 rate before dividing so a zero or
// vanishing emission rate does not divide by zero.
const CO2Epsilon = 1e-8

// Names of the derived output columns.
const (
	ColumnEconomicValue    = "计算价值"
	ColumnCO2Rate          = "CO2排放t/h"
	ColumnOptimumValue     = "最优值"
	ColumnGasolineProduct  = "汽油产量t/h"
	ColumnLPGProduct       = "液化气产量t/h"
	ColumnPropyleneProduct = "丙烯产量t/h"
)

// Valuation holds the derived economic metrics of one row.
type Valuation struct {
	GasolineProduct  float64 `json:"gasoline_product"`
	LPGProduct       float64 `json:"lpg_product"`
	PropyleneProduct float64 `json:"propylene_product"`
	EconomicValue    float64 `json:"economic_value"`
	CO2Rate          float64 `json:"co2_rate"`
	OptimumValue     float64 `json:"optimum_value"`
}

// Valuate computes one Valuation per row of the blended matrix m, using the
// feed mass flow of the same row of the feature table.
func Valuate(m *features.Table, feedMassFlow []float64) ([]Valuation, error) {
	if m.Len() != len(feedMassFlow) {
		return nil, fmt.Errorf("%w: %d prediction rows, %d feed rows", ErrShapeMismatch, m.Len(), len(feedMassFlow))
	}

	gas := m.Schema.Index(features.GasolineYield)
	lpg := m.Schema.Index(features.LPGYield)
	prop := m.Schema.Index(features.LPGPropylene)
	co2 := m.Schema.Index(features.CO2EmissionRate)
	if gas < 0 || lpg < 0 || prop < 0 || co2 < 0 {
		return nil, fmt.Errorf("%w: prediction matrix lacks valuation columns", ErrShapeMismatch)
	}

	out := make([]Valuation, m.Len())
	for i, row := range m.Rows {
		out[i] = valuateRow(row[gas], row[lpg], row[prop], row[co2], feedMassFlow[i])
	}
	return out, nil
}

func valuateRow(gasolineYield, lpgYield, propyleneContent, co2Rate, feed float64) Valuation {
	gasoline := gasolineYield / 100 * feed
	lpg := lpgYield / 100 * feed
	propylene := lpg * (propyleneContent / 100)
	value := gasoline*GasolinePrice + (lpg-propylene)*LPGPrice + propylene*PropylenePrice

	return Valuation{
		GasolineProduct:  gasoline,
		LPGProduct:       lpg,
		PropyleneProduct: propylene,
		EconomicValue:    value,
		CO2Rate:          co2Rate,
		OptimumValue:     value / (co2Rate + CO2Epsilon),
	}
}
