package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"

	"fcc-optimizer/internal/features"
	"fcc-optimizer/internal/ml"

	"github.com/xuri/excelize/v2"
)

// Typical operating point of the unit and the spread used for samples.
var nominalFeatures = map[string][2]float64{
	features.FeedMassFlow:         {180, 15},
	features.FeedAromatics:        {22, 3},
	features.FeedNickel:           {6, 1.5},
	features.FeedVanadium:         {4, 1},
	features.FeedCarbonResidue:    {3.5, 0.8},
	features.FeedPreheatTemp:      {210, 10},
	features.ReactorPressure:      {1.8, 0.1},
	features.ReactorTemp:          {515, 6},
	features.CatalystMicroActive:  {68, 2},
	features.FreshCatalystActive:  {75, 2},
	features.ReactorCatalystStock: {95000, 5000},
	features.RegeneratorBedTemp:   {690, 8},
	features.FeedDensity:          {0.91, 0.01},
	features.FeedNitrogen:         {0.18, 0.03},
	features.FeedSulfur:           {0.45, 0.1},
	features.CatalystMakeupRate:   {4.5, 0.8},
	features.LiftSteamRate:        {3.2, 0.3},
	features.AtomizingSteamRate:   {8.5, 0.6},
	features.StrippingSteamRate:   {5.0, 0.4},
}

// Target values at the operating point.
var nominalTargets = map[string]float64{
	features.GasolineYield:     45,
	features.GasolineAromatics: 22,
	features.GasolineOlefins:   18,
	features.GasolineRON:       92.8,
	features.GasolineEndPoint:  198,
	features.LPGYield:          24,
	features.LPGPropylene:      38,
	features.LPGC5Ratio:        1.2,
	features.CO2EmissionRate:   42,
	features.DieselD86T95:      345,
}

// Sensitivities per unit change of a feature around the operating point.
var sensitivities = map[string]map[string]float64{
	features.GasolineYield: {features.ReactorTemp: 0.12, features.FeedCarbonResidue: -1.5},
	features.GasolineRON:   {features.ReactorTemp: 0.06, features.FeedAromatics: 0.05},
	features.LPGYield:      {features.ReactorTemp: 0.2, features.CatalystMicroActive: 0.15},
	features.LPGPropylene:  {features.ReactorTemp: 0.1},
	features.CO2EmissionRate: {
		features.FeedMassFlow:      0.2,
		features.FeedCarbonResidue: 3,
	},
}

func main() {
	var (
		outDir = flag.String("out", "sample", "Output directory")
		rows   = flag.Int("rows", 24, "Number of input rows")
		seed   = flag.Int64("seed", 1, "Random seed")
	)
	flag.Parse()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	rng := rand.New(rand.NewSource(*seed))

	fmt.Printf("Generating sample data in %s...\n", *outDir)

	// Two models that disagree slightly, like two regressors trained on the same data.
	for _, m := range []struct {
		name  string
		scale float64
	}{{"rf_model.json", 1.0}, {"gb_model.json", 1.03}} {
		path := filepath.Join(*outDir, m.name)
		if err := writeModel(path, m.scale); err != nil {
			log.Fatalf("Failed to write model: %v", err)
		}
		fmt.Printf("  Model: %s\n", path)
	}

	inputPath := filepath.Join(*outDir, "input.xlsx")
	if err := writeInput(inputPath, *rows, rng); err != nil {
		log.Fatalf("Failed to write input: %v", err)
	}
	fmt.Printf("  Input: %s (%d rows)\n", inputPath, *rows)

	fmt.Println("✓ Sample data generated")
}

func writeModel(path string, scale float64) error {
	featureNames := features.FeatureSchema.Names()
	targetNames := features.TargetSchema.Names()

	m := ml.LinearModel{
		Version:   "sample",
		Features:  featureNames,
		Targets:   targetNames,
		Intercept: make([]float64, len(targetNames)),
		Coef:      make([][]float64, len(targetNames)),
	}
	for i, target := range targetNames {
		m.Coef[i] = make([]float64, len(featureNames))
		// Intercept is shifted so the model hits the nominal target at the operating point.
		intercept := nominalTargets[target] * scale
		for j, feature := range featureNames {
			w := sensitivities[target][feature]
			m.Coef[i][j] = w
			intercept -= w * nominalFeatures[feature][0]
		}
		m.Intercept[i] = intercept
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func writeInput(path string, rows int, rng *rand.Rand) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	names := features.FeatureSchema.Names()

	header := make([]interface{}, len(names))
	for i, n := range names {
		header[i] = n
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	for r := 0; r < rows; r++ {
		values := make([]interface{}, len(names))
		for i, n := range names {
			p := nominalFeatures[n]
			values[i] = p[0] + rng.NormFloat64()*p[1]
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}
