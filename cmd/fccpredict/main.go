package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fcc-optimizer/internal/app"
	"fcc-optimizer/internal/cfg"
	"fcc-optimizer/internal/features"
	"fcc-optimizer/internal/report"
	"fcc-optimizer/internal/sheet"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Parse command line arguments
	var (
		inputPath  = flag.String("input", "", "Spreadsheet with the feature columns (.xlsx or .csv)")
		outputPath = flag.String("output", "", "Output directory for the result files (default: <input>_result)")
		configPath = flag.String("config", "", "YAML config file (default: $CONFIG_FILE)")
		logLevel   = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	)
	flag.Parse()

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fccpredict -input <file.xlsx> [-output dir] [-config config.yaml]")
		os.Exit(2)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	config, err := cfg.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *logLevel != "" {
		config.LogLevel = *logLevel
	}
	setupLogging(config.LogLevel)

	if *outputPath == "" {
		*outputPath = strings.TrimSuffix(*inputPath, filepath.Ext(*inputPath)) + "_result"
	}

	if err := run(config, *inputPath, *outputPath); err != nil {
		var schemaErr *features.SchemaError
		if errors.As(err, &schemaErr) {
			fmt.Fprintf(os.Stderr, "缺少以下特征列：%v\n", schemaErr.Missing)
		}
		log.Error().Err(err).Msg("Prediction failed")
		os.Exit(1)
	}
}

func run(config cfg.Settings, inputPath, outputPath string) error {
	a, err := app.New(config, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer file.Close()

	raw, err := sheet.Read(file, inputPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*config.ModelTimeout+time.Minute)
	defer cancel()

	res, err := a.Runner.Run(ctx, raw, filepath.Base(inputPath))
	if err != nil {
		return err
	}

	if len(res.Violations) > 0 {
		fmt.Println("检测到预测值超出预设范围：")
		for _, msg := range res.Messages() {
			fmt.Println(msg)
		}
	} else {
		fmt.Println(report.AllInRangeMessage)
	}

	if err := report.NewReporter(res, outputPath).GenerateReport(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	fmt.Printf("%d rows predicted, results written to %s\n", res.Output.Len(), outputPath)
	return nil
}

func setupLogging(levelName string) {
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
