package main

/* terrapath converts a processed terrain raster stack (elevation plus
   derived features such as slope, curvature or roughness) into
   time-ordered and pixel-synchronized tabular outputs for driving
   audio synthesis. It walks an ordered path across the co-registered
   feature bands, samples every band per path point, computes sliding
   window statistics, and re-emits the stack as pixel-exact grids so a
   sonification engine can scan audio parameters in lock-step with a
   visualization image. Configuration comes from a YAML file with
   command line overrides. */

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/geosonics/terrapath/metrics"
	"github.com/geosonics/terrapath/processor"
	"github.com/geosonics/terrapath/rasterstack"
	"github.com/geosonics/terrapath/utils"
)

func main() {
	configFile := flag.String("config", "", "YAML run configuration file")
	inputDir := flag.String("input", "", "directory of single-band feature GeoTIFFs")
	outputDir := flag.String("output", "", "output directory for CSV and metadata artifacts")
	direction := flag.String("direction", "", "path policy: left_to_right, top_to_bottom, diagonal or external_path")
	pathFile := flag.String("path-file", "", "GeoJSON point file for external_path")
	numPoints := flag.Int("num-points", 0, "number of points along the path")
	windowSize := flag.Int("window", 0, "statistics window size (0 disables windowing)")
	windowStep := flag.Int("step", 0, "statistics window step")
	derivatives := flag.Bool("derivatives", false, "emit first-difference derivatives of window means")
	gridModes := flag.String("grid-modes", "", "comma separated grid reshaper modes: full,column,columnwise")
	perFeature := flag.Bool("per-feature", false, "emit one time series CSV per feature")
	sonification := flag.Bool("sonification", false, "also emit sonification-ready twins with missing values as zero")
	verbose := flag.Bool("verbose", false, "verbose log output")
	flag.Parse()

	cfg := &utils.Config{
		Direction:  "left_to_right",
		NumPoints:  100,
		WindowSize: 5,
		WindowStep: 1,
		NoData:     utils.DefaultNoData,
	}
	if len(*configFile) > 0 {
		var err error
		cfg, err = utils.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("%v", err)
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.InputDir = *inputDir
		case "output":
			cfg.OutputDir = *outputDir
		case "direction":
			cfg.Direction = *direction
		case "path-file":
			cfg.PathFile = *pathFile
		case "num-points":
			cfg.NumPoints = *numPoints
		case "window":
			cfg.WindowSize = *windowSize
		case "step":
			cfg.WindowStep = *windowStep
		case "derivatives":
			cfg.Derivatives = *derivatives
		case "grid-modes":
			cfg.GridModes = splitModes(*gridModes)
		case "per-feature":
			cfg.PerFeature = *perFeature
		case "sonification":
			cfg.Sonification = *sonification
		case "verbose":
			cfg.Verbose = *verbose
		}
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	var logger metrics.Logger
	if len(cfg.MetricsLogDir) > 0 {
		logger = metrics.NewFileLogger(cfg.MetricsLogDir)
	} else {
		logger = metrics.NewStdoutLogger()
	}
	collector := metrics.NewCollector(logger)
	collector.Info.Policy = cfg.Direction
	collector.Info.PointsRequested = cfg.NumPoints

	err := run(cfg, collector)
	if err != nil {
		collector.Info.Error = err.Error()
		collector.Log()
		log.Fatalf("%v", err)
	}
	collector.Log()
}

func run(cfg *utils.Config, collector *metrics.Collector) error {
	stack, err := openStack(cfg)
	if err != nil {
		return err
	}
	collector.Info.BytesRead = stack.BytesRead
	collector.StageDone("stack_open")

	features, omitted, err := processor.ResolveFeatures(cfg.Features, stack)
	if err != nil {
		return err
	}

	exprs, omittedDerived, err := resolveDerived(cfg.Derived, features)
	if err != nil {
		return err
	}
	omitted = append(omitted, omittedDerived...)

	allFeatures := make([]string, 0, len(features)+len(exprs.Names))
	allFeatures = append(allFeatures, features...)
	allFeatures = append(allFeatures, exprs.Names...)
	collector.Info.NumFeatures = len(allFeatures)

	generator := processor.NewPathGenerator(stack.Mapper, cfg.Verbose)
	var path []processor.PathPoint
	dropped := 0
	if cfg.Direction == string(processor.PolicyExternal) {
		coords, err := processor.LoadGeoJSONPoints(cfg.PathFile)
		if err != nil {
			return err
		}
		collector.Info.PointsRequested = len(coords)
		path, dropped, err = generator.FromWorldPoints(coords)
		if err != nil {
			return err
		}
	} else {
		path, err = generator.Generate(processor.PathPolicy(cfg.Direction), cfg.NumPoints)
		if err != nil {
			return err
		}
	}
	collector.Info.PointsGenerated = len(path)
	collector.Info.PointsDropped = dropped
	collector.StageDone("path_generation")

	writer := processor.NewSeriesWriter(cfg.OutputDir, allFeatures, cfg.Verbose)
	var outputs []string

	pathOut, err := writer.WritePathPoints(path)
	if err != nil {
		return err
	}
	outputs = append(outputs, pathOut)

	sampler := processor.NewFeatureSampler(stack, features, exprs, cfg.Verbose)
	samples, err := sampler.Sample(path)
	if err != nil {
		return err
	}
	collector.StageDone("sampling")

	spec := processor.WindowSpec{Size: cfg.WindowSize, Step: cfg.WindowStep, Derivatives: cfg.Derivatives}
	var statRows []processor.StatRow
	if cfg.WindowSize > 0 {
		aggregator, err := processor.NewWindowAggregator(spec, allFeatures, cfg.Verbose)
		if err != nil {
			return err
		}
		statRows = aggregator.Aggregate(samples)
		collector.Info.Windows = len(statRows)
		collector.StageDone("windowing")
	}

	rows := writer.Build(samples, statRows)

	policies := []utils.ExportPolicy{utils.PolicyAnalytical}
	if cfg.Sonification {
		policies = append(policies, utils.PolicySonification)
	}

	for _, policy := range policies {
		name := processor.CombinedFileName
		if policy == utils.PolicySonification {
			name = strings.TrimSuffix(name, ".csv") + "_clean.csv"
		}
		combinedOut, err := writer.WriteCombined(name, rows, spec, policy)
		if err != nil {
			return err
		}
		outputs = append(outputs, combinedOut)
	}

	if cfg.PerFeature {
		perFeatureOuts, err := writer.WritePerFeature(samples, utils.PolicyAnalytical)
		if err != nil {
			return err
		}
		outputs = append(outputs, perFeatureOuts...)
	}
	collector.StageDone("series_write")

	gridOuts, err := runGridModes(cfg, stack, features, exprs, writer, rows, spec, policies)
	if err != nil {
		return err
	}
	outputs = append(outputs, gridOuts...)
	collector.StageDone("grid_reshape")

	missingPolicy := utils.PolicyAnalytical.String()
	if cfg.Sonification {
		missingPolicy = fmt.Sprintf("%s + %s twins", utils.PolicyAnalytical, utils.PolicySonification)
	}

	meta := &processor.RunMetadata{
		Direction:          cfg.Direction,
		NumPointsRequested: collector.Info.PointsRequested,
		PointsGenerated:    len(path),
		PointsDropped:      dropped,
		WindowSize:         cfg.WindowSize,
		WindowStep:         cfg.WindowStep,
		WindowCount:        len(statRows),
		Derivatives:        cfg.Derivatives,
		Features:           allFeatures,
		OmittedFeatures:    omitted,
		NoDataSentinel:     stack.NoDataSentinel(),
		MissingPolicy:      missingPolicy,
		BandSummaries:      stack.Summary(),
		Outputs:            outputs,
	}
	metaOut, err := writer.WriteMetadata(meta)
	if err != nil {
		return err
	}
	outputs = append(outputs, metaOut)
	collector.Info.Outputs = outputs

	log.Printf("run complete: %d points (%d dropped), %d windows, %d outputs in %s",
		len(path), dropped, len(statRows), len(outputs), cfg.OutputDir)
	return nil
}

func runGridModes(cfg *utils.Config, stack *rasterstack.Stack, features []string,
	exprs *utils.BandExpressions, writer *processor.SeriesWriter,
	rows []processor.CombinedRow, spec processor.WindowSpec,
	policies []utils.ExportPolicy) ([]string, error) {

	var outputs []string
	reshaper := processor.NewGridReshaper(stack, features, exprs, cfg.Verbose)

	for _, mode := range cfg.GridModes {
		switch strings.ToLower(mode) {
		case "full":
			gridRows, err := reshaper.FullGrid()
			if err != nil {
				return nil, err
			}
			for _, policy := range policies {
				out, err := writer.WriteFullGrid(gridRows, policy)
				if err != nil {
					return nil, err
				}
				outputs = append(outputs, out)
			}
		case "column":
			colRows, err := reshaper.ColumnAggregate()
			if err != nil {
				return nil, err
			}
			for _, policy := range policies {
				out, err := writer.WriteColumnAggregate(colRows, policy)
				if err != nil {
					return nil, err
				}
				outputs = append(outputs, out)
			}
		case "columnwise":
			for _, policy := range policies {
				out, err := writer.WriteColumnwise(rows, spec, policy)
				if err != nil {
					return nil, err
				}
				outputs = append(outputs, out)
			}
		}
	}
	return outputs, nil
}

func openStack(cfg *utils.Config) (*rasterstack.Stack, error) {
	var explicit []string
	for _, spec := range cfg.Features {
		if len(spec.File) > 0 {
			explicit = append(explicit, filepath.Join(cfg.InputDir, spec.File))
		}
	}
	if len(explicit) > 0 {
		if len(explicit) != len(cfg.Features) {
			return nil, fmt.Errorf("config: either all features declare a file or none do")
		}
		return rasterstack.Open(explicit, cfg.NoData)
	}
	return rasterstack.OpenDir(cfg.InputDir, cfg.NoData)
}

// resolveDerived keeps derived features whose referenced bands are all
// present. A required derived feature with an absent reference is
// fatal, mirroring the physical band rules.
func resolveDerived(derived []utils.DerivedFeature, features []string) (*utils.BandExpressions, []string, error) {
	present := make(map[string]bool, len(features))
	for _, f := range features {
		present[f] = true
	}

	var kept []utils.DerivedFeature
	var omitted []string
	for _, df := range derived {
		expr, err := utils.ParseBandExpressions([]utils.DerivedFeature{df})
		if err != nil {
			return nil, nil, err
		}

		missingRef := ""
		for _, variable := range expr.VarList {
			if !present[variable] {
				missingRef = variable
				break
			}
		}
		if len(missingRef) == 0 {
			kept = append(kept, df)
			continue
		}
		if !df.Optional {
			return nil, nil, &processor.IncompleteStackError{Feature: missingRef}
		}
		omitted = append(omitted, df.Name)
		log.Printf("derived feature %s omitted: referenced band %s absent", df.Name, missingRef)
	}

	exprs, err := utils.ParseBandExpressions(kept)
	if err != nil {
		return nil, nil, err
	}
	return exprs, omitted, nil
}

func splitModes(s string) []string {
	if len(s) == 0 {
		return nil
	}
	parts := strings.Split(s, ",")
	var modes []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if len(p) > 0 {
			modes = append(modes, p)
		}
	}
	return modes
}
