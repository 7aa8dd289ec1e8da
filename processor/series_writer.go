package processor

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/schollz/progressbar/v3"

	"github.com/geosonics/terrapath/rasterstack"
	"github.com/geosonics/terrapath/utils"
)

// Output file names. The sonification consumer addresses artifacts by
// these exact names.
const (
	CombinedFileName     = "combined_time_series.csv"
	PathPointsFileName   = "path_points.csv"
	FullGridFileName     = "combined_time_series_fullgrid.csv"
	ColumnAggFileName    = "combined_time_series_columnaggregated.csv"
	ColumnwiseFileName   = "combined_time_series_columnwise.csv"
	MetadataFileName     = "temporal_simulation_metadata.json"
	sonificationSuffix   = "_clean"
	perFeatureDirName    = "time_series"
	fullGridProgressSize = 1 << 20
)

// RunMetadata is the side artifact describing exactly what a run
// produced, so a downstream consumer can validate row-count
// expectations without re-deriving them.
type RunMetadata struct {
	Direction          string                    `json:"direction"`
	NumPointsRequested int                       `json:"num_points_requested"`
	PointsGenerated    int                       `json:"points_generated"`
	PointsDropped      int                       `json:"points_dropped"`
	WindowSize         int                       `json:"window_size"`
	WindowStep         int                       `json:"window_step"`
	WindowCount        int                       `json:"window_count"`
	Derivatives        bool                      `json:"derivatives"`
	Features           []string                  `json:"features"`
	OmittedFeatures    []string                  `json:"omitted_features,omitempty"`
	NoDataSentinel     float64                   `json:"nodata_sentinel"`
	MissingPolicy      string                    `json:"missing_policy"`
	BandSummaries      []rasterstack.BandSummary `json:"band_summaries,omitempty"`
	Outputs            []string                  `json:"outputs"`
}

// SeriesWriter merges sampler and statistics output into the combined
// time-series table and its side artifacts.
type SeriesWriter struct {
	outputDir string
	features  []string
	verbose   bool
}

func NewSeriesWriter(outputDir string, features []string, verbose bool) *SeriesWriter {
	return &SeriesWriter{outputDir: outputDir, features: features, verbose: verbose}
}

// ResolveFeatures checks every declared feature against the stack.
// A required feature absent from the stack is fatal; an optional one
// is omitted from the schema and reported for the metadata note. With
// no declarations, all stack bands are features.
func ResolveFeatures(specs []utils.FeatureSpec, stack *rasterstack.Stack) ([]string, []string, error) {
	if len(specs) == 0 {
		return stack.BandNames(), nil, nil
	}

	var features, omitted []string
	for _, spec := range specs {
		if _, ok := stack.Band(spec.Name); ok {
			features = append(features, spec.Name)
			continue
		}
		if !spec.Optional {
			return nil, nil, &IncompleteStackError{Feature: spec.Name}
		}
		omitted = append(omitted, spec.Name)
		log.Printf("Series Writer: optional feature %s absent from stack, column omitted", spec.Name)
	}
	if len(features) == 0 {
		return nil, nil, fmt.Errorf("no declared feature bands present in the stack")
	}
	return features, omitted, nil
}

// Build merges samples and stat rows into combined rows. With stat
// rows present, the table is window-aligned: one row per window,
// anchored at the window's first sample, carrying that sample's raw
// values next to the window statistics. Without statistics, one row
// per sample.
func (sw *SeriesWriter) Build(samples []Sample, statRows []StatRow) []CombinedRow {
	if statRows == nil {
		rows := make([]CombinedRow, len(samples))
		for i, s := range samples {
			rows[i] = CombinedRow{Point: s.Point, Raw: s.Values}
		}
		return rows
	}

	rows := make([]CombinedRow, len(statRows))
	for i := range statRows {
		anchor := samples[statRows[i].Start]
		rows[i] = CombinedRow{Point: anchor.Point, Raw: anchor.Values, Stats: &statRows[i]}
	}
	return rows
}

func (sw *SeriesWriter) combinedRecord(row CombinedRow, spec WindowSpec, policy utils.ExportPolicy) []string {
	record := []string{
		fmt.Sprintf("%d", row.Point.Index),
		utils.FormatFloat(row.Point.X),
		utils.FormatFloat(row.Point.Y),
	}
	for _, f := range sw.features {
		record = append(record, utils.FormatValue(row.Raw[f], policy))
	}
	if row.Stats != nil {
		for _, f := range sw.features {
			record = append(record,
				utils.FormatValue(row.Stats.Mean[f], policy),
				utils.FormatValue(row.Stats.Std[f], policy),
				utils.FormatValue(row.Stats.Min[f], policy),
				utils.FormatValue(row.Stats.Max[f], policy))
		}
		if spec.Derivatives {
			for _, f := range sw.features {
				record = append(record, utils.FormatValue(row.Stats.Derivative[f], policy))
			}
		}
	}
	return record
}

// WriteCombined writes the combined table under one export policy.
func (sw *SeriesWriter) WriteCombined(fileName string, rows []CombinedRow, spec WindowSpec, policy utils.ExportPolicy) (string, error) {
	withStats := len(rows) > 0 && rows[0].Stats != nil
	outPath := filepath.Join(sw.outputDir, fileName)

	out, err := utils.CreateCSV(outPath, utils.CombinedColumns(sw.features, withStats, withStats && spec.Derivatives))
	if err != nil {
		return "", err
	}
	defer out.Close()

	for _, row := range rows {
		if err := out.Write(sw.combinedRecord(row, spec, policy)); err != nil {
			return "", err
		}
	}

	if err := out.Close(); err != nil {
		return "", err
	}
	if sw.verbose {
		log.Printf("Series Writer: wrote %d rows to %s", len(rows), outPath)
	}
	return outPath, nil
}

type pathPointRecord struct {
	Index int     `csv:"Index"`
	X     float64 `csv:"X"`
	Y     float64 `csv:"Y"`
}

// WritePathPoints writes the raw pre-windowing path artifact, one row
// per PathPoint.
func (sw *SeriesWriter) WritePathPoints(path []PathPoint) (string, error) {
	outPath := filepath.Join(sw.outputDir, PathPointsFileName)
	if err := os.MkdirAll(sw.outputDir, 0755); err != nil {
		return "", fmt.Errorf("error creating output directory %s: %v", sw.outputDir, err)
	}

	records := make([]*pathPointRecord, len(path))
	for i, p := range path {
		records[i] = &pathPointRecord{Index: p.Index, X: p.X, Y: p.Y}
	}

	f, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("error creating %s: %v", outPath, err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&records, f); err != nil {
		return "", fmt.Errorf("error writing %s: %v", outPath, err)
	}
	return outPath, nil
}

// WritePerFeature writes one <feature>_time_series.csv per feature
// with Index, X, Y, Value columns.
func (sw *SeriesWriter) WritePerFeature(samples []Sample, policy utils.ExportPolicy) ([]string, error) {
	var outputs []string
	for _, feature := range sw.features {
		outPath := filepath.Join(sw.outputDir, perFeatureDirName, feature+"_time_series.csv")
		out, err := utils.CreateCSV(outPath, []string{"Index", "X", "Y", "Value"})
		if err != nil {
			return nil, err
		}

		for _, s := range samples {
			record := []string{
				fmt.Sprintf("%d", s.Point.Index),
				utils.FormatFloat(s.Point.X),
				utils.FormatFloat(s.Point.Y),
				utils.FormatValue(s.Values[feature], policy),
			}
			if err := out.Write(record); err != nil {
				out.Close()
				return nil, err
			}
		}
		if err := out.Close(); err != nil {
			return nil, err
		}
		outputs = append(outputs, outPath)
	}
	return outputs, nil
}

// WriteFullGrid writes the full-grid export. The row count is
// width*height exactly, which can be very large, so progress is
// reported on big grids.
func (sw *SeriesWriter) WriteFullGrid(rows []GridRow, policy utils.ExportPolicy) (string, error) {
	outPath := filepath.Join(sw.outputDir, sw.policyFileName(FullGridFileName, policy))
	out, err := utils.CreateCSV(outPath, utils.FullGridColumns(sw.features))
	if err != nil {
		return "", err
	}
	defer out.Close()

	var bar *progressbar.ProgressBar
	if len(rows) >= fullGridProgressSize {
		bar = progressbar.Default(int64(len(rows)), "writing full grid")
	}

	for _, row := range rows {
		record := []string{
			fmt.Sprintf("%d", row.PixelX),
			fmt.Sprintf("%d", row.PixelY),
			utils.FormatFloat(row.WorldX),
			utils.FormatFloat(row.WorldY),
		}
		for _, f := range sw.features {
			record = append(record, utils.FormatValue(row.Values[f], policy))
		}
		if err := out.Write(record); err != nil {
			return "", err
		}
		if bar != nil {
			bar.Add(1)
		}
	}

	if err := out.Close(); err != nil {
		return "", err
	}
	return outPath, nil
}

// WriteColumnAggregate writes the per-column median export, width rows
// exactly.
func (sw *SeriesWriter) WriteColumnAggregate(rows []ColumnAggregateRow, policy utils.ExportPolicy) (string, error) {
	outPath := filepath.Join(sw.outputDir, sw.policyFileName(ColumnAggFileName, policy))
	out, err := utils.CreateCSV(outPath, utils.ColumnAggregateColumns(sw.features))
	if err != nil {
		return "", err
	}
	defer out.Close()

	for _, row := range rows {
		record := []string{
			fmt.Sprintf("%d", row.PixelX),
			utils.FormatFloat(row.WorldX),
		}
		for _, f := range sw.features {
			record = append(record, utils.FormatValue(row.Medians[f], policy))
		}
		if err := out.Write(record); err != nil {
			return "", err
		}
	}

	if err := out.Close(); err != nil {
		return "", err
	}
	return outPath, nil
}

// WriteColumnwise writes the combined table reordered by world x, then
// world y.
func (sw *SeriesWriter) WriteColumnwise(rows []CombinedRow, spec WindowSpec, policy utils.ExportPolicy) (string, error) {
	return sw.WriteCombined(sw.policyFileName(ColumnwiseFileName, policy), SortColumnwise(rows), spec, policy)
}

// WriteMetadata writes the JSON run metadata artifact.
func (sw *SeriesWriter) WriteMetadata(meta *RunMetadata) (string, error) {
	outPath := filepath.Join(sw.outputDir, MetadataFileName)
	data, err := json.MarshalIndent(meta, "", "    ")
	if err != nil {
		return "", fmt.Errorf("error encoding metadata: %v", err)
	}
	if err := os.MkdirAll(sw.outputDir, 0755); err != nil {
		return "", fmt.Errorf("error creating output directory %s: %v", sw.outputDir, err)
	}
	if err := ioutil.WriteFile(outPath, data, 0644); err != nil {
		return "", fmt.Errorf("error writing %s: %v", outPath, err)
	}
	return outPath, nil
}

// policyFileName keeps analytical and sonification outputs in separate
// files; the two missing-value policies never mix inside one file.
func (sw *SeriesWriter) policyFileName(base string, policy utils.ExportPolicy) string {
	if policy == utils.PolicySonification {
		ext := filepath.Ext(base)
		return base[:len(base)-len(ext)] + sonificationSuffix + ext
	}
	return base
}
