package processor

import (
	"fmt"

	"github.com/geosonics/terrapath/utils"
)

// PathPolicy selects the traversal used to generate path points.
type PathPolicy string

const (
	PolicyLeftToRight PathPolicy = "left_to_right"
	PolicyTopToBottom PathPolicy = "top_to_bottom"
	PolicyDiagonal    PathPolicy = "diagonal"
	PolicyExternal    PathPolicy = "external_path"
)

// PathPoint is one ordered point of the traversal. Index is the
// implicit time axis of the sonification: row order downstream is
// always Index order. Immutable once generated.
type PathPoint struct {
	Index    int
	X, Y     float64
	Row, Col int
}

// Sample is one PathPoint plus the value of every feature band at its
// pixel. Missing cells stay Missing here; substitution happens only at
// export time.
type Sample struct {
	Point  PathPoint
	Values map[string]utils.Value
}

// WindowSpec configures the sliding statistics windows. Windows of
// Size samples advance by Step, Size >= Step > 0, and may overlap to
// produce smoother parameter trajectories for audio mapping.
type WindowSpec struct {
	Size        int
	Step        int
	Derivatives bool
}

// StatRow is the aggregate over one window, per feature. A window with
// no valid values for a feature yields Missing statistics but still
// occupies its row slot, keeping the row count at (N-Size)/Step + 1.
type StatRow struct {
	WindowIndex int
	Start, End  int
	Anchor      PathPoint

	Mean map[string]utils.Value
	Std  map[string]utils.Value
	Min  map[string]utils.Value
	Max  map[string]utils.Value

	// Derivative is the first difference of Mean against the previous
	// StatRow; nil when derivatives are disabled.
	Derivative map[string]utils.Value
}

// GridRow is one pixel of the full-grid export, in canonical scan
// order.
type GridRow struct {
	PixelX, PixelY int
	WorldX, WorldY float64
	Values         map[string]utils.Value
}

// ColumnAggregateRow is one raster column reduced to the per-feature
// median of its valid pixels.
type ColumnAggregateRow struct {
	PixelX  int
	WorldX  float64
	Medians map[string]utils.Value
}

// CombinedRow is one row of the combined time-series table. When
// windowed statistics are requested, each row is anchored at its
// window's first sample and Stats is set; otherwise one row per sample
// with Stats nil.
type CombinedRow struct {
	Point PathPoint
	Raw   map[string]utils.Value
	Stats *StatRow
}

// IncompleteStackError reports a declared feature band absent from the
// stack. Fatal for required features; optional features are omitted
// from the schema with a metadata note instead.
type IncompleteStackError struct {
	Feature string
}

func (e *IncompleteStackError) Error() string {
	return fmt.Sprintf("required feature band %s is absent from the raster stack", e.Feature)
}
