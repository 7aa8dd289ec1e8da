package processor

import (
	"log"
	"runtime"
	"sort"

	"github.com/geosonics/terrapath/rasterstack"
	"github.com/geosonics/terrapath/utils"
)

// GridReshaper re-emits the raster stack as pixel-exact tabular forms.
// All modes honor canonical pixel-scan order for addressability, share
// no mutable state with the sampling path, and are deterministic given
// the same stack, so each output is independently re-runnable.
type GridReshaper struct {
	stack    *rasterstack.Stack
	features []string
	exprs    *utils.BandExpressions
	verbose  bool
}

func NewGridReshaper(stack *rasterstack.Stack, features []string, exprs *utils.BandExpressions, verbose bool) *GridReshaper {
	return &GridReshaper{stack: stack, features: features, exprs: exprs, verbose: verbose}
}

// Features lists the grid output columns: resolved bands in
// declaration order, then derived features.
func (gr *GridReshaper) Features() []string {
	names := make([]string, 0, len(gr.features))
	names = append(names, gr.features...)
	if gr.exprs != nil {
		names = append(names, gr.exprs.Names...)
	}
	return names
}

func (gr *GridReshaper) pixelValues(row, col int) (map[string]utils.Value, error) {
	values := make(map[string]utils.Value, len(gr.features))
	for _, name := range gr.features {
		val, err := gr.stack.ValueAt(row, col, name)
		if err != nil {
			return nil, err
		}
		values[name] = val
	}
	if gr.exprs != nil {
		for ix, name := range gr.exprs.Names {
			v, ok, err := gr.exprs.Evaluate(ix, values)
			if err != nil {
				return nil, err
			}
			if ok {
				values[name] = utils.Num(v)
			} else {
				values[name] = utils.Missing()
			}
		}
	}
	return values, nil
}

// FullGrid emits one GridRow per pixel in canonical scan order:
// row k has pixelY = k/width, pixelX = k%width. The output has exactly
// width*height rows and can be very large; callers are warned, not
// limited.
func (gr *GridReshaper) FullGrid() ([]GridRow, error) {
	width, height := gr.stack.Dimensions()
	rows := make([]GridRow, 0, width*height)

	for k := 0; k < width*height; k++ {
		pr, pc := gr.stack.Mapper.ScanPixel(k)
		x, y := gr.stack.Mapper.PixelToWorld(pr, pc)
		values, err := gr.pixelValues(pr, pc)
		if err != nil {
			return nil, err
		}
		rows = append(rows, GridRow{PixelX: pc, PixelY: pr, WorldX: x, WorldY: y, Values: values})
	}

	if gr.verbose {
		log.Printf("Grid Reshaper: full grid %d rows (%dx%d)", len(rows), width, height)
	}
	return rows, nil
}

// ColumnAggregate reduces each raster column to the per-feature median
// of its valid pixels, one row per column. A column with zero valid
// pixels for a feature emits Missing for that feature; values are
// never interpolated across columns. Columns are independent, so the
// medians run in parallel under a bounded limiter.
func (gr *GridReshaper) ColumnAggregate() ([]ColumnAggregateRow, error) {
	width, height := gr.stack.Dimensions()
	features := gr.Features()
	rows := make([]ColumnAggregateRow, width)
	errs := make([]error, width)

	cLimiter := NewConcLimiter(runtime.NumCPU())
	for col := 0; col < width; col++ {
		cLimiter.Increase()
		go func(col int) {
			defer cLimiter.Decrease()

			colValues := make(map[string][]float64, len(features))
			for row := 0; row < height; row++ {
				values, err := gr.pixelValues(row, col)
				if err != nil {
					errs[col] = err
					return
				}
				for _, feature := range features {
					if v := values[feature]; !v.IsMissing() {
						colValues[feature] = append(colValues[feature], v.V)
					}
				}
			}

			medians := make(map[string]utils.Value, len(features))
			for _, feature := range features {
				if vals := colValues[feature]; len(vals) > 0 {
					medians[feature] = utils.Num(median(vals))
				} else {
					medians[feature] = utils.Missing()
				}
			}

			// world_x of the column centre, row-independent for
			// axis-aligned transforms
			x, _ := gr.stack.Mapper.PixelToWorld(height/2, col)
			rows[col] = ColumnAggregateRow{PixelX: col, WorldX: x, Medians: medians}
		}(col)
	}
	cLimiter.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	if gr.verbose {
		log.Printf("Grid Reshaper: column aggregate %d rows", width)
	}
	return rows, nil
}

// median matches the conventional midpoint definition: the middle
// value for odd counts, the mean of the two middle values for even
// counts. gonum's quantile estimators define even-count behavior
// differently, so it is written out.
func median(vals []float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// SortColumnwise reorders a copy of the combined time series by world
// x ascending, then world y ascending, with a stable sort. The result
// is decoupled from temporal path order and serves consumers scanning
// by image column instead of by path time.
func SortColumnwise(rows []CombinedRow) []CombinedRow {
	sorted := make([]CombinedRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Point.X != sorted[j].Point.X {
			return sorted[i].Point.X < sorted[j].Point.X
		}
		return sorted[i].Point.Y < sorted[j].Point.Y
	})
	return sorted
}
