package processor

import (
	"fmt"
	"log"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/geosonics/terrapath/utils"
)

// WindowCount is the number of windows of size w advancing by step s
// over n samples. Zero when w exceeds n.
func WindowCount(n, w, s int) int {
	if w > n {
		return 0
	}
	return (n-w)/s + 1
}

// WindowAggregator computes per-window statistics over the ordered
// sample sequence. Statistics cover only the valid values of each
// feature inside the window; an all-missing window produces Missing
// statistics in place so the row count stays (N-W)/S + 1.
type WindowAggregator struct {
	spec     WindowSpec
	features []string
	verbose  bool
}

func NewWindowAggregator(spec WindowSpec, features []string, verbose bool) (*WindowAggregator, error) {
	if spec.Step <= 0 || spec.Size < spec.Step {
		return nil, fmt.Errorf("window requires size >= step > 0, got size %d step %d",
			spec.Size, spec.Step)
	}
	return &WindowAggregator{spec: spec, features: features, verbose: verbose}, nil
}

// Aggregate produces one StatRow per window. Each row is anchored at
// its window's first sample. With derivatives enabled, every row after
// the first carries the simple difference of per-feature means against
// the previous row, Missing when either side is Missing.
func (wa *WindowAggregator) Aggregate(samples []Sample) []StatRow {
	w, s := wa.spec.Size, wa.spec.Step
	count := WindowCount(len(samples), w, s)
	rows := make([]StatRow, count)

	for k := 0; k < count; k++ {
		start := k * s
		row := StatRow{
			WindowIndex: k,
			Start:       start,
			End:         start + w,
			Anchor:      samples[start].Point,
			Mean:        make(map[string]utils.Value, len(wa.features)),
			Std:         make(map[string]utils.Value, len(wa.features)),
			Min:         make(map[string]utils.Value, len(wa.features)),
			Max:         make(map[string]utils.Value, len(wa.features)),
		}
		if wa.spec.Derivatives {
			row.Derivative = make(map[string]utils.Value, len(wa.features))
		}

		for _, feature := range wa.features {
			var vals []float64
			for i := start; i < start+w; i++ {
				if v, ok := samples[i].Values[feature]; ok && !v.IsMissing() {
					vals = append(vals, v.V)
				}
			}

			if len(vals) == 0 {
				row.Mean[feature] = utils.Missing()
				row.Std[feature] = utils.Missing()
				row.Min[feature] = utils.Missing()
				row.Max[feature] = utils.Missing()
			} else {
				row.Mean[feature] = utils.Num(stat.Mean(vals, nil))
				if len(vals) > 1 {
					row.Std[feature] = utils.Num(stat.StdDev(vals, nil))
				} else {
					row.Std[feature] = utils.Missing()
				}
				row.Min[feature] = utils.Num(floats.Min(vals))
				row.Max[feature] = utils.Num(floats.Max(vals))
			}

			if wa.spec.Derivatives {
				row.Derivative[feature] = utils.Missing()
				if k > 0 {
					prev := rows[k-1].Mean[feature]
					curr := row.Mean[feature]
					if !prev.IsMissing() && !curr.IsMissing() {
						row.Derivative[feature] = utils.Num(curr.V - prev.V)
					}
				}
			}
		}

		rows[k] = row
	}

	if wa.verbose {
		log.Printf("Windowed Statistics: %d windows (size %d, step %d) over %d samples",
			count, w, s, len(samples))
	}
	return rows
}
