package processor

import (
	"log"

	"github.com/geosonics/terrapath/rasterstack"
	"github.com/geosonics/terrapath/utils"
)

// FeatureSampler reads every feature band at each path point,
// producing one Sample per PathPoint. Per-cell NoData never fails a
// sample; it becomes Missing and flows through unchanged. Only a stack
// that cannot be read at all fails, and that is caught at Open time
// since bands are materialized in memory.
type FeatureSampler struct {
	stack    *rasterstack.Stack
	features []string
	exprs    *utils.BandExpressions
	verbose  bool
}

func NewFeatureSampler(stack *rasterstack.Stack, features []string, exprs *utils.BandExpressions, verbose bool) *FeatureSampler {
	return &FeatureSampler{stack: stack, features: features, exprs: exprs, verbose: verbose}
}

// Sample walks the path in order. The returned slice preserves path
// order exactly: sample i corresponds to path[i].
func (fs *FeatureSampler) Sample(path []PathPoint) ([]Sample, error) {
	samples := make([]Sample, len(path))
	missingCells := 0

	for i, point := range path {
		values := make(map[string]utils.Value, len(fs.features))
		for _, feature := range fs.features {
			val, err := fs.stack.ValueAt(point.Row, point.Col, feature)
			if err != nil {
				return nil, err
			}
			if val.IsMissing() {
				missingCells++
			}
			values[feature] = val
		}

		if fs.exprs != nil {
			for ix, name := range fs.exprs.Names {
				v, ok, err := fs.exprs.Evaluate(ix, values)
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

		samples[i] = Sample{Point: point, Values: values}
	}

	if fs.verbose {
		log.Printf("Feature Sampler: %d samples, %d missing cells across %d features",
			len(samples), missingCells, len(fs.features))
	}
	return samples, nil
}

// SampledFeatures lists the feature columns each sample carries: physical
// bands first in stack order, then derived features in declaration
// order.
func (fs *FeatureSampler) SampledFeatures() []string {
	names := make([]string, 0, len(fs.features))
	names = append(names, fs.features...)
	if fs.exprs != nil {
		names = append(names, fs.exprs.Names...)
	}
	return names
}
