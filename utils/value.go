package utils

import (
	"math"
	"strconv"
)

// Value is a sampled cell value or an explicit missing marker. A raster
// cell equal to the NoData sentinel, or a statistic over an empty set,
// is Missing rather than any numeric substitute.
type Value struct {
	V     float64
	Valid bool
}

func Num(v float64) Value {
	return Value{V: v, Valid: true}
}

func Missing() Value {
	return Value{}
}

func (v Value) IsMissing() bool {
	return !v.Valid
}

// ExportPolicy controls how Missing is rendered at a CSV boundary.
// Analytical exports keep an empty cell; sonification-ready exports
// substitute zero. A single output file uses exactly one policy.
type ExportPolicy int

const (
	PolicyAnalytical ExportPolicy = iota
	PolicySonification
)

func (p ExportPolicy) String() string {
	if p == PolicySonification {
		return "sonification_zero_fill"
	}
	return "analytical_missing_preserved"
}

// FormatValue renders a Value as a CSV field under the given policy.
func FormatValue(v Value, policy ExportPolicy) string {
	if v.IsMissing() || math.IsNaN(v.V) || math.IsInf(v.V, 0) {
		if policy == PolicySonification {
			return "0"
		}
		return ""
	}
	return strconv.FormatFloat(v.V, 'g', -1, 64)
}

// FormatFloat renders a plain float field. Coordinates and pixel
// positions are always present and ignore the missing policy.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
