package processor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geosonics/terrapath/utils"
)

func singleFeatureSamples(feature string, values []utils.Value) []Sample {
	samples := make([]Sample, len(values))
	for i, v := range values {
		samples[i] = Sample{
			Point:  PathPoint{Index: i, X: float64(i), Y: 0},
			Values: map[string]utils.Value{feature: v},
		}
	}
	return samples
}

func TestWindowCount(t *testing.T) {
	cases := []struct {
		n, w, s, want int
	}{
		{5, 3, 1, 3},
		{5, 5, 1, 1},
		{5, 6, 1, 0},
		{10, 4, 2, 4},
		{10, 4, 4, 2},
		{7, 3, 3, 2},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, WindowCount(c.n, c.w, c.s), "n=%d w=%d s=%d", c.n, c.w, c.s)
	}
}

func TestAggregateSkipsMissingValues(t *testing.T) {
	samples := singleFeatureSamples("elev", []utils.Value{
		utils.Num(1), utils.Num(2), utils.Missing(), utils.Num(4), utils.Num(5),
	})

	wa, err := NewWindowAggregator(WindowSpec{Size: 3, Step: 1}, []string{"elev"}, false)
	require.NoError(t, err)

	rows := wa.Aggregate(samples)
	require.Len(t, rows, 3)

	assert.InDelta(t, 1.5, rows[0].Mean["elev"].V, 1e-12)
	assert.InDelta(t, 3.0, rows[1].Mean["elev"].V, 1e-12)
	assert.InDelta(t, 4.5, rows[2].Mean["elev"].V, 1e-12)

	assert.Equal(t, 1.0, rows[0].Min["elev"].V)
	assert.Equal(t, 2.0, rows[0].Max["elev"].V)
	assert.InDelta(t, math.Sqrt(0.5), rows[0].Std["elev"].V, 1e-12)

	// each row anchors at its window's first sample
	assert.Equal(t, 0, rows[0].Anchor.Index)
	assert.Equal(t, 1, rows[1].Anchor.Index)
	assert.Equal(t, 2, rows[2].Anchor.Index)
}

func TestAggregateAllMissingWindowKeepsSlot(t *testing.T) {
	samples := singleFeatureSamples("elev", []utils.Value{
		utils.Num(1), utils.Missing(), utils.Missing(), utils.Num(4),
	})

	wa, err := NewWindowAggregator(WindowSpec{Size: 2, Step: 2}, []string{"elev"}, false)
	require.NoError(t, err)

	rows := wa.Aggregate(samples)
	require.Len(t, rows, 2)

	assert.Equal(t, 1.0, rows[0].Mean["elev"].V, "single valid value still aggregates")
	assert.Equal(t, 4.0, rows[1].Mean["elev"].V)

	samples = singleFeatureSamples("elev", []utils.Value{
		utils.Missing(), utils.Missing(), utils.Num(4), utils.Num(6),
	})
	rows = wa.Aggregate(samples)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Mean["elev"].IsMissing())
	assert.True(t, rows[0].Std["elev"].IsMissing())
	assert.True(t, rows[0].Min["elev"].IsMissing())
	assert.True(t, rows[0].Max["elev"].IsMissing())
	assert.Equal(t, 5.0, rows[1].Mean["elev"].V)
}

func TestAggregateWindowLargerThanSamples(t *testing.T) {
	samples := singleFeatureSamples("elev", []utils.Value{utils.Num(1), utils.Num(2)})

	wa, err := NewWindowAggregator(WindowSpec{Size: 3, Step: 1}, []string{"elev"}, false)
	require.NoError(t, err)

	rows := wa.Aggregate(samples)
	assert.Len(t, rows, 0)
}

func TestAggregateDerivatives(t *testing.T) {
	samples := singleFeatureSamples("elev", []utils.Value{
		utils.Num(1), utils.Num(2), utils.Num(4), utils.Num(8),
	})

	wa, err := NewWindowAggregator(WindowSpec{Size: 2, Step: 1, Derivatives: true}, []string{"elev"}, false)
	require.NoError(t, err)

	rows := wa.Aggregate(samples)
	require.Len(t, rows, 3)

	assert.True(t, rows[0].Derivative["elev"].IsMissing(), "first row has no previous mean")
	assert.InDelta(t, 1.5, rows[1].Derivative["elev"].V, 1e-12)
	assert.InDelta(t, 3.0, rows[2].Derivative["elev"].V, 1e-12)
}

func TestAggregateDerivativeMissingSide(t *testing.T) {
	samples := singleFeatureSamples("elev", []utils.Value{
		utils.Num(1), utils.Missing(), utils.Missing(), utils.Num(4),
	})

	wa, err := NewWindowAggregator(WindowSpec{Size: 1, Step: 1, Derivatives: true}, []string{"elev"}, false)
	require.NoError(t, err)

	rows := wa.Aggregate(samples)
	require.Len(t, rows, 4)
	assert.True(t, rows[1].Derivative["elev"].IsMissing())
	assert.True(t, rows[2].Derivative["elev"].IsMissing())
	assert.True(t, rows[3].Derivative["elev"].IsMissing(), "previous mean is missing")
}

func TestNewWindowAggregatorValidation(t *testing.T) {
	_, err := NewWindowAggregator(WindowSpec{Size: 2, Step: 3}, []string{"elev"}, false)
	assert.Error(t, err)

	_, err = NewWindowAggregator(WindowSpec{Size: 2, Step: 0}, []string{"elev"}, false)
	assert.Error(t, err)
}
