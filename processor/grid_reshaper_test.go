package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geosonics/terrapath/rasterstack"
	"github.com/geosonics/terrapath/utils"
)

// 4x4 elevation band with 9999 as the nodata sentinel. Pixel (0,2) and
// (1,1) are nodata.
func testGridStack(t *testing.T) *rasterstack.Stack {
	t.Helper()
	elev := &rasterstack.Band{
		Name:   "elevation",
		Width:  4,
		Height: 4,
		NoData: 9999,
		Data: []float64{
			1, 2, 9999, 4,
			5, 9999, 7, 8,
			9, 10, 11, 12,
			13, 14, 15, 16,
		},
	}
	stack, err := rasterstack.NewStack([]*rasterstack.Band{elev}, rasterstack.GeoTransform{0, 1, 0, 4, 0, -1})
	require.NoError(t, err)
	return stack
}

func TestFullGridCanonicalOrder(t *testing.T) {
	gr := NewGridReshaper(testGridStack(t), []string{"elevation"}, nil, false)

	rows, err := gr.FullGrid()
	require.NoError(t, err)
	require.Len(t, rows, 16)

	for k, row := range rows {
		assert.Equal(t, k/4, row.PixelY, "row %d", k)
		assert.Equal(t, k%4, row.PixelX, "row %d", k)
	}

	// nodata pixels come through as Missing, in place
	assert.True(t, rows[2].Values["elevation"].IsMissing())
	assert.True(t, rows[5].Values["elevation"].IsMissing())
	assert.Equal(t, 1.0, rows[0].Values["elevation"].V)
	assert.Equal(t, 16.0, rows[15].Values["elevation"].V)

	// world coordinates are cell centres
	assert.Equal(t, 0.5, rows[0].WorldX)
	assert.Equal(t, 3.5, rows[0].WorldY)
}

func TestColumnAggregateMedians(t *testing.T) {
	gr := NewGridReshaper(testGridStack(t), []string{"elevation"}, nil, false)

	rows, err := gr.ColumnAggregate()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	// column 1 holds {2, nodata, 10, 14}; the median ignores nodata
	assert.Equal(t, 1, rows[1].PixelX)
	assert.Equal(t, 10.0, rows[1].Medians["elevation"].V)

	// column 0 holds {1, 5, 9, 13}; even count averages the middle pair
	assert.Equal(t, 7.0, rows[0].Medians["elevation"].V)

	assert.Equal(t, 1.5, rows[1].WorldX)
}

func TestColumnAggregateAllNoDataColumn(t *testing.T) {
	elev := &rasterstack.Band{
		Name:   "elevation",
		Width:  2,
		Height: 2,
		NoData: 9999,
		Data: []float64{
			1, 9999,
			3, 9999,
		},
	}
	stack, err := rasterstack.NewStack([]*rasterstack.Band{elev}, rasterstack.GeoTransform{0, 1, 0, 2, 0, -1})
	require.NoError(t, err)

	gr := NewGridReshaper(stack, []string{"elevation"}, nil, false)
	rows, err := gr.ColumnAggregate()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 2.0, rows[0].Medians["elevation"].V)
	assert.True(t, rows[1].Medians["elevation"].IsMissing(), "no interpolation across columns")
}

func TestFullGridDerivedFeature(t *testing.T) {
	exprs, err := utils.ParseBandExpressions([]utils.DerivedFeature{
		{Name: "relief", Expression: "elevation * 2"},
	})
	require.NoError(t, err)

	gr := NewGridReshaper(testGridStack(t), []string{"elevation"}, exprs, false)
	assert.Equal(t, []string{"elevation", "relief"}, gr.Features())

	rows, err := gr.FullGrid()
	require.NoError(t, err)

	assert.Equal(t, 2.0, rows[0].Values["relief"].V)
	assert.True(t, rows[2].Values["relief"].IsMissing(), "derived value over a nodata input")
}

func TestSortColumnwise(t *testing.T) {
	rows := []CombinedRow{
		{Point: PathPoint{Index: 0, X: 2.5, Y: 1.5}},
		{Point: PathPoint{Index: 1, X: 0.5, Y: 3.5}},
		{Point: PathPoint{Index: 2, X: 0.5, Y: 1.5}},
		{Point: PathPoint{Index: 3, X: 1.5, Y: 2.5}},
	}

	sorted := SortColumnwise(rows)

	assert.Equal(t, []int{2, 1, 3, 0}, []int{
		sorted[0].Point.Index, sorted[1].Point.Index,
		sorted[2].Point.Index, sorted[3].Point.Index,
	})

	// input order untouched
	assert.Equal(t, 0, rows[0].Point.Index)
}
