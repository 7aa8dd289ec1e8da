package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geosonics/terrapath/rasterstack"
)

func testMapper(t *testing.T, width, height int) *rasterstack.Mapper {
	t.Helper()
	m, err := rasterstack.NewMapper(rasterstack.GeoTransform{0, 1, 0, float64(height), 0, -1}, width, height)
	require.NoError(t, err)
	return m
}

func TestLeftToRightColumns(t *testing.T) {
	pg := NewPathGenerator(testMapper(t, 10, 4), false)

	path, err := pg.Generate(PolicyLeftToRight, 5)
	require.NoError(t, err)
	require.Len(t, path, 5)

	for i, p := range path {
		assert.Equal(t, i, p.Index)
		assert.Equal(t, i*2, p.Col)
		assert.Equal(t, 2, p.Row)
		if i > 0 {
			assert.Greater(t, p.Col, path[i-1].Col, "columns must strictly increase")
			assert.Greater(t, p.X, path[i-1].X, "world x must strictly increase")
		}
	}
}

func TestTopToBottomRows(t *testing.T) {
	pg := NewPathGenerator(testMapper(t, 4, 10), false)

	path, err := pg.Generate(PolicyTopToBottom, 5)
	require.NoError(t, err)
	require.Len(t, path, 5)

	for i, p := range path {
		assert.Equal(t, i*2, p.Row)
		assert.Equal(t, 2, p.Col)
	}
}

func TestDiagonal(t *testing.T) {
	pg := NewPathGenerator(testMapper(t, 8, 8), false)

	path, err := pg.Generate(PolicyDiagonal, 4)
	require.NoError(t, err)
	require.Len(t, path, 4)

	for i, p := range path {
		assert.Equal(t, i*2, p.Row)
		assert.Equal(t, i*2, p.Col)
	}
}

func TestGenerateRejectsBadInput(t *testing.T) {
	pg := NewPathGenerator(testMapper(t, 4, 4), false)

	_, err := pg.Generate(PolicyLeftToRight, 0)
	assert.Error(t, err)

	_, err = pg.Generate(PathPolicy("spiral"), 5)
	assert.Error(t, err)
}

func TestExternalPathDropsOutOfBounds(t *testing.T) {
	pg := NewPathGenerator(testMapper(t, 4, 4), false)

	coords := [][2]float64{
		{0.5, 3.5},
		{1.5, 2.5},
		{99.0, 99.0}, // outside the extent
		{2.5, 1.5},
		{3.5, 0.5},
	}

	path, dropped, err := pg.FromWorldPoints(coords)
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)
	require.Len(t, path, 4)

	for i, p := range path {
		assert.Equal(t, i, p.Index)
	}
	assert.Equal(t, 0, path[0].Row)
	assert.Equal(t, 0, path[0].Col)
	assert.Equal(t, 3, path[3].Row)
	assert.Equal(t, 3, path[3].Col)
}

func TestExternalPathKeepsCoincidentPixels(t *testing.T) {
	pg := NewPathGenerator(testMapper(t, 4, 4), false)

	coords := [][2]float64{
		{0.5, 3.5},
		{0.6, 3.4}, // same pixel as the first point
	}
	path, dropped, err := pg.FromWorldPoints(coords)
	require.NoError(t, err)
	assert.Equal(t, 0, dropped)
	require.Len(t, path, 2)
	assert.Equal(t, path[0].Row, path[1].Row)
	assert.Equal(t, path[0].Col, path[1].Col)
}

func TestExternalPathAllOutOfBounds(t *testing.T) {
	pg := NewPathGenerator(testMapper(t, 4, 4), false)

	_, _, err := pg.FromWorldPoints([][2]float64{{99, 99}})
	assert.Error(t, err)
}
