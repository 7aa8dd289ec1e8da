package processor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"log"

	geo "github.com/nci/geometry"

	"github.com/geosonics/terrapath/rasterstack"
)

// PathGenerator produces the ordered traversal the sampler follows.
// The synthetic policies space points in pixel space so every point
// lands inside the raster; external paths arrive as world coordinates
// and are clipped to the extent with a logged drop count.
type PathGenerator struct {
	mapper  *rasterstack.Mapper
	verbose bool
}

func NewPathGenerator(mapper *rasterstack.Mapper, verbose bool) *PathGenerator {
	return &PathGenerator{mapper: mapper, verbose: verbose}
}

// Generate returns numPoints PathPoints under one of the synthetic
// policies. Points are strictly increasing in parametric order.
func (pg *PathGenerator) Generate(policy PathPolicy, numPoints int) ([]PathPoint, error) {
	if numPoints <= 0 {
		return nil, fmt.Errorf("num_points must be positive, got %d", numPoints)
	}

	width, height := pg.mapper.Width, pg.mapper.Height
	points := make([]PathPoint, numPoints)

	for i := 0; i < numPoints; i++ {
		var row, col int
		switch policy {
		case PolicyLeftToRight:
			row = height / 2
			col = i * width / numPoints
		case PolicyTopToBottom:
			row = i * height / numPoints
			col = width / 2
		case PolicyDiagonal:
			row = i * height / numPoints
			col = i * width / numPoints
		default:
			return nil, fmt.Errorf("unsupported path policy '%s'", policy)
		}

		x, y := pg.mapper.PixelToWorld(row, col)
		points[i] = PathPoint{Index: i, X: x, Y: y, Row: row, Col: col}
	}

	if pg.verbose {
		log.Printf("Path Generator: %d points, policy %s", numPoints, policy)
	}
	return points, nil
}

// FromWorldPoints consumes a caller-supplied ordered list of world
// coordinates verbatim, in order. Coordinates outside the raster are
// dropped and counted; coincident pixels are kept as-is since a time
// series may legitimately revisit a cell. Fails only when no points
// remain.
func (pg *PathGenerator) FromWorldPoints(coords [][2]float64) ([]PathPoint, int, error) {
	var points []PathPoint
	dropped := 0

	for _, c := range coords {
		row, col, err := pg.mapper.WorldToPixel(c[0], c[1])
		if err != nil {
			var oob *rasterstack.OutOfBoundsError
			if errors.As(err, &oob) {
				dropped++
				continue
			}
			return nil, dropped, err
		}
		points = append(points, PathPoint{Index: len(points), X: c[0], Y: c[1], Row: row, Col: col})
	}

	if dropped > 0 {
		log.Printf("Path Generator: dropped %d of %d external points outside raster bounds",
			dropped, len(coords))
	}
	if len(points) == 0 {
		return nil, dropped, fmt.Errorf("external path has no points inside the raster extent")
	}
	return points, dropped, nil
}

// LoadGeoJSONPoints reads an external path file as a GeoJSON
// FeatureCollection of Points (e.g. vectorized zone centroids) and
// returns the world coordinates in feature order.
func LoadGeoJSONPoints(pathFile string) ([][2]float64, error) {
	data, err := ioutil.ReadFile(pathFile)
	if err != nil {
		return nil, fmt.Errorf("error reading path file %s: %v", pathFile, err)
	}

	var featCol geo.FeatureCollection
	err = json.Unmarshal(data, &featCol)
	if err != nil {
		return nil, fmt.Errorf("error parsing GeoJSON path file %s: %v", pathFile, err)
	}

	var coords [][2]float64
	skipped := 0
	for _, feat := range featCol.Features {
		switch geom := feat.Geometry.(type) {
		case *geo.Point:
			raw, err := json.Marshal(geom)
			if err != nil {
				return nil, fmt.Errorf("error re-encoding point geometry in %s: %v", pathFile, err)
			}
			var pt struct {
				Coordinates []float64 `json:"coordinates"`
			}
			err = json.Unmarshal(raw, &pt)
			if err != nil || len(pt.Coordinates) < 2 {
				return nil, fmt.Errorf("malformed point coordinates in %s", pathFile)
			}
			coords = append(coords, [2]float64{pt.Coordinates[0], pt.Coordinates[1]})
		default:
			skipped++
		}
	}

	if skipped > 0 {
		log.Printf("Path Generator: ignored %d non-point features in %s", skipped, pathFile)
	}
	if len(coords) == 0 {
		return nil, fmt.Errorf("no point features found in %s", pathFile)
	}
	return coords, nil
}
