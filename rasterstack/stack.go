package rasterstack

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/airbusgeo/godal"

	"github.com/geosonics/terrapath/utils"
)

// StackMismatchError reports bands that are not co-registered. It is
// fatal and aborts the run before any sampling happens.
type StackMismatchError struct {
	Band   string
	Reason string
}

func (e *StackMismatchError) Error() string {
	return fmt.Sprintf("band %s is not co-registered with the stack: %s", e.Band, e.Reason)
}

// RasterAccessError reports an I/O failure reading a band file. Fatal.
type RasterAccessError struct {
	Path string
	Err  error
}

func (e *RasterAccessError) Error() string {
	return fmt.Sprintf("error reading raster %s: %v", e.Path, e.Err)
}

func (e *RasterAccessError) Unwrap() error {
	return e.Err
}

// Band is one named feature raster held in memory, row-major.
type Band struct {
	Name          string
	Data          []float64
	Width, Height int
	NoData        float64
}

// ValueAt returns the cell value at (row, col) and whether it is
// valid. NoData sentinel cells and NaNs report as missing rather than
// numbers. Indices are assumed in bounds; callers go through the
// Mapper first.
func (b *Band) ValueAt(row, col int) (float64, bool) {
	v := b.Data[row*b.Width+col]
	if v == b.NoData || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// BandSummary carries per-band statistics for the metadata artifact.
type BandSummary struct {
	Name       string  `json:"name"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Mean       float64 `json:"mean"`
	ValidCells int     `json:"valid_cells"`
	TotalCells int     `json:"total_cells"`
}

// Stack is a set of co-registered single-band rasters plus the shared
// affine transform. It is opened read-only, never mutated after Open,
// and therefore safe for concurrent reads by the sampling path and the
// grid reshaper.
type Stack struct {
	Bands  []*Band
	byName map[string]*Band

	Width, Height int
	Transform     GeoTransform
	Mapper        *Mapper

	nodata    float64
	BytesRead int64
}

var registerDrivers sync.Once

// Open loads the given single-band raster files into a stack,
// validating the co-registration invariant: every band must share
// identical dimensions and affine transform with the first.
func Open(paths []string, defaultNoData float64) (*Stack, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no raster files supplied")
	}

	registerDrivers.Do(func() {
		godal.RegisterAll()
	})

	stack := &Stack{byName: make(map[string]*Band)}

	for i, path := range paths {
		band, gt, err := readBand(path, defaultNoData)
		if err != nil {
			return nil, err
		}

		if i == 0 {
			stack.Width = band.Width
			stack.Height = band.Height
			stack.Transform = gt
			stack.nodata = band.NoData
		} else {
			if band.Width != stack.Width || band.Height != stack.Height {
				return nil, &StackMismatchError{
					Band: band.Name,
					Reason: fmt.Sprintf("dimensions %dx%d differ from stack %dx%d",
						band.Width, band.Height, stack.Width, stack.Height),
				}
			}
			if !transformsEqual(gt, stack.Transform) {
				return nil, &StackMismatchError{
					Band:   band.Name,
					Reason: fmt.Sprintf("geotransform %v differs from stack %v", gt, stack.Transform),
				}
			}
		}

		if _, found := stack.byName[band.Name]; found {
			return nil, fmt.Errorf("duplicate band name %s in stack", band.Name)
		}
		stack.Bands = append(stack.Bands, band)
		stack.byName[band.Name] = band
		stack.BytesRead += int64(len(band.Data)) * 8
	}

	mapper, err := NewMapper(stack.Transform, stack.Width, stack.Height)
	if err != nil {
		return nil, err
	}
	stack.Mapper = mapper
	return stack, nil
}

// OpenDir opens every .tif/.tiff in dir as one band each, in sorted
// order. Mask rasters are not features and are skipped.
func OpenDir(dir string, defaultNoData float64) (*Stack, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.tif"))
	if err != nil {
		return nil, fmt.Errorf("error listing %s: %v", dir, err)
	}
	tiffs, err := filepath.Glob(filepath.Join(dir, "*.tiff"))
	if err != nil {
		return nil, fmt.Errorf("error listing %s: %v", dir, err)
	}
	matches = append(matches, tiffs...)

	var paths []string
	for _, m := range matches {
		if strings.Contains(strings.ToLower(filepath.Base(m)), "mask") {
			continue
		}
		paths = append(paths, m)
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, fmt.Errorf("no feature rasters found in %s", dir)
	}
	return Open(paths, defaultNoData)
}

// NewStack assembles a stack from in-memory bands, validating the same
// co-registration invariant as Open.
func NewStack(bands []*Band, gt GeoTransform) (*Stack, error) {
	if len(bands) == 0 {
		return nil, fmt.Errorf("no bands supplied")
	}

	stack := &Stack{
		byName:    make(map[string]*Band),
		Width:     bands[0].Width,
		Height:    bands[0].Height,
		Transform: gt,
		nodata:    bands[0].NoData,
	}

	for _, band := range bands {
		if band.Width != stack.Width || band.Height != stack.Height {
			return nil, &StackMismatchError{
				Band: band.Name,
				Reason: fmt.Sprintf("dimensions %dx%d differ from stack %dx%d",
					band.Width, band.Height, stack.Width, stack.Height),
			}
		}
		if len(band.Data) != band.Width*band.Height {
			return nil, &RasterAccessError{
				Path: band.Name,
				Err:  fmt.Errorf("band carries %d cells, want %d", len(band.Data), band.Width*band.Height),
			}
		}
		if _, found := stack.byName[band.Name]; found {
			return nil, fmt.Errorf("duplicate band name %s in stack", band.Name)
		}
		stack.Bands = append(stack.Bands, band)
		stack.byName[band.Name] = band
	}

	mapper, err := NewMapper(gt, stack.Width, stack.Height)
	if err != nil {
		return nil, err
	}
	stack.Mapper = mapper
	return stack, nil
}

func readBand(path string, defaultNoData float64) (*Band, GeoTransform, error) {
	var gt GeoTransform

	ds, err := godal.Open(path)
	if err != nil {
		return nil, gt, &RasterAccessError{Path: path, Err: err}
	}
	defer ds.Close()

	structure := ds.Structure()
	width, height := structure.SizeX, structure.SizeY

	geot, err := ds.GeoTransform()
	if err != nil {
		return nil, gt, &RasterAccessError{Path: path, Err: fmt.Errorf("no geotransform: %v", err)}
	}
	gt = GeoTransform(geot)

	bands := ds.Bands()
	if len(bands) == 0 {
		return nil, gt, &RasterAccessError{Path: path, Err: fmt.Errorf("no raster bands")}
	}

	nodata := defaultNoData
	if nd, ok := bands[0].NoData(); ok {
		nodata = nd
	}

	data := make([]float64, width*height)
	err = bands[0].Read(0, 0, data, width, height)
	if err != nil {
		return nil, gt, &RasterAccessError{Path: path, Err: err}
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return &Band{Name: name, Data: data, Width: width, Height: height, NoData: nodata}, gt, nil
}

func transformsEqual(a, b GeoTransform) bool {
	const eps = 1e-9
	for i := range a {
		if math.Abs(a[i]-b[i]) > eps {
			return false
		}
	}
	return true
}

// BandNames lists band names in stack order.
func (s *Stack) BandNames() []string {
	names := make([]string, len(s.Bands))
	for i, b := range s.Bands {
		names[i] = b.Name
	}
	return names
}

// Band looks a band up by feature name.
func (s *Stack) Band(name string) (*Band, bool) {
	b, ok := s.byName[name]
	return b, ok
}

// Dimensions returns (width, height) shared by all bands.
func (s *Stack) Dimensions() (int, int) {
	return s.Width, s.Height
}

// NoDataSentinel returns the sentinel of the reference band.
func (s *Stack) NoDataSentinel() float64 {
	return s.nodata
}

// ValueAt reads one band at a pixel. Missing cells report valid=false.
func (s *Stack) ValueAt(row, col int, band string) (utils.Value, error) {
	b, ok := s.byName[band]
	if !ok {
		return utils.Missing(), fmt.Errorf("no band named %s in stack", band)
	}
	if v, valid := b.ValueAt(row, col); valid {
		return utils.Num(v), nil
	}
	return utils.Missing(), nil
}

// Summary computes per-band statistics over valid cells.
func (s *Stack) Summary() []BandSummary {
	summaries := make([]BandSummary, len(s.Bands))
	for i, b := range s.Bands {
		sum := BandSummary{Name: b.Name, TotalCells: len(b.Data), Min: math.Inf(1), Max: math.Inf(-1)}
		total := 0.0
		for _, v := range b.Data {
			if v == b.NoData || math.IsNaN(v) {
				continue
			}
			if v < sum.Min {
				sum.Min = v
			}
			if v > sum.Max {
				sum.Max = v
			}
			total += v
			sum.ValidCells++
		}
		if sum.ValidCells > 0 {
			sum.Mean = total / float64(sum.ValidCells)
		} else {
			sum.Min, sum.Max = 0, 0
		}
		summaries[i] = sum
	}
	return summaries
}
