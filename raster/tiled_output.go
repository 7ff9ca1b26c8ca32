package raster

import (
	"errors"
	"fmt"

	"github.com/airbusgeo/godal"

	"github.com/nci/eotools/stats"
	"github.com/nci/eotools/tiling"
)

// ErrClosed is returned by writes against a closed TiledOutput.
var ErrClosed = errors.New("raster: writer already closed")

// TiledOutputOptions configures the raster created by NewTiledOutput.
// Samples and Lines are required; everything else has defaults.
type TiledOutputOptions struct {
	Samples, Lines int
	Bands          int    // default 1
	Driver         string // GDAL driver name, default GTiff
	DataType       godal.DataType
	GeoTransform   *[6]float64
	Projection     string
	NoData         *float64 // set on every band
	BandNames      []string // band descriptions, index-aligned
	CreationOption []string
}

// TiledOutput writes tiles of computed data into a newly created raster
// file. Tiles may arrive in any order; each is addressed by its pixel
// offset. Writing the same window twice overwrites (last write wins).
type TiledOutput struct {
	path           string
	ds             *godal.Dataset
	bands          []godal.Band
	samples, lines int
	nBands         int
	closed         bool
}

// NewTiledOutput creates the backing raster with the requested geometry and
// bands. Creation failures (bad path, unsupported driver) surface here, not
// at the first write.
func NewTiledOutput(path string, opts *TiledOutputOptions) (*TiledOutput, error) {
	if opts == nil || opts.Samples < 1 || opts.Lines < 1 {
		return nil, fmt.Errorf("raster: samples and lines are required to create %s", path)
	}
	nBands := opts.Bands
	if nBands < 1 {
		nBands = 1
	}
	driver := godal.GTiff
	if opts.Driver != "" {
		driver = godal.DriverName(opts.Driver)
	}
	dtype := opts.DataType
	if dtype == godal.Unknown {
		dtype = godal.Float32
	}

	ds, err := godal.Create(driver, path, nBands, dtype, opts.Samples, opts.Lines,
		godal.CreationOption(opts.CreationOption...))
	if err != nil {
		return nil, fmt.Errorf("raster: could not create %s: %v", path, err)
	}

	out := &TiledOutput{
		path:    path,
		ds:      ds,
		bands:   ds.Bands(),
		samples: opts.Samples,
		lines:   opts.Lines,
		nBands:  nBands,
	}

	if opts.GeoTransform != nil {
		if err := ds.SetGeoTransform(*opts.GeoTransform); err != nil {
			ds.Close()
			return nil, fmt.Errorf("raster: set geotransform on %s: %v", path, err)
		}
	}
	if opts.Projection != "" {
		if err := ds.SetProjection(opts.Projection); err != nil {
			ds.Close()
			return nil, fmt.Errorf("raster: set projection on %s: %v", path, err)
		}
	}
	for i := range out.bands {
		if opts.NoData != nil {
			if err := out.bands[i].SetNoData(*opts.NoData); err != nil {
				ds.Close()
				return nil, fmt.Errorf("raster: set nodata on %s band %d: %v", path, i+1, err)
			}
		}
		if i < len(opts.BandNames) {
			if err := out.bands[i].SetDescription(opts.BandNames[i]); err != nil {
				ds.Close()
				return nil, fmt.Errorf("raster: set description on %s band %d: %v", path, i+1, err)
			}
		}
	}

	return out, nil
}

// Path returns the destination file path.
func (o *TiledOutput) Path() string {
	return o.path
}

// Closed reports whether Close has been called.
func (o *TiledOutput) Closed() bool {
	return o.closed
}

func (o *TiledOutput) checkWrite(t tiling.Tile, rows, cols int) error {
	if o.closed {
		return ErrClosed
	}
	if t.YStart < 0 || t.XStart < 0 || t.YEnd > o.lines || t.XEnd > o.samples ||
		t.YStart >= t.YEnd || t.XStart >= t.XEnd {
		return fmt.Errorf("raster: tile %+v outside output extent %dx%d", t, o.samples, o.lines)
	}
	if rows != t.Height() || cols != t.Width() {
		return fmt.Errorf("raster: block %dx%d does not match tile %dx%d",
			cols, rows, t.Width(), t.Height())
	}
	return nil
}

// WriteTile writes a BSQ stack of planes into the window addressed by tile.
// The stack depth must equal the output band count; planes are written to
// their corresponding bands sequentially.
func WriteTile[T stats.Float](o *TiledOutput, block *stats.Stack[T], t tiling.Tile) error {
	if block == nil {
		return fmt.Errorf("raster: nil block for tile %+v", t)
	}
	if block.Layout != stats.BSQ {
		return fmt.Errorf("raster: write requires a BSQ block, got %v", block.Layout)
	}
	if err := o.checkWrite(t, block.Rows, block.Cols); err != nil {
		return err
	}
	if block.Bands != o.nBands {
		return fmt.Errorf("raster: block depth %d does not match output band count %d",
			block.Bands, o.nBands)
	}
	w, h := t.Width(), t.Height()
	for i := 0; i < block.Bands; i++ {
		buf := block.Data[i*w*h : (i+1)*w*h]
		if err := o.bands[i].Write(t.XStart, t.YStart, buf, w, h); err != nil {
			return fmt.Errorf("raster: write band %d of %s: %v", i+1, o.path, err)
		}
	}
	return nil
}

// WriteTileBand writes a single flat plane into the window addressed by
// tile on the given 1-based band.
func WriteTileBand[T stats.Float](o *TiledOutput, plane []T, t tiling.Tile, band int) error {
	if band < 1 || band > o.nBands {
		return fmt.Errorf("raster: band %d out of range [1, %d]", band, o.nBands)
	}
	if len(plane) != t.Size() {
		return fmt.Errorf("raster: plane length %d does not match tile %dx%d",
			len(plane), t.Width(), t.Height())
	}
	if err := o.checkWrite(t, t.Height(), t.Width()); err != nil {
		return err
	}
	if err := o.bands[band-1].Write(t.XStart, t.YStart, plane, t.Width(), t.Height()); err != nil {
		return fmt.Errorf("raster: write band %d of %s: %v", band, o.path, err)
	}
	return nil
}

// Close flushes pending writes and releases the underlying dataset. Closing
// an already closed writer is a no-op; writes after Close fail with
// ErrClosed.
func (o *TiledOutput) Close() error {
	if o.closed {
		return nil
	}
	o.closed = true
	o.bands = nil
	err := o.ds.Close()
	o.ds = nil
	if err != nil {
		return fmt.Errorf("raster: close %s: %v", o.path, err)
	}
	return nil
}
