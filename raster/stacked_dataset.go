// Package raster provides tiled access to stacked multiband datasets
// through GDAL. Read handles are scoped to a single call: every read opens
// the dataset and closes it again on all exit paths, so no GDAL handle is
// cached across the life of a StackedDataset.
package raster

import (
	"fmt"
	"sort"
	"time"

	"github.com/airbusgeo/godal"

	"github.com/nci/eotools/stats"
	"github.com/nci/eotools/tiling"
)

// StackedDataset describes a multiband raster whose bands form the z axis
// of a temporal or spectral stack. The header is captured once at open
// time; pixel data is read tile by tile.
type StackedDataset struct {
	Path         string
	Bands        int
	Rows         int
	Cols         int
	Projection   string
	GeoTransform [6]float64
	NoData       *float64

	tiles []tiling.Tile
}

// OpenStacked reads the dataset header and initialises the default tiling
// (full width rows of 10 lines).
func OpenStacked(path string) (*StackedDataset, error) {
	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return nil, fmt.Errorf("raster: could not open dataset %s: %v", path, err)
	}
	defer ds.Close()

	structure := ds.Structure()
	sd := &StackedDataset{
		Path:       path,
		Bands:      structure.NBands,
		Rows:       structure.SizeY,
		Cols:       structure.SizeX,
		Projection: ds.Projection(),
	}
	if gt, err := ds.GeoTransform(); err == nil {
		sd.GeoTransform = gt
	}
	// assume the same no-data value across all bands
	if structure.NBands > 0 {
		if nd, ok := ds.Bands()[0].NoData(); ok {
			sd.NoData = &nd
		}
	}

	if err := sd.InitTiling(0, 0); err != nil {
		return nil, err
	}
	return sd, nil
}

// InitTiling sets the tile partition used by Tiles and Tile. A zero xsize
// defaults to the full dataset width, a zero ysize to 10 lines.
func (sd *StackedDataset) InitTiling(xsize, ysize int) error {
	if xsize <= 0 {
		xsize = sd.Cols
	}
	if ysize <= 0 {
		ysize = 10
	}
	tiles, err := tiling.GenerateTiles(sd.Cols, sd.Rows, xsize, ysize)
	if err != nil {
		return err
	}
	sd.tiles = tiles
	return nil
}

// Tiles returns the current tile partition.
func (sd *StackedDataset) Tiles() []tiling.Tile {
	return sd.tiles
}

// Tile returns the n-th tile of the current partition.
func (sd *StackedDataset) Tile(n int) (tiling.Tile, error) {
	if n < 0 || n >= len(sd.tiles) {
		return tiling.Tile{}, fmt.Errorf("raster: tile index %d out of range [0, %d)", n, len(sd.tiles))
	}
	return sd.tiles[n], nil
}

// NumTiles returns the number of tiles in the current partition.
func (sd *StackedDataset) NumTiles() int {
	return len(sd.tiles)
}

func (sd *StackedDataset) checkTile(t tiling.Tile) error {
	if t.YStart < 0 || t.XStart < 0 || t.YEnd > sd.Rows || t.XEnd > sd.Cols ||
		t.YStart >= t.YEnd || t.XStart >= t.XEnd {
		return fmt.Errorf("raster: tile %+v outside dataset extent %dx%d", t, sd.Cols, sd.Rows)
	}
	return nil
}

func (sd *StackedDataset) checkBands(bands []int) error {
	for _, b := range bands {
		if b < 1 || b > sd.Bands {
			return fmt.Errorf("raster: band %d out of range [1, %d]", b, sd.Bands)
		}
	}
	return nil
}

// allBands returns the 1-based indices of every band.
func (sd *StackedDataset) allBands() []int {
	bands := make([]int, sd.Bands)
	for i := range bands {
		bands[i] = i + 1
	}
	return bands
}

// ReadStackTile reads the given 1-based bands of a tile window into a BSQ
// stack of the requested precision. A nil band list selects all bands. The
// dataset is opened for the duration of the call only.
func ReadStackTile[T stats.Float](sd *StackedDataset, t tiling.Tile, bands []int) (*stats.Stack[T], error) {
	if bands == nil {
		bands = sd.allBands()
	}
	if err := sd.checkTile(t); err != nil {
		return nil, err
	}
	if err := sd.checkBands(bands); err != nil {
		return nil, err
	}

	ds, err := godal.Open(sd.Path, godal.RasterOnly())
	if err != nil {
		return nil, fmt.Errorf("raster: could not open dataset %s: %v", sd.Path, err)
	}
	defer ds.Close()

	w, h := t.Width(), t.Height()
	block := stats.NewStack[T](len(bands), h, w, stats.BSQ)
	dsBands := ds.Bands()
	for i, b := range bands {
		buf := block.Data[i*w*h : (i+1)*w*h]
		if err := dsBands[b-1].Read(t.XStart, t.YStart, buf, w, h); err != nil {
			return nil, fmt.Errorf("raster: read band %d of %s: %v", b, sd.Path, err)
		}
	}
	return block, nil
}

// ReadTile is the single precision convenience form of ReadStackTile.
func (sd *StackedDataset) ReadTile(t tiling.Tile, bands []int) (*stats.Stack[float32], error) {
	return ReadStackTile[float32](sd, t, bands)
}

// ReadTileDouble reads a tile in high (float64) precision.
func (sd *StackedDataset) ReadTileDouble(t tiling.Tile, bands []int) (*stats.Stack[float64], error) {
	return ReadStackTile[float64](sd, t, bands)
}

// ReadTileUint16 reads the given bands of a tile window as raw uint16
// planes, one flat plane per band. Used for pixel quality bit arrays.
func (sd *StackedDataset) ReadTileUint16(t tiling.Tile, bands []int) ([][]uint16, error) {
	if bands == nil {
		bands = sd.allBands()
	}
	if err := sd.checkTile(t); err != nil {
		return nil, err
	}
	if err := sd.checkBands(bands); err != nil {
		return nil, err
	}

	ds, err := godal.Open(sd.Path, godal.RasterOnly())
	if err != nil {
		return nil, fmt.Errorf("raster: could not open dataset %s: %v", sd.Path, err)
	}
	defer ds.Close()

	w, h := t.Width(), t.Height()
	planes := make([][]uint16, len(bands))
	dsBands := ds.Bands()
	for i, b := range bands {
		planes[i] = make([]uint16, w*h)
		if err := dsBands[b-1].Read(t.XStart, t.YStart, planes[i], w, h); err != nil {
			return nil, fmt.Errorf("raster: read band %d of %s: %v", b, sd.Path, err)
		}
	}
	return planes, nil
}

// ReadBand reads one full band plane in single precision.
func (sd *StackedDataset) ReadBand(band int) ([]float32, error) {
	block, err := sd.ReadTile(tiling.Tile{YEnd: sd.Rows, XEnd: sd.Cols}, []int{band})
	if err != nil {
		return nil, err
	}
	return block.Data, nil
}

// BandMetadata returns the metadata items of a 1-based band.
func (sd *StackedDataset) BandMetadata(band int) (map[string]string, error) {
	if err := sd.checkBands([]int{band}); err != nil {
		return nil, err
	}
	ds, err := godal.Open(sd.Path, godal.RasterOnly())
	if err != nil {
		return nil, fmt.Errorf("raster: could not open dataset %s: %v", sd.Path, err)
	}
	defer ds.Close()
	return ds.Bands()[band-1].Metadatas(), nil
}

// band metadata timestamps come in two historical layouts
var datetimeLayouts = []string{
	"2006-01-02 15:04:05.000000",
	"2006-01-02 15:04:05",
}

// BandDatetime parses the acquisition datetime recorded in a band's
// start_datetime metadata item. Returns the zero time when the item is
// absent.
func (sd *StackedDataset) BandDatetime(band int) (time.Time, error) {
	md, err := sd.BandMetadata(band)
	if err != nil {
		return time.Time{}, err
	}
	item, ok := md["start_datetime"]
	if !ok {
		return time.Time{}, nil
	}
	for _, layout := range datetimeLayouts {
		if dt, err := time.Parse(layout, item); err == nil {
			return dt, nil
		}
	}
	return time.Time{}, fmt.Errorf("raster: could not parse start_datetime %q of band %d", item, band)
}

// YearlyIterator groups the 1-based band indices by acquisition year. Bands
// without an acquisition datetime are grouped under year 0.
func (sd *StackedDataset) YearlyIterator() (map[int][]int, error) {
	years := map[int][]int{}
	for b := 1; b <= sd.Bands; b++ {
		dt, err := sd.BandDatetime(b)
		if err != nil {
			return nil, err
		}
		year := 0
		if !dt.IsZero() {
			year = dt.Year()
		}
		years[year] = append(years[year], b)
	}
	for _, bands := range years {
		sort.Ints(bands)
	}
	return years, nil
}
