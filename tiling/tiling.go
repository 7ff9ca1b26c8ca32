// Package tiling partitions a 2D raster into fixed size rectangular blocks
// so that arbitrarily large images can be processed with bounded memory.
package tiling

import "fmt"

// Tile indexes a rectangular sub region of a raster. Both intervals are
// half open, [YStart, YEnd) and [XStart, XEnd), in pixel coordinates.
type Tile struct {
	YStart, YEnd int
	XStart, XEnd int
}

// Width returns the number of samples covered by the tile.
func (t Tile) Width() int {
	return t.XEnd - t.XStart
}

// Height returns the number of lines covered by the tile.
func (t Tile) Height() int {
	return t.YEnd - t.YStart
}

// Size returns the number of pixels covered by the tile.
func (t Tile) Size() int {
	return t.Width() * t.Height()
}

// GenerateTiles computes the tile partition of a raster with the given
// number of samples (columns) and lines (rows). Tiles are emitted in
// row-major order, left to right within each row band. The end of the last
// tile in each dimension is clipped to the raster bounds, so the partition
// covers the full extent with no gaps, no overlaps and no remainder tile.
// Tile sizes larger than the raster collapse to a single tile.
func GenerateTiles(samples, lines, xtile, ytile int) ([]Tile, error) {
	if samples < 1 || lines < 1 {
		return nil, fmt.Errorf("tiling: invalid raster dimensions %dx%d", samples, lines)
	}
	if xtile < 1 || ytile < 1 {
		return nil, fmt.Errorf("tiling: invalid tile size %dx%d", xtile, ytile)
	}

	nx := (samples + xtile - 1) / xtile
	ny := (lines + ytile - 1) / ytile

	tiles := make([]Tile, 0, nx*ny)
	for ystep := 0; ystep < lines; ystep += ytile {
		yend := ystep + ytile
		if yend > lines {
			yend = lines
		}
		for xstep := 0; xstep < samples; xstep += xtile {
			xend := xstep + xtile
			if xend > samples {
				xend = samples
			}
			tiles = append(tiles, Tile{YStart: ystep, YEnd: yend, XStart: xstep, XEnd: xend})
		}
	}
	return tiles, nil
}
