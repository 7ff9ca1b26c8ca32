// Package coordinates converts between image pixel/line coordinates and
// map coordinates using a six parameter affine geotransform.
//
// The geotransform follows the GDAL convention:
//
//	X = gt[0] + col*gt[1] + row*gt[2]
//	Y = gt[3] + col*gt[4] + row*gt[5]
//
// Pixel coordinates refer to pixel centres, so converting pixel (0, 0)
// yields the map position half a cell in from the raster origin.
package coordinates

import "fmt"

// PixelToMap converts an image (row, col) position to map coordinates.
// Fractional pixel positions are supported.
func PixelToMap(geoTransform [6]float64, row, col float64) (x, y float64) {
	cx := col + 0.5
	cy := row + 0.5
	x = geoTransform[0] + cx*geoTransform[1] + cy*geoTransform[2]
	y = geoTransform[3] + cx*geoTransform[4] + cy*geoTransform[5]
	return
}

// MapToPixel converts map coordinates to an image (row, col) position by
// inverting the affine geotransform. The result is fractional. A
// geotransform with zero determinant cannot be inverted.
func MapToPixel(geoTransform [6]float64, x, y float64) (row, col float64, err error) {
	det := geoTransform[1]*geoTransform[5] - geoTransform[2]*geoTransform[4]
	if det == 0 {
		return 0, 0, fmt.Errorf("geotransform %v is not invertible", geoTransform)
	}
	dx := x - geoTransform[0]
	dy := y - geoTransform[3]
	cx := (dx*geoTransform[5] - dy*geoTransform[2]) / det
	cy := (dy*geoTransform[1] - dx*geoTransform[4]) / det
	return cy - 0.5, cx - 0.5, nil
}

// PixelsToMap converts parallel slices of row and col positions in one
// pass. The slices must be the same length.
func PixelsToMap(geoTransform [6]float64, rows, cols []float64) (xs, ys []float64, err error) {
	if len(rows) != len(cols) {
		return nil, nil, fmt.Errorf("row and col slices differ in length: %d vs %d", len(rows), len(cols))
	}
	xs = make([]float64, len(rows))
	ys = make([]float64, len(rows))
	for i := range rows {
		xs[i], ys[i] = PixelToMap(geoTransform, rows[i], cols[i])
	}
	return xs, ys, nil
}

// MapsToPixel converts parallel slices of map coordinates in one pass.
func MapsToPixel(geoTransform [6]float64, xs, ys []float64) (rows, cols []float64, err error) {
	if len(xs) != len(ys) {
		return nil, nil, fmt.Errorf("x and y slices differ in length: %d vs %d", len(xs), len(ys))
	}
	rows = make([]float64, len(xs))
	cols = make([]float64, len(xs))
	for i := range xs {
		rows[i], cols[i], err = MapToPixel(geoTransform, xs[i], ys[i])
		if err != nil {
			return nil, nil, err
		}
	}
	return rows, cols, nil
}
