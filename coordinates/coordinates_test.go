package coordinates

import (
	"math"
	"testing"
)

// north-up Landsat style transform, 25m cells
var gt = [6]float64{644000.0, 25.0, 0.0, 6283000.0, 0.0, -25.0}

func TestPixelToMapCentres(t *testing.T) {
	x, y := PixelToMap(gt, 0, 0)
	if x != 644012.5 || y != 6282987.5 {
		t.Errorf("origin pixel centre: got (%v, %v)", x, y)
	}

	x, y = PixelToMap(gt, 10, 4)
	if x != 644112.5 || y != 6282737.5 {
		t.Errorf("pixel (10, 4): got (%v, %v)", x, y)
	}
}

func TestMapToPixelRoundTrip(t *testing.T) {
	for _, rc := range [][2]float64{{0, 0}, {7, 3}, {99.25, 41.75}, {-2, 5}} {
		x, y := PixelToMap(gt, rc[0], rc[1])
		row, col, err := MapToPixel(gt, x, y)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(row-rc[0]) > 1e-9 || math.Abs(col-rc[1]) > 1e-9 {
			t.Errorf("round trip of (%v, %v): got (%v, %v)", rc[0], rc[1], row, col)
		}
	}
}

func TestMapToPixelRotated(t *testing.T) {
	rot := [6]float64{1000.0, 3.0, 1.0, 2000.0, 1.0, -3.0}
	x, y := PixelToMap(rot, 12.5, 6.25)
	row, col, err := MapToPixel(rot, x, y)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(row-12.5) > 1e-9 || math.Abs(col-6.25) > 1e-9 {
		t.Errorf("rotated round trip: got (%v, %v)", row, col)
	}
}

func TestMapToPixelDegenerate(t *testing.T) {
	if _, _, err := MapToPixel([6]float64{0, 0, 0, 0, 0, 0}, 1, 1); err == nil {
		t.Error("expected an error for a zero determinant geotransform")
	}
}

func TestBatchConversions(t *testing.T) {
	rows := []float64{0, 1, 2}
	cols := []float64{0, 2, 4}
	xs, ys, err := PixelsToMap(gt, rows, cols)
	if err != nil {
		t.Fatal(err)
	}
	backRows, backCols, err := MapsToPixel(gt, xs, ys)
	if err != nil {
		t.Fatal(err)
	}
	for i := range rows {
		if math.Abs(backRows[i]-rows[i]) > 1e-9 || math.Abs(backCols[i]-cols[i]) > 1e-9 {
			t.Errorf("batch round trip at %d: got (%v, %v)", i, backRows[i], backCols[i])
		}
	}

	if _, _, err := PixelsToMap(gt, rows, cols[:2]); err == nil {
		t.Error("expected an error for mismatched slice lengths")
	}
	if _, _, err := MapsToPixel(gt, xs[:1], ys); err == nil {
		t.Error("expected an error for mismatched slice lengths")
	}
}
