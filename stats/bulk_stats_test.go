package stats

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func newTestStack(values []float64, bands, rows, cols int, layout Layout) *Stack[float64] {
	s := NewStack[float64](bands, rows, cols, BSQ)
	copy(s.Data, values)
	if layout == BIP {
		return Transpose(s, BIP)
	}
	return s
}

func approx(a, b, tol float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return math.Abs(a-b) <= tol
}

func TestBulkStatsSinglePixel(t *testing.T) {
	block := newTestStack([]float64{1, 2, 3, 4}, 4, 1, 1, BSQ)
	out, err := BulkStats(block, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.Bands != NumStats || out.Rows != 1 || out.Cols != 1 {
		t.Fatalf("unexpected output geometry %dx%dx%d", out.Bands, out.Rows, out.Cols)
	}

	expected := map[int]float64{
		BandSum:        10.0,
		BandMean:       2.5,
		BandValidCount: 4.0,
		BandVariance:   5.0 / 3.0,
		BandStdDev:     math.Sqrt(5.0 / 3.0),
		BandSkewness:   0.0,
		BandKurtosis:   -2.0775,
		BandMax:        4.0,
		BandMin:        1.0,
		// non-interpolated: first of the two middle values, never 2.5
		BandMedian:        2.0,
		BandMedianIndex:   1.0,
		BandQ1:            1.0,
		BandQ3:            2.0,
		BandGeometricMean: math.Pow(24, 0.25),
	}
	for band, want := range expected {
		got := out.Data[band]
		if !approx(got, want, 1e-4) {
			t.Errorf("%s: expected %v, got %v", BandNames[band], want, got)
		}
	}
}

func TestBulkStatsNoData(t *testing.T) {
	noData := -999.0
	block := newTestStack([]float64{1, noData, 3, 4}, 4, 1, 1, BSQ)
	out, err := BulkStats(block, &Options{NoData: &noData})
	if err != nil {
		t.Fatal(err)
	}

	if got := out.Data[BandValidCount]; got != 3 {
		t.Errorf("valid count: expected 3, got %v", got)
	}
	if got := out.Data[BandSum]; got != 8 {
		t.Errorf("sum: expected 8, got %v", got)
	}
	if got := out.Data[BandMean]; !approx(got, 8.0/3.0, 1e-12) {
		t.Errorf("mean: expected %v, got %v", 8.0/3.0, got)
	}

	// variance over the 3 valid values with divisor 2
	mean := 8.0 / 3.0
	rss := (1-mean)*(1-mean) + (3-mean)*(3-mean) + (4-mean)*(4-mean)
	if got := out.Data[BandVariance]; !approx(got, rss/2, 1e-12) {
		t.Errorf("variance: expected %v, got %v", rss/2, got)
	}

	// the median 3.0 came from original observation index 2
	if got := out.Data[BandMedian]; got != 3 {
		t.Errorf("median: expected 3, got %v", got)
	}
	if got := out.Data[BandMedianIndex]; got != 2 {
		t.Errorf("median index: expected 2, got %v", got)
	}
}

func TestBulkStatsAllMissing(t *testing.T) {
	nan := math.NaN()
	block := newTestStack([]float64{nan, nan, nan}, 3, 1, 1, BSQ)
	out, err := BulkStats(block, nil)
	if err != nil {
		t.Fatal(err)
	}
	for band := 0; band < NumStats; band++ {
		got := out.Data[band]
		if band == BandValidCount {
			if got != 0 {
				t.Errorf("valid count: expected 0, got %v", got)
			}
			continue
		}
		if !math.IsNaN(got) {
			t.Errorf("%s: expected NaN for all-missing pixel, got %v", BandNames[band], got)
		}
	}
}

func TestBulkStatsSingleObservation(t *testing.T) {
	nan := math.NaN()
	block := newTestStack([]float64{nan, 7, nan}, 3, 1, 1, BSQ)
	out, err := BulkStats(block, nil)
	if err != nil {
		t.Fatal(err)
	}

	defined := map[int]float64{
		BandSum:           7,
		BandMean:          7,
		BandValidCount:    1,
		BandMax:           7,
		BandMin:           7,
		BandMedian:        7,
		BandMedianIndex:   1,
		BandQ1:            7,
		BandQ3:            7,
		BandGeometricMean: 7,
	}
	for band, want := range defined {
		if got := out.Data[band]; !approx(got, want, 1e-12) {
			t.Errorf("%s: expected %v, got %v", BandNames[band], want, got)
		}
	}
	// insufficient degrees of freedom
	for _, band := range []int{BandVariance, BandStdDev, BandSkewness, BandKurtosis} {
		if got := out.Data[band]; !math.IsNaN(got) {
			t.Errorf("%s: expected NaN with a single observation, got %v", BandNames[band], got)
		}
	}
}

func TestBulkStatsMedianNeverInterpolates(t *testing.T) {
	// even lengths: element n/2 - 1 of the ascending sort, never the
	// average of the two central elements
	cases := [][]float64{
		{1, 2},
		{4, 1, 3, 2},
		{10, 50, 20, 40, 30, 60},
	}
	for _, values := range cases {
		block := newTestStack(values, len(values), 1, 1, BSQ)
		out, err := BulkStats(block, nil)
		if err != nil {
			t.Fatal(err)
		}
		sorted := append([]float64(nil), values...)
		for i := range sorted {
			for j := i + 1; j < len(sorted); j++ {
				if sorted[j] < sorted[i] {
					sorted[i], sorted[j] = sorted[j], sorted[i]
				}
			}
		}
		want := sorted[len(values)/2-1]
		if got := out.Data[BandMedian]; got != want {
			t.Errorf("median of %v: expected %v, got %v", values, want, got)
		}
	}
}

func TestBulkStatsQuantileRanks(t *testing.T) {
	// odd length: q1 and q3 are symmetric about the middle element
	block := newTestStack([]float64{5, 1, 4, 2, 3}, 5, 1, 1, BSQ)
	out, err := BulkStats(block, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := out.Data[BandMedian]; got != 3 {
		t.Errorf("median: expected 3, got %v", got)
	}
	if got := out.Data[BandQ1]; got != 2 {
		t.Errorf("q1: expected 2, got %v", got)
	}
	if got := out.Data[BandQ3]; got != 4 {
		t.Errorf("q3: expected 4, got %v", got)
	}
	// original index of the median value 3.0
	if got := out.Data[BandMedianIndex]; got != 4 {
		t.Errorf("median index: expected 4, got %v", got)
	}
}

func TestBulkStatsAgainstGonum(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const bands, rows, cols = 16, 8, 9
	block := NewStack[float64](bands, rows, cols, BSQ)
	for i := range block.Data {
		block.Data[i] = rng.Float64()*100 + 1
	}
	out, err := BulkStats(block, nil)
	if err != nil {
		t.Fatal(err)
	}

	nPix := rows * cols
	obs := make([]float64, bands)
	for p := 0; p < nPix; p++ {
		for z := 0; z < bands; z++ {
			obs[z] = block.Data[z*nPix+p]
		}
		if got := out.Data[BandSum*nPix+p]; !approx(got, floats.Sum(obs), 1e-9) {
			t.Fatalf("pixel %d sum: expected %v, got %v", p, floats.Sum(obs), got)
		}
		if got := out.Data[BandMean*nPix+p]; !approx(got, stat.Mean(obs, nil), 1e-9) {
			t.Fatalf("pixel %d mean: expected %v, got %v", p, stat.Mean(obs, nil), got)
		}
		if got := out.Data[BandVariance*nPix+p]; !approx(got, stat.Variance(obs, nil), 1e-9) {
			t.Fatalf("pixel %d variance: expected %v, got %v", p, stat.Variance(obs, nil), got)
		}
		if got := out.Data[BandStdDev*nPix+p]; !approx(got, stat.StdDev(obs, nil), 1e-9) {
			t.Fatalf("pixel %d stddev: expected %v, got %v", p, stat.StdDev(obs, nil), got)
		}
		// sum = n * mean
		if got := out.Data[BandSum*nPix+p]; !approx(got, float64(bands)*out.Data[BandMean*nPix+p], 1e-9) {
			t.Fatalf("pixel %d: sum != n*mean", p)
		}
	}
}

func TestBulkStatsLayoutEquivalence(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const bands, rows, cols = 11, 5, 6
	bsq := NewStack[float64](bands, rows, cols, BSQ)
	for i := range bsq.Data {
		bsq.Data[i] = float64(rng.Intn(50))
		if rng.Intn(10) == 0 {
			bsq.Data[i] = math.NaN()
		}
	}
	bip := Transpose(bsq, BIP)

	outBSQ, err := BulkStats(bsq, nil)
	if err != nil {
		t.Fatal(err)
	}
	outBIP, err := BulkStats(bip, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := range outBSQ.Data {
		if !approx(outBSQ.Data[i], outBIP.Data[i], 1e-12) {
			t.Fatalf("layouts disagree at %d: BSQ %v, BIP %v", i, outBSQ.Data[i], outBIP.Data[i])
		}
	}
}

func TestBulkStatsFloat32Precision(t *testing.T) {
	block := NewStack[float32](4, 1, 1, BSQ)
	copy(block.Data, []float32{1, 2, 3, 4})
	out, err := BulkStats(block, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := out.Data[BandSum]; got != 10 {
		t.Errorf("sum: expected 10, got %v", got)
	}
	if got := out.Data[BandMedian]; got != 2 {
		t.Errorf("median: expected 2, got %v", got)
	}
}

func TestBulkStatsInfNormalisedToNaN(t *testing.T) {
	// float32 product overflow drives the geometric mean to +Inf, which
	// must come back as NaN
	block := NewStack[float32](3, 1, 1, BSQ)
	copy(block.Data, []float32{3e38, 3e38, 3e38})
	out, err := BulkStats(block, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := out.Data[BandGeometricMean]; !math.IsNaN(float64(got)) {
		t.Errorf("geometric mean: expected NaN after overflow, got %v", got)
	}
	if got := out.Data[BandSum]; !math.IsNaN(float64(got)) {
		t.Errorf("sum: expected NaN after overflow, got %v", got)
	}
}

func TestBulkStatsInvalidShape(t *testing.T) {
	bad := &Stack[float64]{Data: make([]float64, 10), Bands: 3, Rows: 2, Cols: 2}
	if _, err := BulkStats(bad, nil); err == nil {
		t.Error("expected an error for inconsistent data length")
	}
	flat := &Stack[float64]{Data: make([]float64, 4), Bands: 0, Rows: 2, Cols: 2}
	if _, err := BulkStats(flat, nil); err == nil {
		t.Error("expected an error for non-3D input")
	}
	if _, err := BulkStats[float64](nil, nil); err == nil {
		t.Error("expected an error for nil input")
	}
}
