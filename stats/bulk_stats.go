package stats

import (
	"math"
	"sort"
)

// Output plane indices of a bulk statistics stack.
const (
	BandSum = iota
	BandMean
	BandValidCount
	BandVariance
	BandStdDev
	BandSkewness
	BandKurtosis
	BandMax
	BandMin
	BandMedian
	BandMedianIndex
	BandQ1
	BandQ3
	BandGeometricMean

	// NumStats is the depth of a bulk statistics stack.
	NumStats = 14
)

// BandNames holds the long names of the statistic planes, indexed by the
// Band* constants. Output writers use these as raster band descriptions.
var BandNames = [NumStats]string{
	"Sum",
	"Mean",
	"Valid Observations",
	"Variance",
	"Standard Deviation",
	"Skewness",
	"Kurtosis",
	"Max",
	"Min",
	"Median (non-interpolated value)",
	"Median Index (zero based index)",
	"1st Quantile (non-interpolated value)",
	"3rd Quantile (non-interpolated value)",
	"Geometric Mean",
}

// Options configures BulkStats.
type Options struct {
	// NoData, when non-nil, is treated as a missing observation wherever it
	// occurs in the input. NaN samples are always treated as missing.
	NoData *float64
}

// BulkStats reduces a 3D stack along its z axis, producing NumStats planes
// of per-pixel statistics in BSQ order. Missing observations (NaN, or the
// configured no-data value) are excluded from every reduction, so the number
// of valid observations n may differ pixel to pixel.
//
// The moments are unbiased for the variance (divisor n-1) and biased for
// skewness and kurtosis (divisor n, excess kurtosis convention). Residuals
// are computed once per pixel and reused across the three higher moments.
//
// The median and quantiles are non-interpolated: for an odd number of valid
// observations the middle value is taken, for an even number the first of
// the two middle values. The median index plane records the original z
// position the median value came from. The quantile ranks follow the same
// odd/even rule applied to the sub-length below the median:
//
//	q2 = n/2 + n%2 - 1
//	q1 = len/2 + len%2 - 1 with len = q2 + 1
//	q3 = q2 + q1
//
// A pixel with no valid observations yields NaN in every plane except the
// valid count, which is 0. A pixel with a single valid observation yields
// NaN for variance, standard deviation, skewness and kurtosis. Any infinite
// result is normalised to NaN.
func BulkStats[T Float](block *Stack[T], opts *Options) (*Stack[T], error) {
	if err := block.validate(); err != nil {
		return nil, err
	}

	var noData T
	haveNoData := false
	if opts != nil && opts.NoData != nil {
		noData = T(*opts.NoData)
		haveNoData = true
	}

	nan := T(math.NaN())
	bands := block.Bands
	nPix := block.Rows * block.Cols
	out := NewStack[T](NumStats, block.Rows, block.Cols, BSQ)

	// per-pixel scratch, reused across the whole block
	vals := make([]T, bands)   // valid observations of the current pixel
	orig := make([]int, bands) // original z index of each valid observation
	resid := make([]T, bands)  // residuals about the mean
	perm := make([]int, bands) // ascending sort permutation of vals

	for p := 0; p < nPix; p++ {
		base, stride := block.zSpan(p)

		n := 0
		var sum T
		for z := 0; z < bands; z++ {
			v := block.Data[base+z*stride]
			if isNaN(v) || (haveNoData && v == noData) {
				continue
			}
			vals[n] = v
			orig[n] = z
			n++
			sum += v
		}

		if n == 0 {
			for b := 0; b < NumStats; b++ {
				out.Data[b*nPix+p] = nan
			}
			out.Data[BandValidCount*nPix+p] = 0
			continue
		}

		mean := sum / T(n)

		variance, stddev, skew, kurt := nan, nan, nan, nan
		if n > 1 {
			var rss T
			for i := 0; i < n; i++ {
				r := vals[i] - mean
				resid[i] = r
				rss += r * r
			}
			variance = rss / T(n-1)
			stddev = T(math.Sqrt(float64(variance)))

			var skewSum, kurtSum T
			for i := 0; i < n; i++ {
				s := resid[i] / stddev
				s2 := s * s
				if !isNaN(s2) {
					skewSum += s2 * s
					kurtSum += s2 * s2
				}
			}
			skew = skewSum / T(n)
			kurt = kurtSum/T(n) - 3
		}

		maxv, minv := vals[0], vals[0]
		for i := 1; i < n; i++ {
			if vals[i] > maxv {
				maxv = vals[i]
			}
			if vals[i] < minv {
				minv = vals[i]
			}
		}

		// non-interpolated order statistics over the ascending sort of the
		// valid observations; the permutation keeps the original z indices
		// reachable for the median index
		for i := 0; i < n; i++ {
			perm[i] = i
		}
		pm := perm[:n]
		sort.SliceStable(pm, func(i, j int) bool { return vals[pm[i]] < vals[pm[j]] })

		q2 := n/2 + n%2 - 1
		length := q2 + 1
		q1 := length/2 + length%2 - 1
		q3 := q2 + q1

		median := vals[pm[q2]]
		medianIdx := T(orig[pm[q2]])

		// geometric mean: missing observations contribute the multiplicative
		// identity, then the n-th root of the product
		prod := T(1)
		for i := 0; i < n; i++ {
			prod *= vals[i]
		}
		gmean := T(math.Pow(float64(prod), 1/float64(n)))

		out.Data[BandSum*nPix+p] = sum
		out.Data[BandMean*nPix+p] = mean
		out.Data[BandValidCount*nPix+p] = T(n)
		out.Data[BandVariance*nPix+p] = variance
		out.Data[BandStdDev*nPix+p] = stddev
		out.Data[BandSkewness*nPix+p] = skew
		out.Data[BandKurtosis*nPix+p] = kurt
		out.Data[BandMax*nPix+p] = maxv
		out.Data[BandMin*nPix+p] = minv
		out.Data[BandMedian*nPix+p] = median
		out.Data[BandMedianIndex*nPix+p] = medianIdx
		out.Data[BandQ1*nPix+p] = vals[pm[q1]]
		out.Data[BandQ3*nPix+p] = vals[pm[q3]]
		out.Data[BandGeometricMean*nPix+p] = gmean
	}

	// normalise infinities for consistency across planes
	for i, v := range out.Data {
		if isInf(v) {
			out.Data[i] = nan
		}
	}

	return out, nil
}
