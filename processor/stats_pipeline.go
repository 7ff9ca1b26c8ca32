// Package processor drives the tiled z-axis statistics computation: a tile
// partition is fanned out to a bounded pool of compute goroutines and the
// resulting statistics blocks are funnelled through a single writer, so the
// physical writes to the output raster are serialised.
package processor

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/airbusgeo/godal"

	"github.com/nci/eotools/pixelquality"
	"github.com/nci/eotools/raster"
	"github.com/nci/eotools/stats"
	"github.com/nci/eotools/tiling"
)

// ZAxisStatsOptions configures a statistics run. The zero value computes
// single precision statistics over all bands, sequentially, with the
// dataset's default tiling.
type ZAxisStatsOptions struct {
	// Bands restricts the reduction to a subset of 1-based band indices,
	// sequential or not. Nil reduces over all bands.
	Bands []int
	// XTile and YTile set the tile size; zero values default to the full
	// dataset width and 10 lines.
	XTile, YTile int
	// Concurrency is the number of tiles in flight. The default 1 is the
	// reference sequential behaviour.
	Concurrency int
	// Double computes and stores the statistics in float64.
	Double bool
	// NoData overrides the no-data value recorded in the dataset.
	NoData *float64
	// PQPath names an optional pixel quality dataset aligned with the
	// input; observations failing the selected quality tests become
	// missing before the reduction. A single band PQ dataset masks every
	// observation; otherwise PQ bands must align one to one with the
	// input bands.
	PQPath  string
	PQFlags []pixelquality.Flag

	Driver         string
	CreationOption []string
	Verbose        bool
}

type tileResult[T stats.Float] struct {
	tile  tiling.Tile
	block *stats.Stack[T]
}

// ZAxisStats reduces a stacked dataset along its band (z) axis and writes
// the 14 statistic planes to outPath. The run is all or nothing: the first
// tile that fails to read, compute or write aborts the whole run. On
// success the freshly written output is reopened and returned.
func ZAxisStats(ctx context.Context, sd *raster.StackedDataset, outPath string, opts *ZAxisStatsOptions) (*raster.StackedDataset, error) {
	if opts == nil {
		opts = &ZAxisStatsOptions{}
	}
	if opts.Double {
		return zAxisStats[float64](ctx, sd, outPath, opts)
	}
	return zAxisStats[float32](ctx, sd, outPath, opts)
}

func zAxisStats[T stats.Float](ctx context.Context, sd *raster.StackedDataset, outPath string, opts *ZAxisStatsOptions) (*raster.StackedDataset, error) {
	bands := opts.Bands
	if bands == nil {
		bands = make([]int, sd.Bands)
		for i := range bands {
			bands[i] = i + 1
		}
	}

	xtile, ytile := opts.XTile, opts.YTile
	if xtile <= 0 {
		xtile = sd.Cols
	}
	if ytile <= 0 {
		ytile = 10
	}
	tiles, err := tiling.GenerateTiles(sd.Cols, sd.Rows, xtile, ytile)
	if err != nil {
		return nil, err
	}

	noData := sd.NoData
	if opts.NoData != nil {
		noData = opts.NoData
	}

	var pq *raster.StackedDataset
	if opts.PQPath != "" {
		pq, err = raster.OpenStacked(opts.PQPath)
		if err != nil {
			return nil, err
		}
		if pq.Rows != sd.Rows || pq.Cols != sd.Cols {
			return nil, fmt.Errorf("processor: PQ dataset %s extent %dx%d does not match input %dx%d",
				opts.PQPath, pq.Cols, pq.Rows, sd.Cols, sd.Rows)
		}
		if pq.Bands != 1 && pq.Bands != sd.Bands {
			return nil, fmt.Errorf("processor: PQ dataset %s has %d bands, input has %d",
				opts.PQPath, pq.Bands, sd.Bands)
		}
	}

	var zero T
	dtype := godal.Float32
	if _, double := any(zero).(float64); double {
		dtype = godal.Float64
	}
	nan := math.NaN()
	out, err := raster.NewTiledOutput(outPath, &raster.TiledOutputOptions{
		Samples:        sd.Cols,
		Lines:          sd.Rows,
		Bands:          stats.NumStats,
		Driver:         opts.Driver,
		DataType:       dtype,
		GeoTransform:   &sd.GeoTransform,
		Projection:     sd.Projection,
		NoData:         &nan,
		BandNames:      stats.BandNames[:],
		CreationOption: opts.CreationOption,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	errChan := make(chan error, len(tiles))
	results := make(chan *tileResult[T], opts.Concurrency+1)
	limiter := NewConcLimiter(opts.Concurrency)

	go func() {
		defer func() {
			limiter.Wait()
			close(results)
		}()
		for _, t := range tiles {
			if ctx.Err() != nil {
				return
			}
			limiter.Increase()
			go func(t tiling.Tile) {
				defer limiter.Decrease()
				block, err := computeTile[T](sd, pq, t, bands, noData, opts)
				if err != nil {
					errChan <- err
					cancel()
					return
				}
				select {
				case results <- &tileResult[T]{tile: t, block: block}:
				case <-ctx.Done():
				}
			}(t)
		}
	}()

	written := 0
	for res := range results {
		if err := raster.WriteTile(out, res.block, res.tile); err != nil {
			errChan <- err
			cancel()
			for range results {
			}
			break
		}
		written++
		if opts.Verbose {
			log.Printf("z-axis stats: wrote tile %d/%d rows %d:%d cols %d:%d",
				written, len(tiles), res.tile.YStart, res.tile.YEnd, res.tile.XStart, res.tile.XEnd)
		}
	}

	closeErr := out.Close()

	select {
	case err := <-errChan:
		return nil, err
	default:
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("processor: z-axis stats cancelled: %v", err)
	}
	if closeErr != nil {
		return nil, closeErr
	}
	if written != len(tiles) {
		return nil, fmt.Errorf("processor: wrote %d of %d tiles", written, len(tiles))
	}
	if opts.Verbose {
		log.Println("Z-axis stats time", time.Since(start))
	}

	return raster.OpenStacked(outPath)
}

func computeTile[T stats.Float](sd, pq *raster.StackedDataset, t tiling.Tile, bands []int, noData *float64, opts *ZAxisStatsOptions) (*stats.Stack[T], error) {
	block, err := raster.ReadStackTile[T](sd, t, bands)
	if err != nil {
		return nil, err
	}
	if pq != nil {
		if err := maskWithPQ(block, pq, t, bands, opts.PQFlags); err != nil {
			return nil, err
		}
	}
	return stats.BulkStats(block, &stats.Options{NoData: noData})
}

// maskWithPQ turns observations that fail the selected pixel quality tests
// into missing values before the reduction.
func maskWithPQ[T stats.Float](block *stats.Stack[T], pq *raster.StackedDataset, t tiling.Tile, bands []int, flags []pixelquality.Flag) error {
	pqBands := bands
	if pq.Bands == 1 {
		pqBands = []int{1}
	}
	planes, err := pq.ReadTileUint16(t, pqBands)
	if err != nil {
		return err
	}

	pqOpts := &pixelquality.Options{Flags: flags, CheckZero: true}
	nan := T(math.NaN())
	for z := 0; z < block.Bands; z++ {
		plane := planes[0]
		if len(planes) > 1 {
			plane = planes[z]
		}
		mask, err := pixelquality.CombinedMask(plane, pqOpts)
		if err != nil {
			return err
		}
		data := block.Plane(z)
		for j, ok := range mask {
			if !ok {
				data[j] = nan
			}
		}
	}
	return nil
}
