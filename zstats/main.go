// Command zstats computes per pixel statistics along the band axis of a
// stacked dataset and writes them to a new tiled raster.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/airbusgeo/godal"
	_ "github.com/lib/pq"
	"golang.org/x/net/context"

	"github.com/nci/eotools/catalogue"
	"github.com/nci/eotools/pixelquality"
	"github.com/nci/eotools/processor"
	"github.com/nci/eotools/raster"
	"github.com/nci/eotools/utils"
)

var (
	inPath    = flag.String("i", "", "input stacked dataset")
	outPath   = flag.String("o", "", "output statistics dataset")
	xTile     = flag.Int("xtile", 0, "tile width in pixels, 0 for full rows")
	yTile     = flag.Int("ytile", 0, "tile height in pixels")
	bandList  = flag.String("bands", "", "comma separated 1-based band subset")
	double    = flag.Bool("double", false, "compute in float64")
	conc      = flag.Int("conc", 0, "concurrent tile workers")
	noData    = flag.String("nodata", "", "override the input no-data value")
	pqPath    = flag.String("pq", "", "pixel quality dataset")
	pqFlags   = flag.String("pqflags", "", "comma separated pixel quality tests, e.g. ACCA,Fmask")
	confFile  = flag.String("conf", "", "JSON config file")
	dsn       = flag.String("catalogue", "", "catalogue connection string")
	mcURI     = flag.String("memcache", "", "memcache uri host:port")
	sinceStr  = flag.String("since", "", "earliest band datetime, RFC3339")
	untilStr  = flag.String("until", "", "latest band datetime, RFC3339")
	verbose   = flag.Bool("v", false, "log each tile as it completes")
)

func parseBands(s string) ([]int, error) {
	if len(strings.TrimSpace(s)) == 0 {
		return nil, nil
	}
	var bands []int
	for _, part := range strings.Split(s, ",") {
		b, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("parsing band list '%v': %v", s, err)
		}
		bands = append(bands, b)
	}
	return bands, nil
}

func parsePQFlags(s string) ([]pixelquality.Flag, error) {
	if len(strings.TrimSpace(s)) == 0 {
		return nil, nil
	}
	byName := make(map[string]pixelquality.Flag)
	for _, f := range pixelquality.AllFlags() {
		byName[strings.ToLower(f.String())] = f
	}
	var flags []pixelquality.Flag
	for _, part := range strings.Split(s, ",") {
		f, ok := byName[strings.ToLower(strings.TrimSpace(part))]
		if !ok {
			return nil, fmt.Errorf("unknown pixel quality test '%v'", part)
		}
		flags = append(flags, f)
	}
	return flags, nil
}

func parseTime(s string) (time.Time, error) {
	if len(s) == 0 {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

// catalogueBands resolves the band subset for a time window from the
// catalogue instead of reopening the dataset.
func catalogueBands(path string, since, until time.Time) ([]int, error) {
	client, err := catalogue.NewClient(*dsn, *mcURI)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	infos, err := client.LookupBands(path, since, until)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("catalogue has no bands for %v in the requested window", path)
	}
	bands := make([]int, len(infos))
	for i, b := range infos {
		bands[i] = b.Index
	}
	return bands, nil
}

func main() {
	flag.Parse()
	if *inPath == "" || *outPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	godal.RegisterAll()

	var config utils.Config
	if *confFile != "" {
		if err := config.LoadConfigFile(*confFile); err != nil {
			log.Fatal(err)
		}
	}
	if *xTile == 0 {
		*xTile = config.XTile
	}
	if *yTile == 0 {
		*yTile = config.YTile
	}
	if *conc == 0 {
		*conc = config.Concurrency
	}
	if *dsn == "" {
		*dsn = config.CatalogueDSN
	}
	if *mcURI == "" {
		*mcURI = config.MemcacheURI
	}

	bands, err := parseBands(*bandList)
	if err != nil {
		log.Fatal(err)
	}
	flags, err := parsePQFlags(*pqFlags)
	if err != nil {
		log.Fatal(err)
	}

	since, err := parseTime(*sinceStr)
	if err != nil {
		log.Fatalf("parsing -since: %v", err)
	}
	until, err := parseTime(*untilStr)
	if err != nil {
		log.Fatalf("parsing -until: %v", err)
	}

	if (!since.IsZero() || !until.IsZero()) && bands == nil {
		if *dsn == "" {
			log.Fatal("-since/-until need a -catalogue connection or an explicit -bands list")
		}
		bands, err = catalogueBands(*inPath, since, until)
		if err != nil {
			log.Fatal(err)
		}
	}

	opts := &processor.ZAxisStatsOptions{
		Bands:          bands,
		XTile:          *xTile,
		YTile:          *yTile,
		Concurrency:    *conc,
		Double:         *double,
		PQPath:         *pqPath,
		PQFlags:        flags,
		Driver:         config.Driver,
		CreationOption: config.CreationOptions,
		Verbose:        *verbose,
	}
	if *noData != "" {
		nd, err := strconv.ParseFloat(*noData, 64)
		if err != nil {
			log.Fatalf("parsing -nodata: %v", err)
		}
		opts.NoData = &nd
	}

	sd, err := raster.OpenStacked(*inPath)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("input %s: %d bands, %d lines, %d samples", sd.Path, sd.Bands, sd.Rows, sd.Cols)

	out, err := processor.ZAxisStats(context.Background(), sd, *outPath, opts)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %s: %d bands, %d lines, %d samples", out.Path, out.Bands, out.Rows, out.Cols)
}
