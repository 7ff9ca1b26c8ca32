// Command ingest scans a directory tree for stacked datasets, reads
// their headers and band metadata, and records them in the catalogue.
// Without a catalogue connection it emits one JSON document per dataset
// on stdout.
package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"strings"
	"time"

	"github.com/airbusgeo/godal"
	goeval "github.com/edisonguo/govaluate"
	_ "github.com/lib/pq"
	"gopkg.in/yaml.v2"

	"github.com/nci/eotools/catalogue"
	"github.com/nci/eotools/raster"
	"github.com/nci/eotools/utils"
)

var (
	rootDir  = flag.String("dir", "", "directory tree to scan")
	pattern  = flag.String("pattern", `\.tif$`, "file name pattern")
	filter   = flag.String("filter", "", "path filter expression, e.g. path =~ 'LS8'")
	confFile = flag.String("conf", "", "JSON config file")
	dsn      = flag.String("dsn", "", "catalogue connection string")
	verbose  = flag.Bool("v", false, "log each dataset as it is ingested")
)

// sidecarBand overrides or supplies metadata for one band.
type sidecarBand struct {
	Index    int    `yaml:"index"`
	Name     string `yaml:"name"`
	Datetime string `yaml:"datetime"`
}

// sidecar is the optional <dataset>.yaml document alongside a dataset.
type sidecar struct {
	NoData *float64      `yaml:"nodata"`
	Bands  []sidecarBand `yaml:"bands"`
}

func parseFilterExpression(text string) (*goeval.EvaluableExpression, error) {
	if len(strings.TrimSpace(text)) == 0 {
		return nil, nil
	}

	expr, err := goeval.NewEvaluableExpression(text)
	if err != nil {
		return nil, err
	}

	validVariables := map[string]struct{}{"path": struct{}{}}
	for _, token := range expr.Tokens() {
		if token.Kind == goeval.VARIABLE {
			varName, ok := token.Value.(string)
			if !ok {
				return nil, fmt.Errorf("variable token '%v' failed to cast string", token.Value)
			}
			if _, found := validVariables[varName]; !found {
				return nil, fmt.Errorf("variable %v is not supported. Valid variables are %v", varName, validVariables)
			}
		}
	}
	return expr, nil
}

func matchesFilter(expr *goeval.EvaluableExpression, path string) (bool, error) {
	if expr == nil {
		return true, nil
	}
	result, err := expr.Evaluate(map[string]interface{}{"path": path})
	if err != nil {
		return false, fmt.Errorf("evaluating filter for %v: %v", path, err)
	}
	keep, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("filter expression did not evaluate to a boolean for %v", path)
	}
	return keep, nil
}

// applySidecar merges the optional YAML sidecar into the dataset header.
func applySidecar(info *raster.Info) error {
	doc, err := ioutil.ReadFile(info.Path + ".yaml")
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var sc sidecar
	if err := yaml.Unmarshal(doc, &sc); err != nil {
		return fmt.Errorf("parsing sidecar for %v: %v", info.Path, err)
	}

	if sc.NoData != nil {
		info.NoData = sc.NoData
	}
	for _, b := range sc.Bands {
		if b.Index < 1 || b.Index > len(info.BandInfos) {
			return fmt.Errorf("sidecar for %v names band %d which is out of range", info.Path, b.Index)
		}
		bi := &info.BandInfos[b.Index-1]
		if b.Name != "" {
			bi.Name = b.Name
		}
		if b.Datetime != "" {
			dt, err := time.Parse(time.RFC3339, b.Datetime)
			if err != nil {
				return fmt.Errorf("sidecar for %v band %d: %v", info.Path, b.Index, err)
			}
			bi.Datetime = dt
		}
	}
	return nil
}

func main() {
	flag.Parse()
	if *rootDir == "" {
		flag.Usage()
		os.Exit(2)
	}

	godal.RegisterAll()

	if *confFile != "" {
		var config utils.Config
		if err := config.LoadConfigFile(*confFile); err != nil {
			log.Fatal(err)
		}
		if *dsn == "" {
			*dsn = config.CatalogueDSN
		}
	}

	expr, err := parseFilterExpression(*filter)
	if err != nil {
		log.Fatalf("parsing -filter: %v", err)
	}

	files, err := utils.FindFiles(*rootDir, *pattern, false)
	if err != nil {
		log.Fatal(err)
	}

	var db *sql.DB
	if *dsn != "" {
		db, err = sql.Open("postgres", *dsn)
		if err != nil {
			log.Fatal(err)
		}
		defer db.Close()
		if err := catalogue.EnsureSchema(db); err != nil {
			log.Fatal(err)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	ingested := 0
	for _, path := range files {
		keep, err := matchesFilter(expr, path)
		if err != nil {
			log.Fatal(err)
		}
		if !keep {
			continue
		}

		info, err := raster.Describe(path)
		if err != nil {
			log.Printf("skipping %v: %v", path, err)
			continue
		}
		if err := applySidecar(info); err != nil {
			log.Printf("skipping %v: %v", path, err)
			continue
		}

		if db != nil {
			if err := catalogue.Ingest(db, info); err != nil {
				log.Fatal(err)
			}
		} else if err := enc.Encode(info); err != nil {
			log.Fatal(err)
		}

		if *verbose {
			log.Printf("ingested %v: %d bands", path, info.Bands)
		}
		ingested++
	}

	log.Printf("ingested %d of %d candidate files", ingested, len(files))
}
