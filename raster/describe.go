package raster

import (
	"fmt"
	"time"

	"github.com/airbusgeo/godal"
)

// BandInfo summarises one band of a stacked dataset.
type BandInfo struct {
	Index    int       `json:"index"`
	Name     string    `json:"name,omitempty"`
	Datetime time.Time `json:"datetime,omitempty"`
}

// Info is the crawl-time description of a stacked dataset, the unit of
// ingestion into the dataset catalogue.
type Info struct {
	Path         string     `json:"path"`
	Samples      int        `json:"samples"`
	Lines        int        `json:"lines"`
	Bands        int        `json:"bands"`
	Projection   string     `json:"projection,omitempty"`
	GeoTransform [6]float64 `json:"geotransform"`
	NoData       *float64   `json:"nodata,omitempty"`
	BandInfos    []BandInfo `json:"band_infos"`
}

// Describe extracts the header and per-band metadata of a dataset in a
// single scoped open.
func Describe(path string) (*Info, error) {
	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return nil, fmt.Errorf("raster: could not open dataset %s: %v", path, err)
	}
	defer ds.Close()

	structure := ds.Structure()
	info := &Info{
		Path:       path,
		Samples:    structure.SizeX,
		Lines:      structure.SizeY,
		Bands:      structure.NBands,
		Projection: ds.Projection(),
	}
	if gt, err := ds.GeoTransform(); err == nil {
		info.GeoTransform = gt
	}

	for i, band := range ds.Bands() {
		if i == 0 {
			if nd, ok := band.NoData(); ok {
				info.NoData = &nd
			}
		}
		bi := BandInfo{Index: i + 1}
		md := band.Metadatas()
		if name, ok := md["band_name"]; ok {
			bi.Name = name
		} else if desc := band.Description(); desc != "" {
			bi.Name = desc
		}
		if item, ok := md["start_datetime"]; ok {
			for _, layout := range datetimeLayouts {
				if dt, err := time.Parse(layout, item); err == nil {
					bi.Datetime = dt
					break
				}
			}
		}
		info.BandInfos = append(info.BandInfos, bi)
	}
	return info, nil
}
