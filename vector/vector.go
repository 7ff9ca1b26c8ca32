// Package vector selects features from a base GeoJSON layer by spatial
// intersection with an input layer. Geometry predicates go through GDAL
// so any geometry type GeoJSON can express is handled.
package vector

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"math"

	"github.com/airbusgeo/godal"
	geo "github.com/nci/geometry"
)

// LoadFeatureCollection parses a GeoJSON document from disk.
func LoadFeatureCollection(path string) (*geo.FeatureCollection, error) {
	doc, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %v: %v", path, err)
	}
	var featCol geo.FeatureCollection
	if err := json.Unmarshal(doc, &featCol); err != nil {
		return nil, fmt.Errorf("problem unmarshalling GeoJSON object from %v: %v", path, err)
	}
	if len(featCol.Features) == 0 {
		return nil, fmt.Errorf("%v contains no features", path)
	}
	return &featCol, nil
}

// Options controls feature selection.
type Options struct {
	// Envelope tests against the bounding box of the input layer
	// instead of its exact geometries.
	Envelope bool
}

// IntersectingFeatures returns the features of the base layer that
// intersect any feature of the input layer. opts may be nil.
func IntersectingFeatures(basePath, inputPath string, opts *Options) ([]geo.Feature, error) {
	if opts == nil {
		opts = &Options{}
	}

	base, err := LoadFeatureCollection(basePath)
	if err != nil {
		return nil, err
	}
	input, err := LoadFeatureCollection(inputPath)
	if err != nil {
		return nil, err
	}

	inputGeoms, err := layerGeometries(input)
	if err != nil {
		return nil, err
	}
	if opts.Envelope {
		env, err := envelopeGeometry(inputGeoms)
		closeGeometries(inputGeoms)
		if err != nil {
			return nil, err
		}
		inputGeoms = []*godal.Geometry{env}
	}
	defer closeGeometries(inputGeoms)

	var selected []geo.Feature
	for _, feat := range base.Features {
		g, err := featureGeometry(feat)
		if err != nil {
			return nil, err
		}
		hit := false
		for _, in := range inputGeoms {
			ok, err := g.Intersects(in)
			if err != nil {
				g.Close()
				return nil, fmt.Errorf("intersection test failed: %v", err)
			}
			if ok {
				hit = true
				break
			}
		}
		g.Close()
		if hit {
			selected = append(selected, feat)
		}
	}
	return selected, nil
}

// AttributeTable flattens feature properties into one row per feature.
func AttributeTable(features []geo.Feature) []map[string]interface{} {
	rows := make([]map[string]interface{}, len(features))
	for i, feat := range features {
		rows[i] = feat.Properties
	}
	return rows
}

func featureGeometry(feat geo.Feature) (*godal.Geometry, error) {
	wkt := feat.Geometry.MarshalWKT()
	g, err := godal.NewGeometryFromWKT(wkt, nil)
	if err != nil {
		return nil, fmt.Errorf("parsing geometry '%v': %v", wkt, err)
	}
	return g, nil
}

func layerGeometries(featCol *geo.FeatureCollection) ([]*godal.Geometry, error) {
	geoms := make([]*godal.Geometry, 0, len(featCol.Features))
	for _, feat := range featCol.Features {
		g, err := featureGeometry(feat)
		if err != nil {
			closeGeometries(geoms)
			return nil, err
		}
		geoms = append(geoms, g)
	}
	return geoms, nil
}

func closeGeometries(geoms []*godal.Geometry) {
	for _, g := range geoms {
		g.Close()
	}
}

// envelopeGeometry builds the bounding box polygon of a set of
// geometries.
func envelopeGeometry(geoms []*godal.Geometry) (*godal.Geometry, error) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, g := range geoms {
		bounds, err := g.Bounds()
		if err != nil {
			return nil, fmt.Errorf("computing bounds: %v", err)
		}
		minX = math.Min(minX, bounds[0])
		minY = math.Min(minY, bounds[1])
		maxX = math.Max(maxX, bounds[2])
		maxY = math.Max(maxY, bounds[3])
	}

	wkt := fmt.Sprintf("POLYGON((%v %v,%v %v,%v %v,%v %v,%v %v))",
		minX, minY, maxX, minY, maxX, maxY, minX, maxY, minX, minY)
	env, err := godal.NewGeometryFromWKT(wkt, nil)
	if err != nil {
		return nil, fmt.Errorf("building envelope '%v': %v", wkt, err)
	}
	return env, nil
}
