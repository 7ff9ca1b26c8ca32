package vector

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/airbusgeo/godal"
)

func init() {
	godal.RegisterAll()
}

// three unit cells along the x axis, named a, b, c
const baseJSON = `{"type":"FeatureCollection","features":[
	{"type":"Feature","properties":{"name":"a"},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
	{"type":"Feature","properties":{"name":"b"},"geometry":{"type":"Polygon","coordinates":[[[2,0],[3,0],[3,1],[2,1],[2,0]]]}},
	{"type":"Feature","properties":{"name":"c"},"geometry":{"type":"Polygon","coordinates":[[[4,0],[5,0],[5,1],[4,1],[4,0]]]}}
]}`

// a point inside cell a and a point inside cell c
const inputJSON = `{"type":"FeatureCollection","features":[
	{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[0.5,0.5]}},
	{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[4.5,0.5]}}
]}`

func writeLayer(t *testing.T, dir, name, doc string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := ioutil.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func selectedNames(t *testing.T, basePath, inputPath string, opts *Options) map[string]bool {
	t.Helper()
	feats, err := IntersectingFeatures(basePath, inputPath, opts)
	if err != nil {
		t.Fatal(err)
	}
	names := make(map[string]bool)
	for _, row := range AttributeTable(feats) {
		names[row["name"].(string)] = true
	}
	return names
}

func TestIntersectingFeatures(t *testing.T) {
	dir := t.TempDir()
	base := writeLayer(t, dir, "base.geojson", baseJSON)
	input := writeLayer(t, dir, "input.geojson", inputJSON)

	names := selectedNames(t, base, input, nil)
	if len(names) != 2 || !names["a"] || !names["c"] {
		t.Errorf("exact selection: %v", names)
	}
}

func TestIntersectingFeaturesEnvelope(t *testing.T) {
	dir := t.TempDir()
	base := writeLayer(t, dir, "base.geojson", baseJSON)
	input := writeLayer(t, dir, "input.geojson", inputJSON)

	// the envelope of the two points spans x in [0.5, 4.5] which also
	// covers cell b
	names := selectedNames(t, base, input, &Options{Envelope: true})
	if len(names) != 3 {
		t.Errorf("envelope selection: %v", names)
	}

	// repeated runs over the same layers stay stable
	for i := 0; i < 3; i++ {
		again := selectedNames(t, base, input, &Options{Envelope: true})
		if len(again) != 3 {
			t.Errorf("envelope selection on run %d: %v", i+2, again)
		}
	}
}

func TestLoadFeatureCollectionErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadFeatureCollection(filepath.Join(dir, "missing.geojson")); err == nil {
		t.Error("expected an error for a missing file")
	}

	empty := writeLayer(t, dir, "empty.geojson", `{"type":"FeatureCollection","features":[]}`)
	if _, err := LoadFeatureCollection(empty); err == nil {
		t.Error("expected an error for an empty collection")
	}

	bad := writeLayer(t, dir, "bad.geojson", `{not geojson`)
	if _, err := LoadFeatureCollection(bad); err == nil {
		t.Error("expected an error for malformed GeoJSON")
	}
}
