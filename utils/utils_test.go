package utils

import (
	"bytes"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestLoadConfigFile(t *testing.T) {
	doc := `{
		"x_tile": 400,
		"y_tile": 300,
		"concurrency": 8,
		"creation_options": ["COMPRESS=DEFLATE"],
		"catalogue_dsn": "user=eotools dbname=catalogue sslmode=disable"
	}`
	path := filepath.Join(t.TempDir(), "config.json")
	if err := ioutil.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	var config Config
	if err := config.LoadConfigFile(path); err != nil {
		t.Fatal(err)
	}
	if config.XTile != 400 || config.YTile != 300 || config.Concurrency != 8 {
		t.Errorf("tiling settings: %+v", config)
	}
	if config.Driver != DefaultDriver {
		t.Errorf("driver default not applied: %q", config.Driver)
	}
	if !reflect.DeepEqual(config.CreationOptions, []string{"COMPRESS=DEFLATE"}) {
		t.Errorf("creation options: %v", config.CreationOptions)
	}
}

func TestLoadConfigFileDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := ioutil.WriteFile(path, []byte(`{}`), 0644); err != nil {
		t.Fatal(err)
	}
	var config Config
	if err := config.LoadConfigFile(path); err != nil {
		t.Fatal(err)
	}
	if config.YTile != DefaultYTile || config.Concurrency != DefaultConcurrency || config.Driver != DefaultDriver {
		t.Errorf("defaults not applied: %+v", config)
	}
}

func TestLoadConfigFileErrors(t *testing.T) {
	var config Config
	if err := config.LoadConfigFile("/no/such/config.json"); err == nil {
		t.Error("expected an error for a missing file")
	}

	path := filepath.Join(t.TempDir(), "config.json")
	if err := ioutil.WriteFile(path, []byte(`{not json`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := config.LoadConfigFile(path); err == nil {
		t.Error("expected an error for malformed JSON")
	}
}

func TestFindFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"scene1.tif", "scene2.TIF", "notes.txt", "sub/scene3.tif"} {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := ioutil.WriteFile(path, nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := FindFiles(dir, `\.tif$`, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Errorf("case sensitive match: %v", files)
	}

	files, err = FindFiles(dir, `\.tif$`, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 3 {
		t.Errorf("case insensitive match: %v", files)
	}
	if !sortedStrings(files) {
		t.Errorf("results not sorted: %v", files)
	}

	if _, err := FindFiles(dir, `(`, true); err == nil {
		t.Error("expected an error for a malformed pattern")
	}
}

func sortedStrings(s []string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] < s[i-1] {
			return false
		}
	}
	return true
}

func TestLogMultiline(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	LogMultiline(logger, "first\nsecond\n")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %q", len(lines), buf.String())
	}
	banner := strings.Repeat("=", 80)
	if lines[0] != banner || lines[3] != banner {
		t.Errorf("banner lines missing: %q", buf.String())
	}
	if lines[1] != "first" || lines[2] != "second" {
		t.Errorf("body lines: %v", lines[1:3])
	}
}
