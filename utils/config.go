package utils

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
)

const (
	DefaultYTile       = 100
	DefaultConcurrency = 1
	DefaultDriver      = "GTiff"
)

// Config holds the processing settings shared by the command line
// tools. Zero values are filled with defaults at load time.
type Config struct {
	XTile           int      `json:"x_tile"`
	YTile           int      `json:"y_tile"`
	Concurrency     int      `json:"concurrency"`
	Driver          string   `json:"driver"`
	CreationOptions []string `json:"creation_options"`
	CatalogueDSN    string   `json:"catalogue_dsn"`
	MemcacheURI     string   `json:"memcache_uri"`
}

// LoadConfigFile unmarshalls the config document returning an instance
// of a Config variable containing all the values
func (config *Config) LoadConfigFile(configFile string) error {
	*config = Config{}
	cfg, err := ioutil.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("Error while reading config file: %s. Error: %v", configFile, err)
	}

	err = json.Unmarshal(cfg, config)
	if err != nil {
		return fmt.Errorf("Error at JSON parsing config document: %s. Error: %v", configFile, err)
	}

	if config.YTile <= 0 {
		config.YTile = DefaultYTile
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}
	if len(config.Driver) == 0 {
		config.Driver = DefaultDriver
	}
	return nil
}
