package main

import (
	"encoding/json"
	"os"
)

// Config is the JSON config surface for ibltcli: a plain struct decoded
// with encoding/json. The JSON file is applied after the CLI flags, so any
// field it sets overrides the corresponding flag.
type Config struct {
	HashCount int    `json:"hashcount"`
	Cells     int    `json:"cells"`
	Prime     bool   `json:"prime"`
	Key       string `json:"key"`
	File      string `json:"file"`
}

func defaultConfig() Config {
	return Config{HashCount: 4, Cells: 1000, Prime: true}
}

func parseJSONConfig(config *Config, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(config)
}
