package catalog

import (
	"bytes"
	_ "embed"
)

//go:embed data/strategies.csv
var sampleCSV []byte

// LoadEmbedded parses the built-in sample catalog. It ships with the
// binary so a fresh install works before anyone curates a CSV.
func LoadEmbedded() (*Store, error) {
	return Parse(bytes.NewReader(sampleCSV))
}
