package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/NikolaosSamperis/PlaqueMS-project/application/ports"
	"github.com/NikolaosSamperis/PlaqueMS-project/pkg/utils"
)

// paramsFile is the YAML layout of CONFIG_FILE.
type paramsFile struct {
	Clustering ports.ClusteringParams `yaml:"clustering"`
}

// LoadClusteringParams reads clustering parameters from a YAML file. Keys
// missing from the file keep their defaults.
func LoadClusteringParams(path string) (ports.ClusteringParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ports.ClusteringParams{}, fmt.Errorf("read config file: %w", err)
	}
	return ParseClusteringParams(data)
}

// ParseClusteringParams decodes and validates a YAML document. Unknown keys
// are rejected so that a typo does not silently fall back to a default.
func ParseClusteringParams(data []byte) (ports.ClusteringParams, error) {
	file := paramsFile{Clustering: ports.DefaultClusteringParams()}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return ports.ClusteringParams{}, fmt.Errorf("parse config file: %w", err)
	}
	if err := utils.ValidateStruct(file.Clustering); err != nil {
		return ports.ClusteringParams{}, fmt.Errorf("invalid clustering parameters: %w", err)
	}
	return file.Clustering, nil
}

// ParamsStore holds the current clustering parameters. Readers take a
// snapshot per cycle; Store swaps in a new set atomically.
type ParamsStore struct {
	current atomic.Pointer[ports.ClusteringParams]
}

// NewParamsStore creates a store holding initial.
func NewParamsStore(initial ports.ClusteringParams) *ParamsStore {
	s := &ParamsStore{}
	s.Store(initial)
	return s
}

// Current implements ports.ClusteringParamsSource.
func (s *ParamsStore) Current() ports.ClusteringParams {
	return *s.current.Load()
}

// Store replaces the current parameters.
func (s *ParamsStore) Store(p ports.ClusteringParams) {
	s.current.Store(&p)
}

var _ ports.ClusteringParamsSource = (*ParamsStore)(nil)
