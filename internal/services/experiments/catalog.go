package experiments

import (
	"fmt"
	"os"

	"github.com/findosh/agriconnect/internal/models"
	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk layout of an experiment catalog
type catalogFile struct {
	Experiments []models.Experiment `yaml:"experiments"`
}

// ParseCatalog decodes a YAML experiment catalog
func ParseCatalog(data []byte) ([]models.Experiment, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return file.Experiments, nil
}

// LoadCatalog reads experiments from path and registers them with AddTest.
// It stops at the first invalid experiment.
func (s *Service) LoadCatalog(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read catalog: %w", err)
	}
	exps, err := ParseCatalog(data)
	if err != nil {
		return 0, err
	}
	for i, exp := range exps {
		if err := s.AddTest(exp); err != nil {
			return i, err
		}
	}
	return len(exps), nil
}
