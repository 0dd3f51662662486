package storage

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/denisok6893-rgb/neighborfit/internal/domain"
)

//go:embed data/neighborhoods.yaml
var defaultCatalogYAML []byte

type catalogDocument struct {
	Neighborhoods []domain.NeighborhoodCandidate `yaml:"neighborhoods"`
}

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() ([]domain.NeighborhoodCandidate, error) {
	return ParseCatalog(defaultCatalogYAML)
}

// LoadCatalogFromFile reads a catalog document in the same YAML shape as the embedded one.
func LoadCatalogFromFile(path string) ([]domain.NeighborhoodCandidate, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return ParseCatalog(b)
}

// ParseCatalog decodes and checks a catalog document. An empty list is valid.
func ParseCatalog(b []byte) ([]domain.NeighborhoodCandidate, error) {
	var doc catalogDocument
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal catalog: %w", err)
	}
	if err := validateCatalog(doc.Neighborhoods); err != nil {
		return nil, err
	}
	if doc.Neighborhoods == nil {
		doc.Neighborhoods = []domain.NeighborhoodCandidate{}
	}
	return doc.Neighborhoods, nil
}

func validateCatalog(items []domain.NeighborhoodCandidate) error {
	seen := make(map[string]struct{}, len(items))
	for i, n := range items {
		if n.ID == "" || n.Name == "" {
			return fmt.Errorf("catalog entry %d: id and name are required", i)
		}
		if _, dup := seen[n.ID]; dup {
			return fmt.Errorf("catalog entry %d: duplicate id %q", i, n.ID)
		}
		seen[n.ID] = struct{}{}

		for _, c := range domain.Categories {
			if v := n.BaseScores.Get(c); v < 0 || v > 100 {
				return fmt.Errorf("catalog entry %q: %s score %d outside 0..100", n.ID, c, v)
			}
		}
	}
	return nil
}
