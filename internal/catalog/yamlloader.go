package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// MenuFile is the top-level structure of a menu YAML file.
//
// Example:
//
//	drinks:
//	  - name: Mojito
//	    category: cocktail
//	    inventory: 40
//	    price: 9.5
type MenuFile struct {
	Drinks []Drink `yaml:"drinks"`
}

// LoadMenuFile reads a menu YAML file from disk into a [MemStore].
func LoadMenuFile(path string) (*MemStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open menu %q: %w", path, err)
	}
	defer f.Close()

	s, err := LoadMenuFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse menu %q: %w", path, err)
	}
	return s, nil
}

// LoadMenuFromReader parses menu YAML from r, validates it and returns a
// [MemStore] holding its drinks.
func LoadMenuFromReader(r io.Reader) (*MemStore, error) {
	var mf MenuFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&mf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("catalog: decode menu yaml: %w", err)
	}
	if err := Validate(mf.Drinks); err != nil {
		return nil, fmt.Errorf("catalog: invalid menu: %w", err)
	}
	return NewMemStore(mf.Drinks...), nil
}
