// Package catalog loads the declarative model table: identity, pricing,
// context limits, and provider routing hints for every model revgate
// knows how to call. It is loaded once at process start and treated as an
// immutable, concurrency-safe singleton thereafter.
package catalog

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/tsanders/revgate/pkg/review"
)

//go:embed models.yaml
var defaultCatalogYAML []byte

// Pricing holds the per-million-token rates for a model.
type Pricing struct {
	InputPerMillion  float64 `yaml:"input" validate:"gte=0"`
	OutputPerMillion float64 `yaml:"output" validate:"gte=0"`
	Description      string  `yaml:"description"`
}

// ModelInfo is the identity of a single catalog entry.
type ModelInfo struct {
	FullName      string                 `yaml:"full_name" validate:"required"`
	Aliases       []string               `yaml:"aliases"`
	ProviderName  review.Provider        `yaml:"provider" validate:"required,oneof=openai anthropic google openrouter"`
	Params        map[string]interface{} `yaml:"params"`
	ThinkingMode  bool                   `yaml:"thinking_mode"`
	Pricing       Pricing                `yaml:"pricing" validate:"required"`
	ContextLimit  int                    `yaml:"context_limit" validate:"required,gt=0"`
	OpenRouterName string                `yaml:"openrouter_name"`
}

// UnsupportedModelError is returned by Get when a name resolves to nothing.
type UnsupportedModelError struct {
	Name string
}

func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("unsupported model: %q", e.Name)
}

// Catalog is an immutable, concurrency-safe lookup table of ModelInfo,
// indexed by full_name and every alias.
type Catalog struct {
	byName map[string]*ModelInfo
	all    []*ModelInfo
}

type rawCatalog struct {
	Models []ModelInfo `yaml:"models"`
}

// Load parses and validates a catalog from raw YAML bytes. An invalid
// catalog is fatal: every entry must carry full_name, a provider drawn
// from the closed set, pricing, and a positive context_limit.
func Load(data []byte) (*Catalog, error) {
	var raw rawCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("catalog: invalid YAML: %w", err)
	}

	validate := validator.New()
	byName := make(map[string]*ModelInfo, len(raw.Models)*2)
	all := make([]*ModelInfo, 0, len(raw.Models))

	for i := range raw.Models {
		m := &raw.Models[i]
		if err := validate.Struct(m); err != nil {
			return nil, fmt.Errorf("catalog: invalid entry %q: %w", m.FullName, err)
		}
		if m.ProviderName == review.ProviderOpenRouter && m.OpenRouterName == "" {
			return nil, fmt.Errorf("catalog: entry %q routes natively through openrouter but has no openrouter_name", m.FullName)
		}
		if _, exists := byName[m.FullName]; exists {
			return nil, fmt.Errorf("catalog: duplicate full_name %q", m.FullName)
		}
		byName[m.FullName] = m
		for _, alias := range m.Aliases {
			if _, exists := byName[alias]; exists {
				return nil, fmt.Errorf("catalog: alias %q collides with an existing name", alias)
			}
			byName[alias] = m
		}
		all = append(all, m)
	}

	return &Catalog{byName: byName, all: all}, nil
}

// LoadDefault loads the catalog embedded in the binary.
func LoadDefault() (*Catalog, error) {
	return Load(defaultCatalogYAML)
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the process-wide singleton built from the embedded
// catalog, loading it exactly once.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = LoadDefault()
	})
	return defaultCat, defaultErr
}

// Get resolves a model by full_name first, then by alias.
func (c *Catalog) Get(name string) (*ModelInfo, error) {
	if m, ok := c.byName[name]; ok {
		return m, nil
	}
	return nil, &UnsupportedModelError{Name: name}
}

// SupportedNames returns every full_name the catalog knows (aliases
// excluded).
func (c *Catalog) SupportedNames() []string {
	names := make([]string, 0, len(c.all))
	for _, m := range c.all {
		names = append(names, m.FullName)
	}
	return names
}

// Pricing is a typed accessor over Get.
func (c *Catalog) Pricing(name string) (Pricing, error) {
	m, err := c.Get(name)
	if err != nil {
		return Pricing{}, err
	}
	return m.Pricing, nil
}

// ContextLimit is a typed accessor over Get.
func (c *Catalog) ContextLimit(name string) (int, error) {
	m, err := c.Get(name)
	if err != nil {
		return 0, err
	}
	return m.ContextLimit, nil
}

// ProviderFor is a typed accessor over Get.
func (c *Catalog) ProviderFor(name string) (review.Provider, error) {
	m, err := c.Get(name)
	if err != nil {
		return "", err
	}
	return m.ProviderName, nil
}

// Params is a typed accessor over Get.
func (c *Catalog) Params(name string) (map[string]interface{}, error) {
	m, err := c.Get(name)
	if err != nil {
		return nil, err
	}
	return m.Params, nil
}
