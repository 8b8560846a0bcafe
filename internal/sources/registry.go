package sources

import (
	"embed"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed config/sources.yaml
var sourcesYAML embed.FS

// Registry holds the configuration for all data sources.
type Registry struct {
	Sources []SourceConfig `yaml:"sources"`
}

// SourceConfig defines a single data source.
type SourceConfig struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Enabled bool     `yaml:"enabled"`
	BaseURL string   `yaml:"base_url,omitempty"`
	APIKey  string   `yaml:"api_key,omitempty"`
	Seeds   []string `yaml:"seed_urls,omitempty"`
}

// LoadRegistry reads the embedded sources.yaml, or the file at path when one
// is given. Environment variables inside the YAML
// (e.g. ${BIDFINDER_SAM_API_KEY}) are expanded.
func LoadRegistry(path string) (*Registry, error) {
	var data []byte
	var err error
	if path != "" {
		data, err = os.ReadFile(path)
	} else {
		data, err = sourcesYAML.ReadFile("config/sources.yaml")
	}
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

// BuildProviders assembles the enabled opportunity providers from the
// registry. samKey and samDelay come from application config and override
// the registry when set.
func (r *Registry) BuildProviders(samKey string, samDelay time.Duration, log *zap.Logger) []Provider {
	var providers []Provider
	for _, src := range r.Sources {
		if !src.Enabled {
			continue
		}
		switch src.ID {
		case SourceSAM:
			key := samKey
			if key == "" {
				key = src.APIKey
			}
			p := NewSAMProvider(key, samDelay, log)
			if src.BaseURL != "" {
				p.BaseURL = src.BaseURL
			}
			providers = append(providers, p)
		case SourceDCOCP:
			p := NewDCOCPProvider(log)
			if src.BaseURL != "" {
				p.ListingURL = src.BaseURL
			}
			providers = append(providers, p)
		case SourceDCIndependent:
			providers = append(providers, NewDCIndependentProvider(src.Seeds, log))
		case SourceForecast:
			providers = append(providers, NewForecastProvider(src.BaseURL, log))
		}
	}
	return providers
}
