package auth

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Provider describes one sign-in button the UI renders: where to send
// the user and which public client identifier to use.
type Provider struct {
	Name        string   `yaml:"name" json:"name"`
	DisplayName string   `yaml:"display_name" json:"display_name"`
	AuthURL     string   `yaml:"auth_url" json:"auth_url,omitempty"`
	ClientID    string   `yaml:"client_id" json:"client_id,omitempty"`
	Scopes      []string `yaml:"scopes" json:"scopes,omitempty"`
	Enabled     bool     `yaml:"enabled" json:"-"`
}

type providerFile struct {
	Providers []Provider `yaml:"providers"`
}

// LoadProviders reads the provider catalog. Disabled entries are
// filtered out so the UI never renders a dead button.
func LoadProviders(path string) ([]Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read provider catalog: %w", err)
	}

	var file providerFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &file); err != nil {
		return nil, fmt.Errorf("parse provider catalog: %w", err)
	}

	enabled := make([]Provider, 0, len(file.Providers))
	for _, p := range file.Providers {
		if p.Enabled {
			enabled = append(enabled, p)
		}
	}
	return enabled, nil
}
