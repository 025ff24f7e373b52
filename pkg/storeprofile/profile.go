// Package storeprofile loads the store description the reply prompt is
// grounded on.
package storeprofile

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Profile struct {
	Name         string `yaml:"name"`
	BaseURL      string `yaml:"base_url"`
	Tagline      string `yaml:"tagline"`
	Shipping     string `yaml:"shipping"`
	Returns      string `yaml:"returns"`
	SupportHours string `yaml:"support_hours"`
	Signature    string `yaml:"signature"`
	Tone         string `yaml:"tone"`
}

// Load reads the YAML profile at path. An empty path yields a profile
// built from the fallbacks alone.
func Load(path, fallbackName, fallbackURL string) (*Profile, error) {
	p := &Profile{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("unable to read store profile: %w", err)
		}
		if err := yaml.Unmarshal(data, p); err != nil {
			return nil, fmt.Errorf("unable to parse store profile: %w", err)
		}
	}
	if p.Name == "" {
		p.Name = fallbackName
	}
	if p.BaseURL == "" {
		p.BaseURL = fallbackURL
	}
	p.BaseURL = strings.TrimRight(p.BaseURL, "/")
	return p, nil
}

// Context renders the profile as the store section of a reply prompt.
func (p *Profile) Context() string {
	var sb strings.Builder
	line := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			fmt.Fprintf(&sb, "%s: %s\n", label, value)
		}
	}
	line("Store", p.Name)
	line("Website", p.BaseURL)
	line("About", p.Tagline)
	line("Shipping", p.Shipping)
	line("Returns", p.Returns)
	line("Support hours", p.SupportHours)
	line("Tone", p.Tone)
	line("Signature", p.Signature)
	return strings.TrimRight(sb.String(), "\n")
}
