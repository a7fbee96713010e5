package models

import "strings"

// Capability names a kind of data a provider can serve.
type Capability string

const (
	CapabilityQuote Capability = "quote"
	CapabilityIntel Capability = "intel"
)

// ProviderConfig describes one external data provider. It is loaded once at
// startup and never mutated afterwards.
type ProviderConfig struct {
	Name               string       `yaml:"name" validate:"required"`
	Kind               string       `yaml:"kind"` // adapter; defaults to Name
	BaseURL            string       `yaml:"base_url" validate:"required,url"`
	Capabilities       []Capability `yaml:"capabilities" validate:"required,min=1"`
	Priority           int          `yaml:"priority"` // higher is tried first
	Burst              int          `yaml:"burst" default:"1" validate:"gte=1"`
	CallsPerMinute     int          `yaml:"calls_per_minute" validate:"gte=1"`
	CallsPerDay        int          `yaml:"calls_per_day" validate:"gte=0"`
	CallsPerMonth      int          `yaml:"calls_per_month" validate:"gte=0"`
	RequiresCredential bool         `yaml:"requires_credential"`
	// APIKey is filled from the environment (<NAME>_API_KEY), never from YAML.
	APIKey string `yaml:"-"`
}

// Adapter returns the implementation used to talk to the provider.
func (p ProviderConfig) Adapter() string {
	if p.Kind != "" {
		return p.Kind
	}
	return p.Name
}

// Has reports whether the provider serves the capability.
func (p ProviderConfig) Has(c Capability) bool {
	for _, x := range p.Capabilities {
		if x == c {
			return true
		}
	}
	return false
}

// CredentialEnv returns the environment variable holding the provider credential.
func (p ProviderConfig) CredentialEnv() string {
	name := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(p.Name))
	return name + "_API_KEY"
}

// Usable reports whether the provider can be called with the credentials at hand.
func (p ProviderConfig) Usable() bool {
	return !p.RequiresCredential || p.APIKey != ""
}
