package application

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	billing "utility-billing/internal/billing/domain"
)

// Policy holds the tunable billing constants.
type Policy struct {
	Window    int            `yaml:"window"`
	Tolerance float64        `yaml:"tolerance"`
	Tiers     []billing.Tier `yaml:"tiers"`
	Currency  string         `yaml:"currency"`
}

// DefaultPolicy returns the three-reading, ten percent, 100/200 kWh policy.
func DefaultPolicy() Policy {
	tiers := make([]billing.Tier, len(billing.DefaultTiers))
	copy(tiers, billing.DefaultTiers)
	return Policy{
		Window:    billing.DefaultWindow,
		Tolerance: billing.DefaultTolerance,
		Tiers:     tiers,
		Currency:  "BRL",
	}
}

// LoadPolicy reads the YAML file named by BILLING_POLICY over the defaults,
// then applies BILLING_WINDOW and BILLING_TOLERANCE overrides.
func LoadPolicy() (Policy, error) {
	policy := DefaultPolicy()
	if path := os.Getenv("BILLING_POLICY"); path != "" {
		loaded, err := LoadPolicyFile(path)
		if err != nil {
			return policy, err
		}
		policy = loaded
	}
	policy.Window = getenvIntDefault("BILLING_WINDOW", policy.Window)
	policy.Tolerance = getenvFloatDefault("BILLING_TOLERANCE", policy.Tolerance)
	return policy, policy.Validate()
}

// LoadPolicyFile decodes a YAML policy over the defaults.
func LoadPolicyFile(path string) (Policy, error) {
	policy := DefaultPolicy()
	data, err := os.ReadFile(path)
	if err != nil {
		return policy, err
	}
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return policy, err
	}
	return policy, policy.Validate()
}

// Validate checks that the policy builds an analyzer and a tariff.
func (p Policy) Validate() error {
	if _, err := p.Analyzer(); err != nil {
		return err
	}
	_, err := p.Tariff()
	return err
}

// Analyzer builds the consumption analyzer.
func (p Policy) Analyzer() (billing.Analyzer, error) {
	return billing.NewAnalyzer(p.Window, p.Tolerance)
}

// Tariff builds the tiered tariff.
func (p Policy) Tariff() (*billing.TieredTariff, error) {
	return billing.NewTieredTariff(p.Tiers)
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
