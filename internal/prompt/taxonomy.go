package prompt

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Taxonomies are the closed vocabularies embedded in classification prompts.
type Taxonomies struct {
	FocusTypes    []string `yaml:"focus_types"`
	Industries    []string `yaml:"industries"`
	RevenueModels []string `yaml:"revenue_models"`
	AICriteria    []string `yaml:"ai_criteria"`
}

// DefaultTaxonomies returns the built-in vocabularies.
func DefaultTaxonomies() Taxonomies {
	return Taxonomies{
		FocusTypes: []string{
			"AI-native (AI/ML is the core product)",
			"AI-enabled (AI/ML significantly enhances the product)",
			"AI-adjacent (uses AI/ML in a minor or supporting role)",
			"Non-AI",
		},
		Industries: []string{
			"Agriculture", "Automotive & Mobility", "Consumer Goods & Retail",
			"Cybersecurity", "Education", "Energy & Climate", "Financial Services",
			"Healthcare & Life Sciences", "Human Resources", "Industrial & Manufacturing",
			"Legal", "Logistics & Supply Chain", "Marketing & Advertising",
			"Media & Entertainment", "Real Estate & Construction", "Software & IT",
			"Telecommunications", "Travel & Hospitality", "Other",
		},
		RevenueModels: []string{
			"Subscription (SaaS)", "Usage-based", "Licensing", "Transaction fees",
			"Marketplace commission", "Advertising", "Hardware sales",
			"Professional services", "Freemium", "Other",
		},
		AICriteria: []string{
			"They develop AI/ML technologies as their core product",
			"They heavily integrate AI/ML into their main products/services",
			"They provide AI-powered solutions as their primary offering",
			"They use AI/ML as a significant component of their operations",
		},
	}
}

// LoadTaxonomies reads vocabularies from a YAML file. Lists omitted from the
// file keep their default values.
func LoadTaxonomies(path string) (Taxonomies, error) {
	tax := DefaultTaxonomies()
	data, err := os.ReadFile(path)
	if err != nil {
		return tax, eris.Wrapf(err, "prompt: read taxonomy file %s", path)
	}
	var file Taxonomies
	if err := yaml.Unmarshal(data, &file); err != nil {
		return tax, eris.Wrapf(err, "prompt: parse taxonomy file %s", path)
	}
	if len(file.FocusTypes) > 0 {
		tax.FocusTypes = file.FocusTypes
	}
	if len(file.Industries) > 0 {
		tax.Industries = file.Industries
	}
	if len(file.RevenueModels) > 0 {
		tax.RevenueModels = file.RevenueModels
	}
	if len(file.AICriteria) > 0 {
		tax.AICriteria = file.AICriteria
	}
	return tax, nil
}
