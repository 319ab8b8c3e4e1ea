package model

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// Schema selects the output column layout.
type Schema string

const (
	SchemaFull    Schema = "full"
	SchemaReduced Schema = "reduced"
)

// ParseSchema validates a schema name. Empty means full.
func ParseSchema(s string) (Schema, error) {
	switch Schema(s) {
	case "", SchemaFull:
		return SchemaFull, nil
	case SchemaReduced:
		return SchemaReduced, nil
	default:
		return "", eris.Errorf("model: unknown output schema %q", s)
	}
}

// Header returns the column names for a schema with k page columns.
func (s Schema) Header(k int) []string {
	if s == SchemaReduced {
		return []string{"Startup Name", "Homepage URL", "Full Description", "Is AI Startup", "Total Token Cost ($)"}
	}
	h := []string{"Startup Name", "Homepage URL", "Redirected URL", "Additional URLs"}
	for i := range k {
		h = append(h, fmt.Sprintf("Page %d", i+1))
	}
	return append(h, "Full Description", "Short Description", "Focus Type", "Industry", "Revenue Model(s)", "Total Token Cost ($)")
}

// Classification keys requested from the model.
const (
	KeyShortDescription = "short_description"
	KeyFocusType        = "focus_type"
	KeyIndustry         = "industry"
	KeyRevenueModels    = "revenue_models"
)

// ClassificationKeys lists every key the classification stage attempts.
var ClassificationKeys = []string{KeyShortDescription, KeyFocusType, KeyIndustry, KeyRevenueModels}

// Classification holds the categorical answers for one company.
type Classification struct {
	ShortDescription string `json:"short_description"`
	FocusType        string `json:"focus_type"`
	Industry         string `json:"industry"`
	RevenueModels    string `json:"revenue_models"`
	IsAIStartup      string `json:"is_ai_startup"`
}

// UncertainClassification is used when the model is never asked.
func UncertainClassification() Classification {
	return Classification{
		FocusType:     AnswerUncertain,
		Industry:      AnswerUncertain,
		RevenueModels: AnswerUncertain,
		IsAIStartup:   AnswerUncertain,
	}
}

// ClassificationFromFields maps parsed key/value pairs onto a Classification.
// Missing keys stay empty.
func ClassificationFromFields(fields map[string]string) Classification {
	return Classification{
		ShortDescription: fields[KeyShortDescription],
		FocusType:        fields[KeyFocusType],
		Industry:         fields[KeyIndustry],
		RevenueModels:    fields[KeyRevenueModels],
	}
}

// OutputRow is the durable record written once per company.
type OutputRow struct {
	Company         Company        `json:"company"`
	HomepageURL     string         `json:"homepage_url"`
	RedirectedURL   string         `json:"redirected_url,omitempty"`
	AdditionalURLs  []string       `json:"additional_urls,omitempty"`
	Pages           []string       `json:"pages"`
	FullDescription string         `json:"full_description"`
	Classification  Classification `json:"classification"`
	TotalCost       float64        `json:"total_cost"`
	Status          RunStatus      `json:"status"`
}
