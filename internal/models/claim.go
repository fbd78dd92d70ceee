package models

// ClaimDetails is the adjuster-facing summary produced by the agent workflow.
type ClaimDetails struct {
	Description    string   `json:"description" msgpack:"description"`
	Recommendation []string `json:"recommendation" msgpack:"recommendation"`
}

// AgentResult is the subset of the /runAgent payload the UI consumes.
// Pointers distinguish an absent field from an empty one.
type AgentResult struct {
	Description    *string   `json:"description,omitempty"`
	Recommendation *[]string `json:"recommendation,omitempty"`
}

// Placeholders used when the agent omits a field.
const (
	NoSummaryText         = "No summary available"
	NoRecommendationsText = "No recommendations available."
)

// ToClaimDetails fills absent fields with safe placeholders.
func (r *AgentResult) ToClaimDetails() *ClaimDetails {
	details := &ClaimDetails{
		Description:    NoSummaryText,
		Recommendation: make([]string, 0),
	}
	if r == nil {
		return details
	}
	if r.Description != nil && *r.Description != "" {
		details.Description = *r.Description
	}
	if r.Recommendation != nil {
		details.Recommendation = append(details.Recommendation, (*r.Recommendation)...)
	}
	return details
}
