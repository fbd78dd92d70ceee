package claim

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/leafy-insurance/claims-backend/internal/models"
)

// Summary is the adjuster view shown once claim details resolve.
type Summary struct {
	Assignee    string
	SubmittedBy string
	Created     time.Time
	Status      string
	Details     *models.ClaimDetails
}

// NewSummary builds the demo adjuster view for details.
func NewSummary(details *models.ClaimDetails, created time.Time) Summary {
	return Summary{
		Assignee:    "Mark Scout",
		SubmittedBy: "Luca Napoli",
		Created:     created,
		Status:      "IN PROGRESS",
		Details:     details,
	}
}

// AccidentSummary returns the description, or "..." while unset.
func (s Summary) AccidentSummary() string {
	if s.Details == nil {
		return "..."
	}
	return s.Details.Description
}

// Steps returns the ordered recommendations, or nil when there are none.
func (s Summary) Steps() []string {
	if s.Details == nil || len(s.Details.Recommendation) == 0 {
		return nil
	}
	return append([]string(nil), s.Details.Recommendation...)
}

// Render writes the view as plain text.
func (s Summary) Render(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Claim assigned to: %s\n", s.Assignee)
	fmt.Fprintf(&b, "Date created: %s\n", s.Created.Format("2006-01-02"))
	fmt.Fprintf(&b, "Submitted By: %s\n", s.SubmittedBy)
	fmt.Fprintf(&b, "Status: %s\n\n", s.Status)
	fmt.Fprintf(&b, "Accident Summary\n%s\n\n", s.AccidentSummary())
	b.WriteString("Recommended next steps\n")
	steps := s.Steps()
	if len(steps) == 0 {
		b.WriteString(models.NoRecommendationsText + "\n")
	}
	for i, step := range steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
